package core

import (
	"errors"
	"testing"
)

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{"valid", Item{Name: "Milk", Amount: "2"}, nil},
		{"blank name", Item{Name: "   ", Amount: "1"}, ErrEmptyName},
		{"empty category", Item{Name: "Milk", Categories: []Category{{Name: ""}}}, ErrEmptyCategory},
		{"with categories", Item{Name: "Milk", Categories: []Category{{Name: "Dairy", Color: "hsl(1, 70%, 55%)"}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestItem_Normalize(t *testing.T) {
	it := Item{Name: "  Eggs ", Amount: " "}
	it.Normalize()
	if it.Name != "Eggs" {
		t.Errorf("Name = %q, want %q", it.Name, "Eggs")
	}
	if it.Amount != "0" {
		t.Errorf("Amount = %q, want %q", it.Amount, "0")
	}
}

func TestCategoryColorMap_CloneIsIndependent(t *testing.T) {
	m := CategoryColorMap{"Dairy": "yellow"}
	c := m.Clone()
	c["Meat"] = "red"
	if _, ok := m["Meat"]; ok {
		t.Fatal("clone mutation leaked into original")
	}

	var nilMap CategoryColorMap
	if got := nilMap.Clone(); got == nil {
		t.Fatal("clone of nil map should be non-nil")
	}
}

func TestCategoryColorMap_CategoriesSorted(t *testing.T) {
	m := CategoryColorMap{"b": "2", "a": "1", "C": "3"}
	got := m.Categories()
	want := []string{"C", "a", "b"}
	for i, c := range got {
		if c.Name != want[i] {
			t.Fatalf("Categories()[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
}

func TestOperation_Validate(t *testing.T) {
	tests := []struct {
		op      Operation
		wantErr error
	}{
		{Operation{Kind: OpAdd, Item: "rice", Quantity: 2}, nil},
		{Operation{Kind: OpDelete, Item: "rice"}, nil},
		{Operation{Kind: OpEdit, Item: "rice", Quantity: -1}, nil},
		{Operation{Kind: "restock", Item: "rice"}, ErrUnknownOpKind},
		{Operation{Kind: OpAdd, Item: " "}, ErrEmptyName},
	}

	for _, tt := range tests {
		if err := tt.op.Validate(); !errors.Is(err, tt.wantErr) {
			t.Errorf("Validate(%+v) = %v, want %v", tt.op, err, tt.wantErr)
		}
	}
}
