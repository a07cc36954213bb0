package core

import "testing"

func TestSumAmounts(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		added    string
		want     string
	}{
		{"integers", "2", "3", "5"},
		{"decimals", "1.5", "2", "3.5"},
		{"decimal comma", "1,25", "0,75", "2"},
		{"negative quantity", "5", "-2", "3"},
		{"added unparseable keeps existing text", "2", "lots", "2"},
		{"existing unparseable keeps added text", "some", "3", "3"},
		{"neither parses keeps existing", "some", "x", "some"},
		{"empty added", "4", "", "4"},
		{"padded values", " 2 ", " 3", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SumAmounts(tt.existing, tt.added)
			if got != tt.want {
				t.Errorf("SumAmounts(%q, %q) = %q, want %q", tt.existing, tt.added, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
		want   string
	}{
		{"3", true, "3"},
		{"0.5", true, "0.5"},
		{"2,5", true, "2.5"},
		{"", false, "0"},
		{"abc", false, "0"},
		{"1.2.3", false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.String(), tt.want)
			}
		})
	}
}

func TestQuantityToAmount(t *testing.T) {
	if got := QuantityToAmount(-3); got != "-3" {
		t.Errorf("QuantityToAmount(-3) = %q", got)
	}
	if got := QuantityToAmount(0); got != "0" {
		t.Errorf("QuantityToAmount(0) = %q", got)
	}
}
