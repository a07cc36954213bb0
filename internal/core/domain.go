package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	OpAdd    OperationKind = "add"
	OpDelete OperationKind = "delete"
	OpEdit   OperationKind = "edit"
)

type (
	OperationKind string

	// Category is identified by its exact name. Color is a CSS color expression.
	Category struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	// CategoryColorMap maps category names to display colors.
	CategoryColorMap map[string]string

	Item struct {
		ID         string     `json:"id,omitempty"`
		Name       string     `json:"name"`
		Amount     string     `json:"amount"`
		Categories []Category `json:"categories"`
		CreatedAt  time.Time  `json:"createdAt"`
	}

	// RecognizedItem is an unconfirmed item produced by image recognition.
	// Categories holds raw names until the batch is resolved.
	RecognizedItem struct {
		Name       string     `json:"name"`
		Amount     string     `json:"amount"`
		Categories []string   `json:"categories"`
		Resolved   []Category `json:"resolved,omitempty"`
	}

	// Operation is one interpreted voice command.
	Operation struct {
		Kind     OperationKind `json:"operation"`
		Item     string        `json:"item"`
		Quantity int64         `json:"quantity"`
	}
)

var (
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyCategory = errors.New("empty category name")
	ErrInvalidItem   = errors.New("invalid item")
	ErrUnknownOpKind = errors.New("unknown operation")
	ErrItemNotFound  = errors.New("item not found")
	ErrEngineStopped = errors.New("reconciliation engine is not running")
	ErrBatchNotFound = errors.New("recognition batch not found")

	// ErrCacheUnavailable reports a failed read or write of the durable color cache.
	ErrCacheUnavailable = errors.New("category cache unavailable")
	// ErrDuplicateCategoryName is returned by remote stores when the name already exists.
	ErrDuplicateCategoryName = errors.New("duplicate category name")
	// ErrMalformedRecognitionOutput marks a recognition or transcription entry that could not be parsed.
	ErrMalformedRecognitionOutput = errors.New("malformed recognition output")
	// ErrRemoteWrite wraps store failures on add, update and delete.
	ErrRemoteWrite = errors.New("remote write failed")
)

// Clone returns an independent copy. A nil map clones to an empty one.
func (m CategoryColorMap) Clone() CategoryColorMap {
	out := make(CategoryColorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Categories returns the map as a slice sorted by name.
func (m CategoryColorMap) Categories() []Category {
	out := make([]Category, 0, len(m))
	for name, color := range m {
		out = append(out, Category{Name: name, Color: color})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Normalize trims the name and defaults an empty amount to "0".
func (it *Item) Normalize() {
	it.Name = strings.TrimSpace(it.Name)
	it.Amount = strings.TrimSpace(it.Amount)
	if it.Amount == "" {
		it.Amount = "0"
	}
}

func (it Item) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return ErrEmptyName
	}
	for _, c := range it.Categories {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasCategory reports whether the item carries a category with the exact name.
func (it Item) HasCategory(name string) bool {
	for _, c := range it.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CategoryNames returns the names of the item's categories in order.
func (it Item) CategoryNames() []string {
	out := make([]string, 0, len(it.Categories))
	for _, c := range it.Categories {
		out = append(out, c.Name)
	}
	return out
}

func (k OperationKind) IsValid() bool {
	switch k {
	case OpAdd, OpDelete, OpEdit:
		return true
	}
	return false
}

func (o Operation) Validate() error {
	if !o.Kind.IsValid() {
		return ErrUnknownOpKind
	}
	if strings.TrimSpace(o.Item) == "" {
		return ErrEmptyName
	}
	return nil
}
