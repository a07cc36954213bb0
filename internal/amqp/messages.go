package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventKind string

const (
	CategoryAdded   EventKind = "added"
	CategoryDeleted EventKind = "deleted"
)

var ErrInvalidEvent = errors.New("invalid category event")

// CategoryEvent tells other processes that the remote category set changed.
// Receivers reload the store and run a reconciliation pass; the payload is a
// hint, not the source of truth.
type CategoryEvent struct {
	Kind      EventKind `json:"kind"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCategoryEvent(kind EventKind, name, color, origin string) *CategoryEvent {
	return &CategoryEvent{
		Kind:      kind,
		Name:      name,
		Color:     color,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

func (m *CategoryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CategoryEventFromJSON decodes and validates an event body.
func CategoryEventFromJSON(data []byte) (*CategoryEvent, error) {
	var msg CategoryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != CategoryAdded && msg.Kind != CategoryDeleted {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, msg.Kind)
	}
	if msg.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidEvent)
	}
	return &msg, nil
}
