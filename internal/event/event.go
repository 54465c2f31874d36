// Package event carries change notifications from the handlers to whoever is
// listening: websocket clients, a message broker, or both.
package event

import "fmt"

// Message describes one change to a stored record.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Broadcaster delivers messages. Implementations must not block the caller
// for long and must not fail the request that triggered the change.
type Broadcaster interface {
	Broadcast(Message)
}

// Fanout delivers every message to each of its members in order.
type Fanout []Broadcaster

func (f Fanout) Broadcast(msg Message) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(msg)
		}
	}
}

// Discard drops every message.
type Discard struct{}

func (Discard) Broadcast(Message) {}
