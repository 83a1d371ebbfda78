// Package event carries typed events over messaging queues. The notifier
// outbox publishes delivery events here and a Listener relays them to the
// configured chat channel.
package event

import (
	"time"

	"github.com/viant/deepresearch/internal/clock"
)

// Context identifies what an event is about.
type Context struct {
	TaskID    string `json:"taskID"`
	EventType string `json:"eventType"`
	Service   string `json:"service"`
}

type Event[T any] struct {
	Context   *Context          `json:"context"`
	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Data      T                 `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]string),
		Data:      data,
	}
}
