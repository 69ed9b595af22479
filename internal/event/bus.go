// Package event fans plan change notifications out to in-process
// subscribers such as the SSE endpoint and the CLI watcher.
package event

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/planweave/planweave/internal/object"
)

type Type string

const (
	TypePlanCreated Type = "plan.created"
	TypePlanUpdated Type = "plan.updated"
	TypePlanDeleted Type = "plan.deleted"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	PlanID    object.ID `json:"planId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan Event) {
	id := ulid.Make().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType Type, planID object.ID) {
	b.Publish(Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		PlanID:    planID,
		CreatedAt: time.Now().UTC(),
	})
}
