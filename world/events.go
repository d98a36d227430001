package world

import "github.com/milk9111/rigid2d/collision"

// CollisionEventKind identifies collision event types.
type CollisionEventKind string

const (
	CollisionStarted CollisionEventKind = "started"
	CollisionPersist CollisionEventKind = "persist"
	CollisionEnded   CollisionEventKind = "ended"
)

// CollisionEvent is emitted when a pair changes state during a step.
type CollisionEvent struct {
	Kind  CollisionEventKind
	Pair  *collision.Pair
	Frame uint64
}

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []CollisionEvent
}

// Push adds an event.
func (q *EventQueue) Push(evt CollisionEvent) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []CollisionEvent {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}
