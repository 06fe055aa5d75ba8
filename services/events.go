package services

import (
	"sync"

	"github.com/cyl19970726/Code3/core/bounty"
)

// EventHub fans committed bounty events out to sinks and stream subscribers.
type EventHub struct {
	mu     sync.Mutex
	sinks  []func(bounty.Event)
	subs   map[int]chan bounty.Event
	nextID int
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[int]chan bounty.Event)}
}

// RegisterSink adds a callback to receive every published event.
func (h *EventHub) RegisterSink(sink func(bounty.Event)) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Subscribe returns a buffered channel of events and a cancel func.
// Slow subscribers miss events rather than block publishers.
func (h *EventHub) Subscribe(buffer int) (<-chan bounty.Event, func()) {
	ch := make(chan bounty.Event, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish forwards evt to sinks and subscribers.
func (h *EventHub) Publish(evt bounty.Event) {
	h.mu.Lock()
	sinks := append([]func(bounty.Event){}, h.sinks...)
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// subscriber full, drop
		}
	}
	h.mu.Unlock()

	for _, sink := range sinks {
		sink(evt)
	}
}
