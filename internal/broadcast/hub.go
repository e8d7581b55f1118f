// Package broadcast fans pipeline events out to connected observers.
// Delivery is best-effort: each subscriber has a bounded queue, and a
// subscriber that falls behind loses events instead of back-pressuring the
// pipeline. There is no replay; an observer only sees events emitted after
// it subscribed.
package broadcast

import (
	"log"
	"sync"

	"github.com/devamsheth0806/VeriMeet/internal/event"
)

const DefaultSubscriberBuffer = 64

type Subscriber struct {
	ch      chan event.Event
	hub     *Hub
	dropped int64
}

// Events is the subscriber's receive stream. The channel is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan event.Event { return s.ch }

func (s *Subscriber) Close() {
	s.hub.remove(s)
}

type Hub struct {
	logPrefix string
	buffer    int

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewHub(buffer int, logPrefix string) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logPrefix == "" {
		logPrefix = "[hub]"
	}
	return &Hub{
		logPrefix: logPrefix,
		buffer:    buffer,
		subs:      map[*Subscriber]struct{}{},
	}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan event.Event, h.buffer), hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	log.Printf("%s observer connected, total=%d", h.logPrefix, n)
	return s
}

// Publish delivers ev to every current subscriber without blocking. A full
// subscriber queue drops the event for that subscriber only.
func (h *Hub) Publish(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped++
			if s.dropped == 1 || s.dropped%100 == 0 {
				log.Printf("%s slow observer, dropped=%d type=%s", h.logPrefix, s.dropped, ev.Type)
			}
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	if ok {
		delete(h.subs, s)
		close(s.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		log.Printf("%s observer disconnected, remaining=%d", h.logPrefix, n)
	}
}
