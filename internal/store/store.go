// Package store holds the latest raw weather payloads for the process and
// notifies subscribers when they change. It keeps only the most recent
// payload per kind; consumers re-read the store on notification.
package store

import (
	"errors"
	"sync"
)

// ErrEmptyPayload is returned when a publish carries no data. The held
// payload is left untouched and no subscriber is notified.
var ErrEmptyPayload = errors.New("empty payload")

// Kind selects one of the two payloads the store holds.
type Kind int

const (
	KindCurrent Kind = iota
	KindForecast
)

func (k Kind) String() string {
	if k == KindForecast {
		return "forecast"
	}
	return "current"
}

// Subscription is a registered consumer's handle. Signal carries one
// notification at a time; intermediate updates coalesce, so a consumer that
// drains the channel and re-reads the store always sees the latest payload.
type Subscription struct {
	kind   Kind
	signal chan struct{}
}

// Signal returns the channel a notification is delivered on. No payload is
// sent; re-read the store.
func (s *Subscription) Signal() <-chan struct{} {
	return s.signal
}

// Store is the process-wide holder of the latest current-weather and
// forecast payloads. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	current  []byte
	forecast []byte
	subs     map[Kind][]*Subscription
}

func New() *Store {
	return &Store{subs: make(map[Kind][]*Subscription)}
}

// PublishCurrent replaces the held current-weather payload and notifies
// current-weather subscribers in registration order.
func (s *Store) PublishCurrent(payload []byte) error {
	return s.publish(KindCurrent, payload)
}

// PublishForecast replaces the held forecast payload and notifies forecast
// subscribers in registration order.
func (s *Store) PublishForecast(payload []byte) error {
	return s.publish(KindForecast, payload)
}

func (s *Store) publish(kind Kind, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held := make([]byte, len(payload))
	copy(held, payload)
	if kind == KindForecast {
		s.forecast = held
	} else {
		s.current = held
	}

	for _, sub := range s.subs[kind] {
		// Non-blocking: a subscriber that has not drained its previous
		// signal coalesces this one instead of blocking the publisher.
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
	return nil
}

// Current returns a copy of the last published current-weather payload, or
// false when nothing has been published.
func (s *Store) Current() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPayload(s.current)
}

// Forecast returns a copy of the last published forecast payload, or false
// when nothing has been published.
func (s *Store) Forecast() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPayload(s.forecast)
}

// Subscribe registers a new consumer for the given kind and returns its
// handle. Each call creates a distinct subscription.
func (s *Store) Subscribe(kind Kind) *Subscription {
	sub := &Subscription{kind: kind, signal: make(chan struct{}, 1)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[kind] = append(s.subs[kind], sub)
	return sub
}

// Unsubscribe removes a subscription. Removing one that was never
// registered, or removing it twice, is a no-op.
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.subs[sub.kind]
	for i, candidate := range list {
		if candidate == sub {
			s.subs[sub.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func copyPayload(p []byte) ([]byte, bool) {
	if p == nil {
		return nil, false
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, true
}
