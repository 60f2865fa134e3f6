package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puyokura/housechat/model"
)

// DefaultHubCapacity is enough for one burst from the expected number of concurrent clients.
const DefaultHubCapacity = 10

var (
	// ErrBusClosed is returned by Publish after Close and by subscriptions once drained.
	ErrBusClosed = errors.New("hub: closed")

	errNoMessage = errors.New("hub: no message ready")

	// readyNow is handed out by Ready when a message is already waiting.
	readyNow = func() chan struct{} {
		c := make(chan struct{})
		close(c)
		return c
	}()
)

// LaggedError tells a subscriber how many messages it lost by falling behind.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("hub: subscriber lagged, %d message(s) dropped", e.Missed)
}

// Hub is the broadcast bus shared by every session.
// Messages are kept in a fixed ring, every subscriber reads through its own cursor.
// Publishing never waits for subscribers: a subscriber that falls more than
// capacity messages behind skips ahead and is told how many it missed.
type Hub struct {
	mu          sync.Mutex
	ring        []model.Message
	head        uint64 // sequence number of the next published message
	notify      chan struct{}
	closed      bool
	subscribers int
}

// NewHub creates a bus retaining at most capacity unread messages per subscriber.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultHubCapacity
	}
	return &Hub{
		ring:   make([]model.Message, capacity),
		notify: make(chan struct{}),
	}
}

// Publish appends msg for every current subscriber. Nobody listening is not an error.
func (h *Hub) Publish(msg model.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrBusClosed
	}
	h.publishLocked(msg)
	return nil
}

func (h *Hub) publishLocked(msg model.Message) {
	h.ring[h.head%uint64(len(h.ring))] = msg
	h.head++
	close(h.notify)
	h.notify = make(chan struct{})
}

// Subscribe returns a subscription that observes messages published after this call.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked()
}

// SubscribeWith subscribes and publishes first in one step, so first is guaranteed
// to be the earliest message the new subscriber observes.
func (h *Hub) SubscribeWith(first model.Message) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrBusClosed
	}
	sub := h.subscribeLocked()
	h.publishLocked(first)
	return sub, nil
}

func (h *Hub) subscribeLocked() *Subscription {
	h.subscribers++
	return &Subscription{hub: h, next: h.head}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribers
}

// Close stops publishing. Subscribers drain what is left and then get ErrBusClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}

// Subscription is a private read cursor into the hub.
// It is not safe for concurrent use, each session owns exactly one.
type Subscription struct {
	hub      *Hub
	next     uint64
	released bool
}

// Ready returns a channel that is closed once TryRecv has something to report.
func (s *Subscription) Ready() <-chan struct{} {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.next < h.head || h.closed {
		return readyNow
	}
	return h.notify
}

// TryRecv returns the next message without blocking.
// Errors: *LaggedError (cursor already moved past the gap), ErrBusClosed, or errNoMessage.
func (s *Subscription) TryRecv() (model.Message, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	capacity := uint64(len(h.ring))
	if h.head > capacity && s.next < h.head-capacity {
		oldest := h.head - capacity
		missed := oldest - s.next
		s.next = oldest
		return model.Message{}, &LaggedError{Missed: missed}
	}
	if s.next < h.head {
		msg := h.ring[s.next%capacity]
		s.next++
		return msg, nil
	}
	if h.closed {
		return model.Message{}, ErrBusClosed
	}
	return model.Message{}, errNoMessage
}

// Recv blocks until a message, a lag notice, bus closure or ctx cancellation.
func (s *Subscription) Recv(ctx context.Context) (model.Message, error) {
	for {
		msg, err := s.TryRecv()
		if !errors.Is(err, errNoMessage) {
			return msg, err
		}
		select {
		case <-s.Ready():
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		}
	}
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	h.subscribers--
}
