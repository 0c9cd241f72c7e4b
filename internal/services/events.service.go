package services

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Topic names an event stream on the bus
type Topic string

const (
	TopicMetrics Topic = "metrics"
	TopicAlert   Topic = "alert"
)

// Event is one published message
type Event struct {
	Topic   Topic
	Payload any
	At      time.Time
}

type Handler func(Event)

type subscription struct {
	topics  map[Topic]bool
	queue   chan Event
	handler Handler
	done    chan struct{}

	cancelled atomic.Bool
	active    atomic.Bool
}

// EventBus decouples producers from consumers. Publish never blocks: each
// subscriber drains its own queue on a dedicated goroutine, and an event is
// dropped for a subscriber whose queue is full.
type EventBus struct {
	log    *slog.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

func NewEventBus(log *slog.Logger, buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{log: log, buffer: buffer, subs: make(map[*subscription]struct{})}
}

// Subscribe registers h for the given topics, or for every topic when none
// are given. Events reach h in publish order. The returned func unsubscribes;
// it waits for the drain goroutine unless h is running, which makes it safe
// to call from inside h. No event is handed to h after it returns.
func (b *EventBus) Subscribe(h Handler, topics ...Topic) func() {
	sub := &subscription{
		topics:  make(map[Topic]bool, len(topics)),
		queue:   make(chan Event, b.buffer),
		handler: h,
		done:    make(chan struct{}),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go b.drain(sub)

	return func() {
		sub.cancelled.Store(true)
		b.mu.Lock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.queue)
		}
		b.mu.Unlock()
		if sub.active.Load() {
			return
		}
		<-sub.done
	}
}

// Publish delivers payload to every subscriber of topic without blocking
func (b *EventBus) Publish(topic Topic, payload any) {
	ev := Event{Topic: topic, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		select {
		case sub.queue <- ev:
		default:
			b.log.Warn("event bus: subscriber queue full, dropping event", "topic", topic)
		}
	}
}

// Close stops accepting events and waits until every subscriber has
// handled what was already queued
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
		close(sub.queue)
	}
	b.subs = map[*subscription]struct{}{}
	b.mu.Unlock()

	for _, sub := range subs {
		<-sub.done
	}
}

func (b *EventBus) drain(sub *subscription) {
	defer close(sub.done)
	for ev := range sub.queue {
		if sub.cancelled.Load() {
			continue
		}
		sub.active.Store(true)
		b.dispatch(sub, ev)
		sub.active.Store(false)
	}
}

func (b *EventBus) dispatch(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event bus: handler panicked", "topic", ev.Topic, "panic", r)
		}
	}()
	sub.handler(ev)
}
