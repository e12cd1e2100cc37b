// Package events is a small typed publish/subscribe bus. It decouples the parts that
// end a session (token watcher, API client, user logout) from the parts that react.
package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Bus delivers values of type T to every subscriber, synchronously and in
// subscription order.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription[T]
	logger logrus.FieldLogger
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func NewBus[T any](logger logrus.FieldLogger) *Bus[T] {
	return &Bus[T]{logger: logger}
}

// Subscribe registers fn and returns a function that removes it again.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every current subscriber with v. Handlers run outside the bus lock,
// so a handler may subscribe, unsubscribe or publish again. A panicking handler is
// logged and the remaining handlers still run.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, v)
	}
}

func (b *Bus[T]) deliver(s subscription[T], v T) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.WithField("event", fmt.Sprintf("%T", v)).Errorf("event handler panicked: %v", r)
		}
	}()
	s.fn(v)
}

// Len reports the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
