// Package memory is an in-process broker used when no Kafka brokers are
// configured and in tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/egannguyen/instaprint/internal/messaging"
)

// ErrClosed is returned by a broker after Close.
var ErrClosed = errors.New("memory broker closed")

const subscriberBuffer = 64

// Broker fans every published message out to all subscriptions on its topic.
// Group ids are accepted for interface compatibility; each subscription
// receives every message.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscription]struct{})}
}

func (b *Broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[topic] {
		select {
		case s.ch <- payload:
		case <-s.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string, groupID string, handler messaging.Handler) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		broker: b,
		topic:  topic,
		ch:     make(chan []byte, subscriberBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][s] = struct{}{}

	s.wg.Add(1)
	go s.run(handler)
	return s, nil
}

// Close stops every subscription and rejects further use.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*subscription
	for _, set := range b.subs {
		for s := range set {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}

func (b *Broker) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[s.topic], s)
}

type subscription struct {
	broker *Broker
	topic  string
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (s *subscription) run(handler messaging.Handler) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case payload := <-s.ch:
			if err := handler(s.ctx, payload); err != nil {
				slog.Error("Error handling message", "topic", s.topic, "err", err)
			}
		}
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.broker.remove(s)
	})
	return nil
}
