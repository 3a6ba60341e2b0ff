package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/egannguyen/instaprint/internal/messaging"
	kafkaGo "github.com/segmentio/kafka-go"
)

// Read errors back off from readRetryInitial up to readRetryMax.
const (
	readRetryInitial = 100 * time.Millisecond
	readRetryMax     = 5 * time.Second
)

type kafkaBroker struct {
	brokers []string
	writer  *kafkaGo.Writer
}

// NewKafkaBroker creates a new Kafka publisher and subscriber.
func NewKafkaBroker(brokers []string) (messaging.Publisher, messaging.Subscriber, error) {
	if len(brokers) == 0 {
		return nil, nil, errors.New("kafka broker requires at least one address")
	}
	kb := &kafkaBroker{
		brokers: brokers,
		writer: &kafkaGo.Writer{
			Addr:         kafkaGo.TCP(brokers...),
			RequiredAcks: kafkaGo.RequireAll,
			Balancer:     &kafkaGo.Hash{},
		},
	}
	return kb, kb, nil
}

func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (k *kafkaBroker) Close() error {
	return k.writer.Close()
}

func (k *kafkaBroker) Subscribe(ctx context.Context, topic string, groupID string, handler messaging.Handler) (messaging.Subscription, error) {
	if err := k.checkTopic(ctx, topic); err != nil {
		return nil, err
	}

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:     k.brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafkaGo.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{cancel: cancel, reader: reader}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		consume(ctx, reader, topic, handler)
	}()
	return s, nil
}

// checkTopic fails fast when the cluster is unreachable or the topic is missing.
func (k *kafkaBroker) checkTopic(ctx context.Context, topic string) error {
	conn, err := kafkaGo.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions for %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkaGo.Message, error)
}

func consume(ctx context.Context, reader messageReader, topic string, handler messaging.Handler) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = readRetryInitial
	bo.MaxInterval = readRetryMax

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			wait := bo.NextBackOff()
			slog.Error("Error reading message", "topic", topic, "retry_in", wait, "err", err)
			select {
			case <-ctx.Done():
				slog.Info("Consumer shutting down", "topic", topic)
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		if err := handler(ctx, msg.Value); err != nil {
			slog.Error("Error handling message", "topic", topic, "err", err)
		}
	}
}

type subscription struct {
	cancel context.CancelFunc
	reader *kafkaGo.Reader
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.err = s.reader.Close()
	})
	return s.err
}
