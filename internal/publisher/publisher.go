package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventCartItemAdded     EventType = "cart_item_added"
	EventCartLimitReached  EventType = "cart_limit_reached"
	EventCheckoutCompleted EventType = "checkout_completed"
	EventSessionEnded      EventType = "session_ended"
)

const (
	DefaultTopic     = "storefront-analytics"
	defaultQueueSize = 256
	defaultBatchSize = 100
	flushTimeout     = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("analytics queue is full")
	ErrClosed    = errors.New("publisher is closed")
)

// Event is one analytics record. Key groups related events on the same partition.
type Event struct {
	Type       EventType      `json:"event_type"`
	Key        string         `json:"key,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher accepts analytics events without blocking the shopper's request.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops everything. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in memory and writes them in batches from Run.
type KafkaPublisher struct {
	writer    messageWriter
	logger    logrus.FieldLogger
	queue     chan kafka.Message
	batchSize int
	done      chan struct{}
	onDrop    func()
}

func NewKafkaPublisher(brokers []string, topic string, logger logrus.FieldLogger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger logrus.FieldLogger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:    w,
		logger:    logger.WithField("component", "publisher"),
		queue:     make(chan kafka.Message, defaultQueueSize),
		batchSize: defaultBatchSize,
		done:      make(chan struct{}),
	}
}

// OnDrop registers a callback for events that were lost. Call before Run.
func (p *KafkaPublisher) OnDrop(fn func()) {
	p.onDrop = fn
}

// Publish enqueues ev. It never waits for the broker.
func (p *KafkaPublisher) Publish(_ context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}

	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.dropped(1)
		return ErrQueueFull
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (p *KafkaPublisher) Run(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, p.collect(msg))
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *KafkaPublisher) collect(first kafka.Message) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < p.batchSize {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (p *KafkaPublisher) flush() {
	var batch []kafka.Message
drain:
	for {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	p.write(ctx, batch)
}

func (p *KafkaPublisher) write(ctx context.Context, batch []kafka.Message) {
	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.logger.WithError(err).WithField("count", len(batch)).Warn("failed to publish analytics events")
		p.dropped(len(batch))
	}
}

func (p *KafkaPublisher) dropped(n int) {
	if p.onDrop == nil {
		return
	}
	for i := 0; i < n; i++ {
		p.onDrop()
	}
}

// Close stops accepting events and closes the writer. Run should have returned
// first so queued events are flushed.
func (p *KafkaPublisher) Close() error {
	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}
	return p.writer.Close()
}
