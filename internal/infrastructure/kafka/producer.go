package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/event"
	"github.com/WillamesCampos/notification-producer-api/internal/retry"
)

// ErrNotConnected is returned by Publish when Connect has not succeeded.
var ErrNotConnected = errors.New("kafka publisher not connected")

type ProducerConfig struct {
	Brokers []string
	Topic   string

	ConnectAttempts int
	ConnectDelay    time.Duration
}

// Publisher owns the single shared Kafka connection used by all request
// handlers. Connect must succeed before the hosting process starts serving.
type Publisher struct {
	cfg    ProducerConfig
	log    *slog.Logger
	writer *kafka.Writer

	// dial is swappable in tests.
	dial func(ctx context.Context, network, address string) (*kafka.Conn, error)
}

func NewPublisher(cfg ProducerConfig, log *slog.Logger) *Publisher {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: false, // Force IPv4
	}

	return &Publisher{
		cfg:  cfg,
		log:  log,
		dial: dialer.DialContext,
	}
}

// Connect probes the broker with bounded retry and builds the shared writer.
// On exhaustion it returns an error wrapping retry.ErrExhausted; the caller
// is expected to treat that as fatal.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.writer != nil {
		return nil
	}

	policy := retry.Policy{
		Attempts: p.cfg.ConnectAttempts,
		Delay:    p.cfg.ConnectDelay,
		OnAttempt: func(attempt int, err error) {
			p.log.Warn("kafka connect attempt failed",
				"attempt", attempt, "max", p.cfg.ConnectAttempts,
				"brokers", p.cfg.Brokers, "error", err)
		},
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		conn, err := p.dial(ctx, "tcp", p.cfg.Brokers[0])
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		return conn.Close()
	})
	if err != nil {
		return fmt.Errorf("connect kafka producer: %w", err)
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.cfg.Brokers...),
		Topic:                  p.cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				return
			}
			for _, m := range messages {
				p.log.Info("event published",
					"topic", p.cfg.Topic, "partition", m.Partition, "offset", m.Offset)
			}
		},
	}

	p.log.Info("kafka producer connected", "brokers", p.cfg.Brokers, "topic", p.cfg.Topic)
	return nil
}

// Publish sends one envelope and waits for the broker acknowledgment.
// Messages are keyed by user_id so a user's events share a partition.
// Failures are not retried here; the HTTP layer surfaces them.
func (p *Publisher) Publish(ctx context.Context, evt event.Envelope) error {
	if p.writer == nil {
		return ErrNotConnected
	}

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", evt.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.UserID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish event %s to %s: %w", evt.EventID, p.cfg.Topic, err)
	}
	return nil
}

func (p *Publisher) Topic() string {
	return p.cfg.Topic
}

// Close flushes and releases the writer. Safe to call repeatedly or before
// Connect ever succeeded.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	w := p.writer
	p.writer = nil
	return w.Close()
}
