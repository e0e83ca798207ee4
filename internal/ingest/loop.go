// Package ingest runs the background loop that moves events from Kafka
// into the notification store. Delivery is at-least-once: offsets are
// committed only after persistence, and redelivered events are absorbed by
// the store's idempotent save.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/event"
	"github.com/WillamesCampos/notification-producer-api/internal/domain/notification"
	kafkainfra "github.com/WillamesCampos/notification-producer-api/internal/infrastructure/kafka"
	"github.com/WillamesCampos/notification-producer-api/internal/retry"
)

var (
	notificationsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_notifications_persisted_total",
		Help: "The total number of notifications persisted from Kafka events",
	})
	duplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_duplicate_events_total",
		Help: "The total number of redelivered events skipped as duplicates",
	})
	ingestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "The total number of events that failed processing",
	})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_processing_duration_seconds",
		Help:    "Time taken to persist one event",
		Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// State tracks the loop's lifecycle. Failed is terminal: connect retries
// exhausted and ingestion stopped with nothing beyond a log line.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type subscription interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type saver interface {
	Save(ctx context.Context, evt event.Envelope) (*notification.Notification, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	ConnectAttempts int
	ConnectDelay    time.Duration
}

// Loop is the single reader of its (topic, group) subscription. Start
// launches it in the background; Stop cancels cooperatively and waits for
// the goroutine to unwind.
type Loop struct {
	cfg   Config
	store saver
	log   *slog.Logger

	state   atomic.Int32
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	stop    sync.Once

	// connect is swappable in tests.
	connect func(ctx context.Context) (subscription, error)
}

func NewLoop(cfg Config, store saver, log *slog.Logger) *Loop {
	l := &Loop{
		cfg:   cfg,
		store: store,
		log:   log,
		done:  make(chan struct{}),
	}
	l.connect = l.connectKafka
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Start launches the loop as a background goroutine. The host process does
// not block on it; observe State for progress.
func (l *Loop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	go l.run(ctx)
	l.log.Info("ingestion loop started", "topic", l.cfg.Topic, "group_id", l.cfg.GroupID)
}

// Stop is idempotent and blocks until the loop has fully unwound and
// released its subscription, or until ctx expires. In-flight message
// processing is allowed to finish; cancellation is only observed at loop
// iteration boundaries.
func (l *Loop) Stop(ctx context.Context) error {
	if !l.started.Load() {
		return nil
	}

	l.stop.Do(func() {
		l.cancel()
	})

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectKafka opens the subscription with bounded retry. Each failed
// attempt tears down its half-open connection before the next one.
func (l *Loop) connectKafka(ctx context.Context) (subscription, error) {
	policy := retry.Policy{
		Attempts: l.cfg.ConnectAttempts,
		Delay:    l.cfg.ConnectDelay,
		OnAttempt: func(attempt int, err error) {
			l.log.Warn("kafka connect attempt failed, broker may still be initializing",
				"attempt", attempt, "max", l.cfg.ConnectAttempts,
				"brokers", l.cfg.Brokers, "error", err)
		},
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return kafkainfra.Probe(ctx, l.cfg.Brokers)
	})
	if err != nil {
		return nil, err
	}

	return kafkainfra.NewConsumer(kafkainfra.ConsumerConfig{
		Brokers: l.cfg.Brokers,
		Topic:   l.cfg.Topic,
		GroupID: l.cfg.GroupID,
	}), nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	l.setState(StateConnecting)

	sub, err := l.connect(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			l.setState(StateStopped)
			return
		}
		// Exhausted retries stop ingestion silently: the process keeps
		// serving reads, and only this log records the dead loop.
		l.log.Error("failed to connect to kafka, ingestion will not start",
			"topic", l.cfg.Topic, "group_id", l.cfg.GroupID, "error", err)
		l.setState(StateFailed)
		return
	}

	l.setState(StateConsuming)
	l.log.Info("kafka consumer connected", "topic", l.cfg.Topic, "group_id", l.cfg.GroupID)

	for {
		msg, err := sub.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Cancellation while waiting for the next message is
				// normal shutdown, not an error.
				break
			}
			l.log.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		l.process(ctx, sub, msg)

		if ctx.Err() != nil {
			break
		}
	}

	l.setState(StateStopping)
	if err := sub.Close(); err != nil {
		l.log.Error("failed to close kafka consumer", "error", err)
	}
	l.setState(StateStopped)
	l.log.Info("ingestion loop stopped", "topic", l.cfg.Topic, "group_id", l.cfg.GroupID)
}

// process persists one message and then commits its offset, in that order.
// A crash between the two causes redelivery, which the idempotent save
// absorbs. A persistence failure leaves the offset uncommitted and moves
// on; redelivery retries it only if the error was transient.
func (l *Loop) process(ctx context.Context, sub subscription, msg kafka.Message) {
	started := time.Now()

	var evt event.Envelope
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// Not our envelope (or corrupt). Commit and move on.
		l.log.Error("failed to unmarshal event envelope",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		ingestErrors.Inc()
		l.commit(ctx, sub, msg)
		return
	}

	if err := evt.Validate(); err != nil {
		// Well-formed JSON but not a usable envelope. Same poison-message
		// handling as a decode failure: leaving it uncommitted would wedge
		// the partition.
		l.log.Error("invalid event envelope",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		ingestErrors.Inc()
		l.commit(ctx, sub, msg)
		return
	}

	l.log.Info("received event",
		"event_id", evt.EventID, "event_type", evt.EventType,
		"partition", msg.Partition, "offset", msg.Offset)

	saved, err := l.store.Save(ctx, evt)
	if err != nil {
		l.log.Error("failed to persist notification, message left uncommitted",
			"event_id", evt.EventID, "error", err)
		ingestErrors.Inc()
		return
	}

	if saved == nil {
		duplicateEvents.Inc()
	} else {
		notificationsPersisted.Inc()
		processingDuration.Observe(time.Since(started).Seconds())
	}

	l.commit(ctx, sub, msg)
}

func (l *Loop) commit(ctx context.Context, sub subscription, msg kafka.Message) {
	if err := sub.CommitMessages(ctx, msg); err != nil {
		// The event is already persisted; redelivery after a failed commit
		// is absorbed as a duplicate.
		l.log.Error("failed to commit offset",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
}
