package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dive-federation/pdp/pkg/observability"
)

// BufferedLoggerConfig tunes the asynchronous audit writer.
type BufferedLoggerConfig struct {
	// QueueSize bounds the in-flight record queue.
	QueueSize int

	// EnqueueWait is how long Log blocks on a full queue before giving up
	// with ErrBackpressure.
	EnqueueWait time.Duration

	// WriteRetries is how many times a failed sink write is retried before
	// the record is emitted to the process log instead.
	WriteRetries int
}

// DefaultBufferedLoggerConfig returns the production defaults.
func DefaultBufferedLoggerConfig() BufferedLoggerConfig {
	return BufferedLoggerConfig{
		QueueSize:    4096,
		EnqueueWait:  250 * time.Millisecond,
		WriteRetries: 3,
	}
}

// BufferedLogger queues records and writes them to the wrapped sink from a
// background worker, keeping sink latency off the decision path. The queue is
// bounded; saturation surfaces as ErrBackpressure rather than a silent drop.
type BufferedLogger struct {
	cfg     BufferedLoggerConfig
	inner   Logger
	queue   chan *Event
	done    chan struct{}
	logger  *logrus.Logger
	metrics *observability.Metrics

	closeOnce sync.Once
}

// NewBufferedLogger wraps a sink with a bounded queue. logger and metrics may
// be nil.
func NewBufferedLogger(cfg BufferedLoggerConfig, inner Logger, logger *logrus.Logger, metrics *observability.Metrics) *BufferedLogger {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultBufferedLoggerConfig().QueueSize
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = DefaultBufferedLoggerConfig().EnqueueWait
	}
	if cfg.WriteRetries <= 0 {
		cfg.WriteRetries = DefaultBufferedLoggerConfig().WriteRetries
	}
	if logger == nil {
		logger = logrus.New()
	}

	b := &BufferedLogger{
		cfg:     cfg,
		inner:   inner,
		queue:   make(chan *Event, cfg.QueueSize),
		done:    make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
	go b.drain()
	return b
}

// Log enqueues the record, blocking up to EnqueueWait when the queue is full.
// ErrBackpressure means the record was NOT accepted; the caller must deny the
// request it was auditing.
func (b *BufferedLogger) Log(ctx context.Context, event *Event) error {
	select {
	case b.queue <- event:
		b.observeDepth()
		return nil
	default:
	}

	timer := time.NewTimer(b.cfg.EnqueueWait)
	defer timer.Stop()

	select {
	case b.queue <- event:
		b.observeDepth()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.AuditBackpressure.Inc()
		}
		return ErrBackpressure
	}
}

func (b *BufferedLogger) observeDepth() {
	if b.metrics != nil {
		b.metrics.AuditQueueDepth.Set(float64(len(b.queue)))
	}
}

// drain writes queued records until Close.
func (b *BufferedLogger) drain() {
	for event := range b.queue {
		b.write(event)
		b.observeDepth()
	}
	close(b.done)
}

// write persists one record, retrying transient sink failures. A record that
// cannot be persisted is emitted to the process log; it must survive
// somewhere.
func (b *BufferedLogger) write(event *Event) {
	var err error
	for attempt := 0; attempt <= b.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if err = b.inner.Log(context.Background(), event); err == nil {
			if b.metrics != nil {
				b.metrics.AuditRecordsTotal.WithLabelValues(string(event.Type)).Inc()
			}
			return
		}
	}

	if b.metrics != nil {
		b.metrics.AuditWriteFailures.Inc()
	}
	raw, marshalErr := event.ToJSON()
	if marshalErr != nil {
		raw = []byte(event.RecordID)
	}
	b.logger.WithError(err).WithField("record", string(raw)).Error("audit sink write failed; record preserved in process log")
}

// Close drains the queue, then closes the wrapped sink.
func (b *BufferedLogger) Close() error {
	b.closeOnce.Do(func() {
		close(b.queue)
	})
	<-b.done
	return b.inner.Close()
}
