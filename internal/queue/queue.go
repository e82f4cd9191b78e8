// Package queue decouples message discovery from message processing with
// an unbounded FIFO drained by a single background consumer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

var (
	// ErrNotStarted is returned by Submit when the consumer is not running.
	ErrNotStarted = errors.New("processing queue not started")

	// ErrStopping is returned by Start while the consumer from an earlier
	// run has not yet exited.
	ErrStopping = errors.New("processing queue consumer still stopping")
)

const defaultPollTimeout = time.Second

// Callback processes one payload on the consumer goroutine.
type Callback[T any] func(ctx context.Context, payload T) error

type item[T any] struct {
	id         string
	payload    T
	callback   Callback[T]
	enqueuedAt time.Time
}

// Queue is a single-consumer FIFO. Submit never blocks on processing.
type Queue[T any] struct {
	log         zerolog.Logger
	pollTimeout time.Duration

	mu        sync.Mutex
	items     []item[T]
	running   bool
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}

	notify chan struct{}

	processed atomic.Int64
	errored   atomic.Int64
}

// New creates a stopped queue. pollTimeout bounds how long the idle
// consumer waits before rechecking for a stop request; zero means one
// second.
func New[T any](pollTimeout time.Duration, logger zerolog.Logger) *Queue[T] {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Queue[T]{
		log:         logger.With().Str("module", "queue").Logger(),
		pollTimeout: pollTimeout,
		notify:      make(chan struct{}, 1),
	}
}

// Start launches the consumer. Calling Start on a running queue is a no-op.
// After a Stop that timed out, Start returns ErrStopping until the old
// consumer has finished its item, so at most one callback runs at a time.
func (q *Queue[T]) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		q.log.Warn().Msg("Queue already running")
		return nil
	}
	if q.done != nil {
		select {
		case <-q.done:
		default:
			q.log.Warn().Msg("Previous consumer has not exited")
			return ErrStopping
		}
	}

	q.running = true
	q.startedAt = time.Now()
	q.stop = make(chan struct{})
	q.done = make(chan struct{})

	go q.consume(ctx, q.stop, q.done)
	q.log.Info().Msg("Processing queue started")
	return nil
}

// Submit enqueues payload with the callback that will process it.
func (q *Queue[T]) Submit(payload T, callback Callback[T]) (string, error) {
	if callback == nil {
		return "", fmt.Errorf("submitting to queue: nil callback")
	}

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return "", ErrNotStarted
	}
	it := item[T]{
		id:         uuid.NewString(),
		payload:    payload,
		callback:   callback,
		enqueuedAt: time.Now(),
	}
	q.items = append(q.items, it)
	size := len(q.items)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	q.log.Debug().Str("item", it.id).Int("size", size).Msg("Item queued")
	return it.id, nil
}

// Stop asks the consumer to exit after its current item and waits up to
// timeout. Items still queued are left unprocessed. It reports whether the
// consumer exited in time.
func (q *Queue[T]) Stop(timeout time.Duration) bool {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return true
	}
	q.running = false
	close(q.stop)
	done := q.done
	q.mu.Unlock()

	q.log.Info().Msg("Stopping processing queue")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		q.log.Info().Msg("Processing queue stopped")
		return true
	case <-timer.C:
		q.log.Warn().Dur("timeout", timeout).Msg("Queue consumer did not stop within timeout")
		return false
	}
}

// Status returns a point-in-time snapshot.
func (q *Queue[T]) Status() model.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	var uptime time.Duration
	if !q.startedAt.IsZero() {
		uptime = time.Since(q.startedAt)
	}
	return model.QueueStatus{
		QueueSize:      len(q.items),
		TotalProcessed: q.processed.Load(),
		TotalErrors:    q.errored.Load(),
		Running:        q.running,
		Uptime:         uptime,
	}
}

// Running reports whether the consumer is accepting work.
func (q *Queue[T]) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *Queue[T]) consume(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	idle := time.NewTimer(q.pollTimeout)
	defer idle.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if it, ok := q.pop(); ok {
			q.run(ctx, it)
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(q.pollTimeout)

		select {
		case <-stop:
			return
		case <-q.notify:
		case <-idle.C:
		}
	}
}

func (q *Queue[T]) pop() (item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item[T]{}, false
	}
	it := q.items[0]
	var zero item[T]
	q.items[0] = zero
	q.items = q.items[1:]
	return it, true
}

// run invokes one callback, counting errors and recovered panics.
func (q *Queue[T]) run(ctx context.Context, it item[T]) {
	logger := q.log.With().Str("item", it.id).Logger()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("callback panic: %v", r)
			}
		}()
		return it.callback(ctx, it.payload)
	}()

	if err != nil {
		q.errored.Add(1)
		logger.Error().Err(err).Dur("waited", start.Sub(it.enqueuedAt)).Msg("Queue item failed")
		return
	}

	q.processed.Add(1)
	logger.Debug().Dur("took", time.Since(start)).Msg("Queue item processed")
}
