package sensor

import (
	"context"
	"errors"
	"log"
	"time"
)

const insertTimeout = 5 * time.Second

// ErrQueueFull is returned when a reading cannot be buffered because
// the ingest worker has fallen behind.
var ErrQueueFull = errors.New("sensor: ingest queue full")

// Queue decouples the HTTP ingest path from Postgres writes: handlers
// enqueue, a single worker drains to the store.
type Queue struct {
	store    Store
	readings chan *Reading
}

func NewQueue(store Store, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		store:    store,
		readings: make(chan *Reading, buffer),
	}
}

// Enqueue buffers a reading for persistence. It never blocks: a full
// buffer drops the reading with ErrQueueFull so the device can retry.
func (q *Queue) Enqueue(ctx context.Context, r *Reading) error {
	select {
	case q.readings <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Process drains the queue until ctx is cancelled, then flushes
// whatever is still buffered before returning.
func (q *Queue) Process(ctx context.Context) {
	for {
		select {
		case r := <-q.readings:
			q.write(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-q.readings:
					q.write(r)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) write(r *Reading) {
	// Insert under a fresh context so shutdown still flushes.
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	if err := q.store.Insert(ctx, r); err != nil {
		log.Printf("sensor: failed to persist reading from device %s: %v", r.DeviceID, err)
	}
}
