package sensor

import (
	"context"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu       sync.Mutex
	inserted []*Reading
}

func (m *mockStore) Insert(ctx context.Context, r *Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, r)
	return nil
}

func (m *mockStore) Recent(ctx context.Context, limit int) ([]*Reading, error) {
	return nil, nil
}

func (m *mockStore) DailyAverages(ctx context.Context, since time.Time) ([]*DailyAverage, error) {
	return nil, nil
}

func (m *mockStore) HistoryLines(ctx context.Context, since time.Time, limit int) ([]string, error) {
	return nil, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

func TestQueue_EnqueueAndDrain(t *testing.T) {
	store := &mockStore{}
	q := NewQueue(store, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Process(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), &Reading{SoilMoisture: i}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for store.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("expected 5 inserts, got %d", store.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestQueue_FlushesOnShutdown(t *testing.T) {
	store := &mockStore{}
	q := NewQueue(store, 8)

	// Buffer readings before the worker ever runs.
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), &Reading{SoilMoisture: i}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Process(ctx)

	if store.count() != 3 {
		t.Errorf("expected 3 inserts on shutdown flush, got %d", store.count())
	}
}

func TestQueue_FullDropsWithError(t *testing.T) {
	store := &mockStore{}
	q := NewQueue(store, 1)

	if err := q.Enqueue(context.Background(), &Reading{}); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	if err := q.Enqueue(context.Background(), &Reading{}); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}
