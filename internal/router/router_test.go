package router

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/vikiysara/sprout-backend/internal/provider"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string // model of each call, in order
	times []time.Time
	// generate receives the attempt number for the model (1-based).
	generate func(ctx context.Context, model, prompt string, attempt int) (string, error)
}

func (f *fakeBackend) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.times = append(f.times, time.Now())
	attempt := 0
	for _, m := range f.calls {
		if m == model {
			attempt++
		}
	}
	f.mu.Unlock()
	return f.generate(ctx, model, prompt, attempt)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testConfig(tiers ...string) Config {
	return Config{
		Tiers:         tiers,
		MaxRetries:    2,
		Timeout:       50 * time.Millisecond,
		BackoffBase:   2.0,
		BackoffUnit:   5 * time.Millisecond,
		MinAttemptGap: time.Millisecond,
	}
}

func TestCandidates_Ordering(t *testing.T) {
	r := New(&fakeBackend{}, testConfig("a", "b", "c"))

	cases := []struct {
		preferred string
		want      []string
	}{
		{"", []string{"a", "b", "c"}},
		{"x", []string{"x", "a", "b", "c"}},
		{"b", []string{"b", "a", "c"}},
		{"a", []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		got := r.candidates(tc.preferred)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("preferred %q: expected %v, got %v", tc.preferred, tc.want, got)
		}
	}
}

func TestCandidates_DuplicateTiers(t *testing.T) {
	r := New(&fakeBackend{}, testConfig("a", "b", "a", "c", "b"))
	got := r.candidates("")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRoute_RateLimitedTriesEachTierOnce(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "", &provider.Error{Kind: provider.KindRateLimited, Provider: "fake", Model: model, StatusCode: 429}
		},
	}
	r := New(backend, testConfig("a", "b", "c"))

	_, err := r.Route(context.Background(), "hi", "")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	want := []string{"a", "b", "c"}
	if got := backend.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected one attempt per tier %v, got %v", want, got)
	}
}

func TestRoute_NotFoundAdvancesImmediately(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			if model == "a" {
				return "", &provider.Error{Kind: provider.KindNotFound, Provider: "fake", Model: model, StatusCode: 404}
			}
			return "from b", nil
		},
	}
	r := New(backend, testConfig("a", "b"))

	text, err := r.Route(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if text != "from b" {
		t.Errorf("expected 'from b', got %q", text)
	}

	want := []string{"a", "b"}
	if got := backend.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestRoute_TimeoutThenSuccessOnSameTier(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			if attempt == 1 {
				<-ctx.Done() // sit past the attempt deadline
				return "", ctx.Err()
			}
			return "recovered", nil
		},
	}
	r := New(backend, testConfig("a", "b"))

	text, err := r.Route(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if text != "recovered" {
		t.Errorf("expected 'recovered', got %q", text)
	}

	want := []string{"a", "a"}
	if got := backend.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected retry on same tier %v, got %v", want, got)
	}
}

func TestRoute_EmptyTextIsNeverSuccess(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "   \n", nil
		},
	}
	r := New(backend, testConfig("a", "b"))

	_, err := r.Route(context.Background(), "hi", "")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	// Blank text consumes the full retry budget on each tier.
	want := []string{"a", "a", "b", "b"}
	if got := backend.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestRoute_TransientConsumesRetriesThenAdvances(t *testing.T) {
	transient := &provider.Error{Kind: provider.KindTransient, Provider: "fake", StatusCode: 500}
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "", transient
		},
	}
	r := New(backend, testConfig("a", "b"))

	_, err := r.Route(context.Background(), "hi", "")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	want := []string{"a", "a", "b", "b"}
	if got := backend.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected exactly MaxRetries attempts per tier %v, got %v", want, got)
	}
}

func TestRoute_BackoffStrictlyIncreasing(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "", &provider.Error{Kind: provider.KindTransient, Provider: "fake", StatusCode: 500}
		},
	}
	cfg := testConfig("a")
	cfg.MaxRetries = 3
	cfg.BackoffUnit = 10 * time.Millisecond
	r := New(backend, cfg)

	_, err := r.Route(context.Background(), "hi", "")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	backend.mu.Lock()
	times := append([]time.Time(nil), backend.times...)
	backend.mu.Unlock()

	if len(times) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(times))
	}
	gap1 := times[1].Sub(times[0])
	gap2 := times[2].Sub(times[1])
	if gap2 <= gap1 {
		t.Errorf("expected strictly increasing backoff, got %s then %s", gap1, gap2)
	}
	if gap1 < cfg.MinAttemptGap {
		t.Errorf("first gap %s below minimum attempt gap %s", gap1, cfg.MinAttemptGap)
	}
}

func TestRoute_PreferredModelTriedFirst(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "from " + model, nil
		},
	}
	r := New(backend, testConfig("a", "b"))

	text, err := r.Route(context.Background(), "hi", "custom-model")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if text != "from custom-model" {
		t.Errorf("expected preferred model response, got %q", text)
	}
	if got := backend.callLog(); len(got) != 1 || got[0] != "custom-model" {
		t.Errorf("expected single call to custom-model, got %v", got)
	}
}

func TestRoute_CancelStopsSweepPromptly(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	cfg := testConfig("a", "b", "c")
	cfg.Timeout = 5 * time.Second
	r := New(backend, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Route(ctx, "hi", "")
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("cancellation took %s, expected prompt return", elapsed)
	}
	if got := backend.callLog(); len(got) != 1 {
		t.Errorf("expected no attempts after cancellation, got %v", got)
	}
}

func TestRoute_EmptyPromptRejected(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			t.Error("backend should not be called for an empty prompt")
			return "", nil
		},
	}
	r := New(backend, testConfig("a"))

	if _, err := r.Route(context.Background(), "   ", ""); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestRoute_ConcurrentCallsDoNotCrossContaminate(t *testing.T) {
	backend := &fakeBackend{
		generate: func(ctx context.Context, model, prompt string, attempt int) (string, error) {
			return "echo:" + prompt, nil
		},
	}
	r := New(backend, testConfig("a", "b"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prompt := fmt.Sprintf("prompt-%d", i)
			text, err := r.Route(context.Background(), prompt, "")
			if err != nil {
				t.Errorf("Route failed: %v", err)
				return
			}
			if text != "echo:"+prompt {
				t.Errorf("cross-contaminated result: prompt %q got %q", prompt, text)
			}
		}(i)
	}
	wg.Wait()
}
