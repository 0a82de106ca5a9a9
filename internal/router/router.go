package router

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/vikiysara/sprout-backend/internal/provider"
)

// ErrExhausted is returned when every candidate model has been tried
// without producing usable text. Callers substitute their own
// user-facing fallback; the router never fabricates reply text.
var ErrExhausted = errors.New("router: all model tiers exhausted")

var errEmptyResponse = errors.New("router: empty response from model")

const (
	DefaultMaxRetries    = 2
	DefaultTimeout       = 12 * time.Second
	DefaultBackoffBase   = 1.5
	DefaultBackoffUnit   = time.Second
	DefaultMinAttemptGap = 250 * time.Millisecond
)

// Config is frozen at construction; the router never mutates it and it
// is safe to share across concurrent Route calls.
type Config struct {
	// Tiers is the ranked model fallback order, most preferred first.
	Tiers []string
	// MaxRetries is the attempt budget per model.
	MaxRetries int
	// Timeout bounds each individual backend call.
	Timeout time.Duration
	// BackoffBase controls the exponential retry delay on one model:
	// the wait before attempt n+1 is BackoffUnit * BackoffBase^n.
	BackoffBase float64
	BackoffUnit time.Duration
	// MinAttemptGap is the floor on the delay between two attempts on
	// the same model, so instantaneous rejections cannot tight-loop.
	MinAttemptGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BackoffBase <= 1.0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = DefaultBackoffUnit
	}
	if c.MinAttemptGap <= 0 {
		c.MinAttemptGap = DefaultMinAttemptGap
	}
	return c
}

// Router walks the model tier list for each request: retry transient
// failures on a model with exponential backoff, abandon a model
// immediately on quota or not-found rejections, and fall through to the
// next tier until one returns non-empty text. It keeps no state between
// calls and is safe for concurrent use.
type Router struct {
	backend provider.Backend
	cfg     Config
}

func New(backend provider.Backend, cfg Config) *Router {
	return &Router{backend: backend, cfg: cfg.withDefaults()}
}

// Route returns the first non-empty generation for prompt, trying the
// caller's preferred model first (when given) and then each configured
// tier in order. ErrExhausted means no model produced usable text; a
// context error means the caller gave up first.
func (r *Router) Route(ctx context.Context, prompt, preferredModel string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("router: empty prompt")
	}

	for _, model := range r.candidates(preferredModel) {
		text, err := r.tryModel(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("router: model %s exhausted, trying next tier: %v", model, err)
	}

	return "", ErrExhausted
}

// candidates places the preferred model first, then the configured
// tiers in order, with duplicates removed.
func (r *Router) candidates(preferred string) []string {
	out := make([]string, 0, len(r.cfg.Tiers)+1)
	seen := make(map[string]bool, len(r.cfg.Tiers)+1)
	if preferred != "" {
		out = append(out, preferred)
		seen[preferred] = true
	}
	for _, m := range r.cfg.Tiers {
		if !seen[m] {
			out = append(out, m)
			seen[m] = true
		}
	}
	return out
}

// tryModel spends this model's attempt budget. Rate-limit and not-found
// rejections are permanent for the tier; timeouts, transient provider
// errors, and blank responses consume a retry.
func (r *Router) tryModel(ctx context.Context, model, prompt string) (string, error) {
	attempt := func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		text, err := r.backend.Generate(attemptCtx, model, prompt)
		cancel()

		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if err != nil {
			switch provider.KindOf(err) {
			case provider.KindRateLimited, provider.KindNotFound:
				return "", backoff.Permanent(err)
			default:
				return "", err
			}
		}
		if strings.TrimSpace(text) == "" {
			return "", errEmptyResponse
		}
		return text, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.cfg.MaxRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Printf("router: model %s attempt failed, retrying in %s: %v", model, wait, err)
		}),
	)
}

func (r *Router) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(r.cfg.BackoffBase * float64(r.cfg.BackoffUnit))
	if b.InitialInterval < r.cfg.MinAttemptGap {
		b.InitialInterval = r.cfg.MinAttemptGap
	}
	b.Multiplier = r.cfg.BackoffBase
	b.RandomizationFactor = 0
	return b
}
