package embeddings

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the retry behavior of a Retrying embedder.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries uint64

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Retrying wraps an Embedder with bounded exponential backoff. Transient
// backend failures (cold model loads, brief network drops) get retried;
// context cancellation aborts immediately.
type Retrying struct {
	inner Embedder
	cfg   RetryConfig
}

// WithRetry wraps an embedder with the given retry policy.
func WithRetry(inner Embedder, cfg RetryConfig) *Retrying {
	if cfg.MaxRetries == 0 && cfg.InitialInterval == 0 {
		cfg = DefaultRetryConfig()
	}
	return &Retrying{inner: inner, cfg: cfg}
}

// Embed converts text into a vector embedding, retrying on failure.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval

	return backoff.RetryWithData(func() ([]float32, error) {
		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return v, nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, r.cfg.MaxRetries), ctx))
}

// Close releases the wrapped embedder.
func (r *Retrying) Close() error {
	return r.inner.Close()
}

var _ Embedder = (*Retrying)(nil)
