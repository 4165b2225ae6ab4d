package uploader

import (
	"time"

	"github.com/shopwatch/feed-uploader/internal/storage"
)

// Policy bounds per-document retries. Retries apply only to errors the
// Retryable classifier accepts; everything else fails immediately.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Retryable      func(error) bool
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		Retryable:      storage.IsRetryable,
	}
}

// normalized clamps the policy to sane bounds.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.Retryable == nil {
		p.Retryable = storage.IsRetryable
	}
	return p
}

// BackoffFor returns the delay before the given retry. attempt counts the
// attempt that just failed, starting at 1; the delay doubles per attempt.
func (p Policy) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialBackoff << (attempt - 1)
}
