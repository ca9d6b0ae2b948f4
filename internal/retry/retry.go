package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Policy bounds how a fallible remote call is re-attempted. Policies are
// passed per call; the package holds no state between invocations.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	IsRetryable  func(error) bool
}

// StatusError is a remote call that completed with a non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Body)
}

// Transient classifies errors the way the pipeline's adapters need: network
// failures and timeouts, rate limiting and server-side statuses retry;
// everything else (auth, validation, other 4xx) surfaces immediately.
func Transient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// linear waits InitialDelay * attemptNumber between tries.
type linear struct {
	initial time.Duration
	attempt int64
}

func (l *linear) NextBackOff() time.Duration {
	l.attempt++
	return l.initial * time.Duration(l.attempt)
}

func (l *linear) Reset() { l.attempt = 0 }

// Do invokes op up to policy.MaxAttempts times and returns the last observed
// error once attempts are exhausted or the error is classified non-retryable.
// Each retry is logged with its attempt number and the triggering error.
func Do(ctx context.Context, log *logrus.Entry, name string, policy Policy, op func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if policy.IsRetryable != nil && !policy.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var bo backoff.BackOff = &linear{initial: policy.InitialDelay}
	bo = backoff.WithMaxRetries(bo, uint64(policy.MaxAttempts-1))
	bo = backoff.WithContext(bo, ctx)

	notify := func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt,
			"wait":      wait.String(),
			"error":     err.Error(),
		}).Warn("remote call failed, retrying")
	}

	return backoff.RetryNotify(wrapped, bo, notify)
}
