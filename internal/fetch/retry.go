package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/google/go-github/v81/github"
)

// Class is the retry classification of a failed API call.
type Class int

const (
	// ClassTransient failures are retried with backoff up to Policy.MaxAttempts.
	ClassTransient Class = iota
	// ClassRateLimited failures are retried without consuming an attempt; the
	// wait is delegated to the Governor rather than blind backoff.
	ClassRateLimited
	// ClassPermanent failures terminate the key immediately.
	ClassPermanent
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate-limited"
	case ClassPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify decides how a failed call should be handled.
//
// Transient: network timeouts, connection resets, 5xx.
// Rate-limited: 429, and 403s that GitHub reports as primary or secondary
// rate limits.
// Permanent: 404 (deleted/renamed repository), 401/403 not explained by
// quota (bad credentials), and anything else with a 4xx status.
func Classify(resp *github.Response, err error) Class {
	var rle *github.RateLimitError
	var arle *github.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &arle) {
		return ClassRateLimited
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}

	switch {
	case status == 429:
		return ClassRateLimited
	case status == 404 || status == 410:
		return ClassPermanent
	case status == 401 || status == 403:
		return ClassPermanent
	case status >= 500:
		return ClassTransient
	case status >= 400:
		return ClassPermanent
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	// Unknown failure shape: retrying is bounded, dropping is not recoverable.
	return ClassTransient
}

// Policy bounds the retry loop for transient failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff returns the sleep before retry number attempt (0-based):
// exponential growth from BaseDelay, capped at MaxDelay, with jitter in
// [d/2, d) so concurrent workers do not retry in lockstep.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(half+1)
}

// PermanentError marks a key as not worth retrying. Reason is recorded on the
// checkpoint entry and in the failure report.
type PermanentError struct {
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("permanent failure (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("permanent failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError marks a key whose transient failures outlasted the retry
// budget.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
