package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// fallbackRate is the conservative request rate used until the service has
// reported quota headers at least once (~1.2 req/s, well under the
// authenticated GitHub budget of 5000/hour).
const fallbackRate = 1.2

// Governor owns the process-wide quota state. Every API call must acquire a
// permit first; quota headers observed on responses are authoritative and
// overwrite the optimistic local decrement. Workers share a single Governor,
// so an exhausted quota blocks all of them before any call that is known in
// advance to fail.
type Governor struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	observed  bool
	probed    bool
	now       func() time.Time
	notifyCh  chan struct{}
	fallback  *rate.Limiter
}

func NewGovernor() *Governor {
	return &Governor{
		remaining: 5000,
		reset:     time.Now().Add(1 * time.Hour),
		now:       time.Now,
		notifyCh:  make(chan struct{}),
		fallback:  rate.NewLimiter(rate.Limit(fallbackRate), 1),
	}
}

func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// WaitHint reports how long a caller rejected by the service would have to
// wait before the Governor expects a permit to succeed. Zero means the
// Governor has no quota signal to wait on.
func (g *Governor) WaitHint() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var hint time.Duration
	if now.Before(g.cooldown) {
		hint = g.cooldown.Sub(now)
	}
	if g.observed && g.remaining == 0 && now.Before(g.reset) {
		if w := g.reset.Sub(now); w > hint {
			hint = w
		}
	}
	return hint
}

// Acquire blocks until one API call may be issued or ctx is done. While no
// quota headers have been observed it throttles to a conservative fixed rate
// instead of trusting the optimistic local count.
func (g *Governor) Acquire(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if g == nil || g.now == nil || g.notifyCh == nil {
		return fmt.Errorf("Acquire: Governor not initialized (use NewGovernor)")
	}

	for {
		g.mu.Lock()
		now := g.now()

		if now.Before(g.cooldown) {
			until := g.cooldown
			ch := g.notifyCh
			g.mu.Unlock()
			if err := g.waitUntil(ctx, now, until, ch); err != nil {
				return err
			}
			continue
		}

		if !g.observed {
			g.mu.Unlock()
			return g.fallback.Wait(ctx)
		}

		if g.remaining > 0 {
			g.remaining--
			g.mu.Unlock()
			return nil
		}

		// Reset has passed but no refreshed budget observed yet: allow exactly
		// one probe request, then block until UpdateFromResponse.
		if !now.Before(g.reset) {
			if !g.probed {
				g.probed = true
				g.mu.Unlock()
				return nil
			}
			ch := g.notifyCh
			g.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}

		until := g.reset
		ch := g.notifyCh
		g.mu.Unlock()
		if err := g.waitUntil(ctx, now, until, ch); err != nil {
			return err
		}
	}
}

// waitUntil sleeps until the deadline, a budget-change notification, or ctx
// cancellation, whichever comes first.
func (g *Governor) waitUntil(ctx context.Context, now, until time.Time, ch <-chan struct{}) error {
	wait := until.Sub(now)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	}
}

func (g *Governor) signalLocked() {
	close(g.notifyCh)
	g.notifyCh = make(chan struct{})
}

// UpdateFromResponse folds the quota headers of a real API response into the
// shared state. Header values are authoritative; Retry-After extends the
// cooldown window during which no permits are granted.
func (g *Governor) UpdateFromResponse(resp *http.Response) {
	if g == nil || resp == nil || g.now == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	changed := false

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := g.now().Add(time.Duration(seconds) * time.Second)
			if until.After(g.cooldown) {
				g.cooldown = until
				changed = true
			}
		}
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 {
			g.observed = true
			if g.remaining != val {
				g.remaining = val
				changed = true
			}
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			g.observed = true
			newReset := time.Unix(val, 0)
			if !g.reset.Equal(newReset) {
				g.reset = newReset
				changed = true
			}
		}
	}

	if changed {
		g.probed = false
		g.signalLocked()
	}
}
