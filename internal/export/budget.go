package export

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-github/v81/github"
)

// RequestBudget paces API calls against the GitHub rate limit. It tracks the
// remaining quota and reset time from response headers and honours
// Retry-After cooldowns.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	probed    bool
	now       func() time.Time
	changed   chan struct{}
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
		now:       time.Now,
		changed:   make(chan struct{}),
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire blocks until n requests may be made or ctx is done.
func (b *RequestBudget) Acquire(ctx context.Context, n int) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if n <= 0 {
		return fmt.Errorf("Acquire: n must be > 0 (got %d)", n)
	}
	if b == nil || b.now == nil || b.changed == nil {
		return fmt.Errorf("Acquire: RequestBudget not initialized (use NewRequestBudget)")
	}
	for i := 0; i < n; i++ {
		if err := b.acquireOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *RequestBudget) acquireOne(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.now()
		changed := b.changed

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// The window has reset but no fresh headers were seen yet: let
			// one probe through, then wait for UpdateFromResponse.
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
		default:
			until = b.reset
		}
		b.mu.Unlock()

		if err := wait(ctx, until.Sub(now), until.IsZero(), changed); err != nil {
			return err
		}
	}
}

// wait returns when d elapses (unless forever), changed is closed, or ctx is done.
func wait(ctx context.Context, d time.Duration, forever bool, changed <-chan struct{}) error {
	var timeout <-chan time.Time
	if !forever {
		timer := time.NewTimer(max(d, 0))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	case <-timeout:
		return nil
	}
}

// Observe records the rate-limit headers of a go-github response.
func (b *RequestBudget) Observe(resp *github.Response) {
	if resp == nil {
		return
	}
	b.UpdateFromResponse(resp.Response)
}

func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		if until := b.now().Add(time.Duration(seconds) * time.Second); until.After(b.cooldown) {
			b.cooldown = until
			changed = true
		}
	}
	if val, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && val >= 0 && val != b.remaining {
		b.remaining = val
		changed = true
	}
	if val, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && val > 0 {
		if reset := time.Unix(val, 0); !b.reset.Equal(reset) {
			b.reset = reset
			changed = true
		}
	}

	if changed {
		b.probed = false
		close(b.changed)
		b.changed = make(chan struct{})
	}
}
