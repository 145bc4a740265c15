package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Throttle when a request would wait longer than MaxWait.
var ErrRateLimited = effect.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")

// ThrottleConfig defines configuration for request pacing.
type ThrottleConfig struct {
	// Rate is the number of requests allowed per Per. Values below 1 are treated as 1.
	Rate int

	// Per is the period Rate applies to. Defaults to one second.
	Per time.Duration

	// Slack is the number of requests that may be absorbed in a burst.
	// Zero disables slack.
	Slack int

	// MaxWait bounds how long a request may be held. A request that would
	// wait longer fails with ErrRateLimited. Zero waits as long as the request context allows.
	MaxWait time.Duration

	// KeyFunc selects the bucket of a request. Requests sharing a key share a
	// limiter. Nil puts every request in one bucket.
	KeyFunc func(req *common.Request) string

	// Clock overrides the clock of the pacing limiter used when MaxWait is zero.
	// Used in tests.
	Clock ratelimit.Clock
}

// UberRateLimiter keeps one go.uber.org/ratelimit limiter per key.
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	opts     []ratelimit.Option
	rate     int
}

// NewUberRateLimiter creates a keyed limiter that allows rate takes per period.
func NewUberRateLimiter(rate int, opts ...ratelimit.Option) *UberRateLimiter {
	if rate < 1 {
		rate = 1
	}
	return &UberRateLimiter{rate: rate, opts: opts}
}

// getLimiter gets or creates a limiter for the given key
func (u *UberRateLimiter) getLimiter(key string) ratelimit.Limiter {
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(u.rate, u.opts...)
	u.limiters.Store(key, limiter)
	return limiter
}

// Take blocks until the limiter of key lets the next request through and
// returns the time it was released.
func (u *UberRateLimiter) Take(key string) time.Time {
	return u.getLimiter(key).Take()
}

// reservingLimiter keeps one golang.org/x/time/rate limiter per key.
// Reservations that are not honoured are cancelled and their slot returns to
// the bucket.
type reservingLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newReservingLimiter(n int, per time.Duration, slack int) *reservingLimiter {
	if n < 1 {
		n = 1
	}
	return &reservingLimiter{
		limit: rate.Every(per / time.Duration(n)),
		burst: 1 + max(slack, 0),
	}
}

func (l *reservingLimiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return limiter.(*rate.Limiter)
}

// Throttle creates a middleware that paces requests with a leaky bucket.
// Requests are delayed, not dropped, unless the wait would exceed MaxWait or
// the request context ends first.
//
// With a MaxWait the wait is known before the request commits to it: a
// request that would wait too long, or whose context ends while waiting,
// gives its slot back. Without one, requests are paced by go.uber.org/ratelimit
// and a request abandoned by its context still spends its slot.
func Throttle(cfg ThrottleConfig) Middleware {
	per := cfg.Per
	if per <= 0 {
		per = time.Second
	}
	keyOf := func(req *common.Request) string {
		if cfg.KeyFunc != nil {
			return cfg.KeyFunc(req)
		}
		return ""
	}

	if cfg.MaxWait > 0 {
		limiter := newReservingLimiter(cfg.Rate, per, cfg.Slack)
		return func(req *common.Request) (*common.Request, error) {
			now := time.Now()
			r := limiter.get(keyOf(req)).ReserveN(now, 1)
			if !r.OK() {
				return nil, ErrRateLimited
			}
			delay := r.DelayFrom(now)
			if delay > cfg.MaxWait {
				r.CancelAt(now)
				return nil, ErrRateLimited
			}
			if delay == 0 {
				return req, nil
			}

			timer := time.NewTimer(delay)
			defer timer.Stop()
			ctx := req.Context()
			select {
			case <-timer.C:
				return req, nil
			case <-ctx.Done():
				r.Cancel()
				return nil, ctx.Err()
			}
		}
	}

	opts := []ratelimit.Option{ratelimit.Per(per)}
	if cfg.Slack > 0 {
		opts = append(opts, ratelimit.WithSlack(cfg.Slack))
	} else {
		opts = append(opts, ratelimit.WithoutSlack)
	}
	if cfg.Clock != nil {
		opts = append(opts, ratelimit.WithClock(cfg.Clock))
	}
	limiter := NewUberRateLimiter(cfg.Rate, opts...)

	return func(req *common.Request) (*common.Request, error) {
		key := keyOf(req)
		released := make(chan struct{})
		go func() {
			limiter.Take(key)
			close(released)
		}()

		ctx := req.Context()
		select {
		case <-released:
			return req, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ClientIPKey is a ThrottleConfig.KeyFunc that buckets requests by client IP.
// It requires the ClientIP middleware to run first.
func ClientIPKey(req *common.Request) string {
	return GetClientIP(req)
}
