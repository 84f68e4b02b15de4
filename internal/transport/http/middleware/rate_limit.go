package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
)

const (
	rateLimitProblemType  = "https://api.trendkart.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the key a per-request throttle is scoped to.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window throttle in front of the
// credential endpoints. It guards raw request volume per client; the
// per-identity and per-origin OTP windows are enforced by the usecases.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

func (r RateLimitRule) usable() bool {
	return r.Identifier != nil && r.Limit > 0 && r.Window > 0
}

// RateLimiter applies request throttles backed by a port.RateLimitStore.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// verdict is the outcome of one rule for one request.
type verdict struct {
	rule      string
	limit     int
	remaining int
	reset     time.Time
	wait      time.Duration
}

func (v verdict) blocked() bool { return v.remaining < 0 }

// tighter reports whether v should drive the response headers over other.
func (v verdict) tighter(other verdict) bool {
	if v.blocked() != other.blocked() {
		return v.blocked()
	}
	if v.remaining != other.remaining {
		return v.remaining < other.remaining
	}
	return v.reset.Before(other.reset)
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewRateLimiter builds a limiter over store. A nil store disables throttling.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the limiter clock.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to the caller's IP as resolved by gin.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		if ip := c.ClientIP(); ip != "" {
			return "ip:" + ip, true
		}
		return "", false
	}
}

// RateLimit returns a Gin middleware enforcing rules in order. Store errors
// let the request through.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.usable() {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var headline *verdict

		for _, rule := range active {
			id, ok := rule.Identifier(c)
			if !ok || id == "" {
				continue
			}

			v, err := rl.check(c, rule, rule.Name+":"+id, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", id),
					zap.Error(err),
				)
				continue
			}

			if v.blocked() {
				rl.logger.Info("request throttled",
					zap.String("rule", rule.Name),
					zap.String("path", c.Request.URL.Path),
					zap.Duration("retry_after", v.wait),
				)
				writeLimitHeaders(c, v)
				rl.reject(c, v)
				return
			}

			if headline == nil || v.tighter(*headline) {
				headline = &v
			}
		}

		if headline != nil {
			writeLimitHeaders(c, *headline)
		}
		c.Next()
	}
}

// check counts the window for key and records the attempt when it fits.
// A blocked verdict carries remaining -1 and a positive wait.
func (rl *RateLimiter) check(c *gin.Context, rule RateLimitRule, key string, now time.Time) (verdict, error) {
	ctx := c.Request.Context()
	store := rl.store

	if err := store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return verdict{}, err
	}
	count, err := store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return verdict{}, err
	}
	oldest, found, err := store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return verdict{}, err
	}

	v := verdict{rule: rule.Name, limit: rule.Limit, reset: now.Add(rule.Window)}
	if found {
		v.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		v.remaining = -1
		v.wait = max(v.reset.Sub(now), time.Second)
		return v, nil
	}

	if err := store.RecordAttempt(ctx, key, now); err != nil {
		return verdict{}, err
	}
	v.remaining = rule.Limit - count - 1
	return v, nil
}

func retrySeconds(wait time.Duration) int {
	return int(math.Ceil(wait.Seconds()))
}

func writeLimitHeaders(c *gin.Context, v verdict) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(v.remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))
	if v.blocked() {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(v.wait)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, v verdict) {
	seconds := retrySeconds(v.wait)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many attempts. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{"rule": v.rule},
	})
}
