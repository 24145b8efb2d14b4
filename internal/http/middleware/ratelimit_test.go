package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_KeyUsesWindowStart(t *testing.T) {
	cfg := RateLimitConfig{KeyPrefix: "rl:ip:", Window: 10 * time.Second}
	ts := time.Unix(1_700_000_007, 0)

	assert.Equal(t, "rl:ip:10.0.0.1:1700000000", cfg.Key("10.0.0.1", ts))
	assert.Equal(t, cfg.Key("10.0.0.1", ts), cfg.Key("10.0.0.1", ts.Add(2*time.Second)))
}

func TestRateLimitMiddleware_PassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	mw := RateLimitMiddleware(RateLimitConfig{RPS: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/rate", nil), rec)
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimitMiddleware_FailsOpenOnRedisError(t *testing.T) {
	// nothing listens on this port, so every pipeline exec fails
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	e := echo.New()
	mw := RateLimitMiddleware(RateLimitConfig{Redis: rdb, RPS: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/cars", nil), rec)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// counterHook answers INCR/EXPIRE pipelines from memory so no redis server is needed.
type counterHook struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (h *counterHook) DialHook(next redis.DialHook) redis.DialHook          { return next }
func (h *counterHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *counterHook) ProcessPipelineHook(_ redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, cmd := range cmds {
			switch c := cmd.(type) {
			case *redis.IntCmd:
				if c.Name() == "incr" {
					key := c.Args()[1].(string)
					h.counts[key]++
					c.SetVal(h.counts[key])
				}
			case *redis.BoolCmd:
				c.SetVal(true)
			}
		}
		return nil
	}
}

func TestRateLimitMiddleware_RejectsOverLimitPerIP(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	rdb.AddHook(&counterHook{counts: map[string]int64{}})

	e := echo.New()
	// an hour-long window keeps the test away from window boundaries
	mw := RateLimitMiddleware(RateLimitConfig{Redis: rdb, RPS: 2, Window: time.Hour, RetryAfterHint: true})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rate", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		return rec
	}

	assert.Equal(t, http.StatusCreated, call("10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusCreated, call("10.0.0.1:5001").Code)

	rec := call("10.0.0.1:5002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limited"}`, rec.Body.String())
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, secs > 0 && secs <= 3600)

	// another client has its own window
	assert.Equal(t, http.StatusCreated, call("10.0.0.2:5000").Code)
}
