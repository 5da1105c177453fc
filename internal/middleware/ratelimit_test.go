package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/firescope/resource-governor/internal/ratelimit"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/gin-gonic/gin"
)

type deadStore struct{}

var errDead = errors.New("store down")

func (deadStore) Get(ctx context.Context, key string) (string, error)  { return "", errDead }
func (deadStore) Incr(ctx context.Context, key string) (int64, error) { return 0, errDead }
func (deadStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errDead
}
func (deadStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return errDead
}
func (deadStore) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return 0, errDead
}
func (deadStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return errDead
}
func (deadStore) Ping(ctx context.Context) error { return errDead }

func newLimitedRouter(limiter *ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func TestRateLimitMiddlewareDeniesOverQuota(t *testing.T) {
	limiter := ratelimit.New(storage.NewMemoryStore(), nil, ratelimit.Config{
		Policies: []ratelimit.Policy{{Endpoint: "/ping", Capacity: 2, Window: ratelimit.WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: ratelimit.AdaptiveConfig{
			LowLoadThreshold:  1,
			HighLoadThreshold: 1 << 30,
			BoostFactor:       1.5,
			ShedFactor:        0.5,
			LoadWindow:        60 * time.Second,
		},
	})
	router := newLimitedRouter(limiter)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)

		if w.Code == http.StatusTooManyRequests {
			if w.Header().Get("X-RateLimit-Limit") == "" {
				t.Error("denied response should carry rate limit headers")
			}
			if w.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Errorf("denied response should report 0 remaining, got %q", w.Header().Get("X-RateLimit-Remaining"))
			}
		}
	}

	// The first request sees a boosted limit on an idle system; by the
	// fourth the base quota of 2 is exhausted either way
	if statuses[3] != http.StatusTooManyRequests {
		t.Fatalf("4th request should be denied, statuses: %v", statuses)
	}
	if statuses[0] != http.StatusOK {
		t.Fatalf("1st request should pass, statuses: %v", statuses)
	}
}

// Counter store that records when quota is committed
type orderedStore struct {
	*storage.MemoryStore
	events *[]string
}

func (s orderedStore) Incr(ctx context.Context, key string) (int64, error) {
	*s.events = append(*s.events, "incr")
	return s.MemoryStore.Incr(ctx, key)
}

func TestRecordRequestRunsAfterDispatch(t *testing.T) {
	var events []string
	store := orderedStore{MemoryStore: storage.NewMemoryStore(), events: &events}
	limiter := ratelimit.New(store, nil, ratelimit.Config{
		Policies: []ratelimit.Policy{{Endpoint: "/ping", Capacity: 10, Window: ratelimit.WindowMinute}},
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/ping", func(c *gin.Context) {
		events = append(events, "handler")
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("request should pass, got %d", w.Code)
	}
	if len(events) != 2 || events[0] != "handler" || events[1] != "incr" {
		t.Fatalf("quota must be committed after the handler runs, got %v", events)
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	limiter := ratelimit.New(deadStore{}, nil, ratelimit.Config{
		Policies: []ratelimit.Policy{{Endpoint: "/ping", Capacity: 1, Window: ratelimit.WindowMinute}},
	})
	router := newLimitedRouter(limiter)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d should pass when the store is down, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "" {
			t.Error("fail-open responses should not advertise a limit")
		}
	}
}
