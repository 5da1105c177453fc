package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/firescope/resource-governor/internal/storage"
)

type stubResolver struct {
	tier string
	err  error
}

func (r *stubResolver) LookupTier(ctx context.Context, userID string) (string, error) {
	return r.tier, r.err
}

// CounterStore that fails every call, for fail-open tests
type failStore struct{}

var errStoreDown = errors.New("store down")

func (failStore) Get(ctx context.Context, key string) (string, error)  { return "", errStoreDown }
func (failStore) Incr(ctx context.Context, key string) (int64, error) { return 0, errStoreDown }
func (failStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errStoreDown
}
func (failStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return errStoreDown
}
func (failStore) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return 0, errStoreDown
}
func (failStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return errStoreDown
}
func (failStore) Ping(ctx context.Context) error { return errStoreDown }

// Seeds enough load that the limiter neither boosts nor sheds
func seedNeutralLoad(t *testing.T, store *storage.MemoryStore, now time.Time, entries int) {
	t.Helper()
	for i := 0; i < entries; i++ {
		member := fmt.Sprintf("seed-%d", i)
		if err := store.ZAdd(context.Background(), loadLogKey, float64(now.Unix()), member); err != nil {
			t.Fatalf("seeding load log: %v", err)
		}
	}
}

func neutralAdaptive() AdaptiveConfig {
	return AdaptiveConfig{
		LowLoadThreshold:  1,
		HighLoadThreshold: 1 << 30,
		BoostFactor:       1.5,
		ShedFactor:        0.5,
		LoadWindow:        60 * time.Second,
	}
}

func TestCheckRateLimitEnforcesQuota(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 3, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, decision := limiter.CheckRateLimit(ctx, "/search", "u1")
		if !allowed {
			t.Fatalf("request %d should be allowed, got %+v", i+1, decision)
		}
		limiter.RecordRequest(ctx, "/search", "u1")
	}

	allowed, decision := limiter.CheckRateLimit(ctx, "/search", "u1")
	if allowed {
		t.Fatalf("4th request should be denied, got %+v", decision)
	}
	if decision.Remaining != 0 {
		t.Errorf("denied decision should report 0 remaining, got %d", decision.Remaining)
	}
	if decision.Limit != 3 {
		t.Errorf("expected limit 3, got %d", decision.Limit)
	}
}

func TestCheckRateLimitDoesNotConsumeQuota(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 5, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		allowed, decision := limiter.CheckRateLimit(ctx, "/search", "u1")
		if !allowed {
			t.Fatalf("check %d should be allowed", i+1)
		}
		if decision.Remaining != 5 {
			t.Fatalf("check must not consume quota; remaining = %d on check %d", decision.Remaining, i+1)
		}
	}
}

func TestTierMultiplierScalesLimit(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "premium"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 5, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0, "premium": 2.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 10 {
		t.Errorf("premium should double the base limit: want 10, got %d", spec.Capacity)
	}
	if spec.Window != WindowMinute {
		t.Errorf("window should be unchanged, got %s", spec.Window)
	}
}

func TestUnknownTierUsesBaseLimit(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "platinum"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 5, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0, "premium": 2.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 5 {
		t.Errorf("unknown tier should fall back to multiplier 1.0: want 5, got %d", spec.Capacity)
	}
}

func TestResolverErrorFallsBackToDefaultTier(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{err: errors.New("profile store down")}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 5, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0, "premium": 2.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 5 {
		t.Errorf("resolver failure should use the default tier: want 5, got %d", spec.Capacity)
	}
}

func TestLowLoadBoostsLimit(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })

	// Empty load log, well under the low threshold
	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 60, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: AdaptiveConfig{
			LowLoadThreshold:  100,
			HighLoadThreshold: 1000,
			BoostFactor:       1.5,
			ShedFactor:        0.5,
			LoadWindow:        60 * time.Second,
		},
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 90 {
		t.Errorf("low load should boost 60 to 90, got %d", spec.Capacity)
	}
}

func TestHighLoadShedsLimit(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 5)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 60, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: AdaptiveConfig{
			LowLoadThreshold:  1,
			HighLoadThreshold: 5,
			BoostFactor:       1.5,
			ShedFactor:        0.5,
			LoadWindow:        60 * time.Second,
		},
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 30 {
		t.Errorf("high load should shed 60 to 30, got %d", spec.Capacity)
	}
}

func TestShedNeverDropsBelowOne(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 5)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 1, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: AdaptiveConfig{
			LowLoadThreshold:  1,
			HighLoadThreshold: 5,
			BoostFactor:       1.5,
			ShedFactor:        0.5,
			LoadWindow:        60 * time.Second,
		},
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/search", "u1")
	if spec.Capacity != 1 {
		t.Errorf("shedding must not zero out a positive limit, got %d", spec.Capacity)
	}
}

func TestWindowRollover(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 30, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 1, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	limiter.RecordRequest(ctx, "/search", "u1")

	if allowed, _ := limiter.CheckRateLimit(ctx, "/search", "u1"); allowed {
		t.Fatal("quota should be exhausted in the current window")
	}

	// Next minute bucket
	now = now.Add(time.Minute)

	if allowed, _ := limiter.CheckRateLimit(ctx, "/search", "u1"); !allowed {
		t.Fatal("quota should reset when the window rolls over")
	}
}

func TestUnconfiguredEndpointUsesDefaultPolicy(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })
	seedNeutralLoad(t, store, now, 1)

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Tiers:         map[string]float64{"free": 1.0},
		DefaultPolicy: Policy{Capacity: 42, Window: WindowHour},
		Adaptive:      neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	spec := limiter.GetRateLimit(context.Background(), "/anything", "u1")
	if spec.Capacity != 42 || spec.Window != WindowHour {
		t.Errorf("expected default policy 42/hour, got %d/%s", spec.Capacity, spec.Window)
	}
}

func TestStoreFailureFailsOpen(t *testing.T) {
	limiter := New(failStore{}, &stubResolver{tier: "free"}, Config{
		Policies: []Policy{{Endpoint: "/search", Capacity: 1, Window: WindowMinute}},
		Tiers:    map[string]float64{"free": 1.0},
	})

	ctx := context.Background()
	allowed, decision := limiter.CheckRateLimit(ctx, "/search", "u1")
	if !allowed {
		t.Fatal("a store outage must not block requests")
	}
	if decision.Limit != 0 {
		t.Errorf("fail-open decision should carry no limit info, got %+v", decision)
	}

	// Recording against a dead store must not panic or block
	limiter.RecordRequest(ctx, "/search", "u1")
}

func TestRecordRequestTrimsLoadLog(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	store.SetNow(func() time.Time { return now })

	// An entry from three load windows ago
	stale := now.Add(-3 * 60 * time.Second)
	if err := store.ZAdd(context.Background(), loadLogKey, float64(stale.Unix()), "old"); err != nil {
		t.Fatalf("seeding stale entry: %v", err)
	}

	limiter := New(store, &stubResolver{tier: "free"}, Config{
		Tiers:    map[string]float64{"free": 1.0},
		Adaptive: neutralAdaptive(),
	})
	limiter.now = func() time.Time { return now }

	limiter.RecordRequest(context.Background(), "/search", "u1")

	count, err := store.ZCount(context.Background(), loadLogKey, 0, float64(now.Unix()))
	if err != nil {
		t.Fatalf("counting load log: %v", err)
	}
	if count != 1 {
		t.Errorf("stale entries should be trimmed; want 1 entry, got %d", count)
	}
}
