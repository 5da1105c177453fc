package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/firescope/resource-governor/internal/storage"
)

const (
	// Sorted set of recent request timestamps, shared by all workers,
	// used to estimate global load
	loadLogKey = "ratelimit:load:log"

	// DefaultTier is assumed whenever tier lookup fails or the caller
	// has no active subscription
	DefaultTier = "free"
)

// Resolves a caller's subscription tier. Implementations must treat a
// missing subscription as an error or return DefaultTier themselves.
type TierResolver interface {
	LookupTier(ctx context.Context, userID string) (string, error)
}

// Enforces per-endpoint quotas scaled by subscription tier and current
// global load. All counter state lives in the shared store so that every
// worker process sees the same quota; the limiter itself is stateless.
type Limiter struct {
	store    storage.CounterStore
	resolver TierResolver

	policies      map[string]Policy
	tiers         map[string]float64
	defaultPolicy Policy
	adaptive      AdaptiveConfig

	now func() time.Time
}

type Config struct {
	Policies      []Policy
	Tiers         map[string]float64
	DefaultPolicy Policy
	Adaptive      AdaptiveConfig
}

func New(store storage.CounterStore, resolver TierResolver, cfg Config) *Limiter {
	if cfg.DefaultPolicy.Capacity <= 0 {
		cfg.DefaultPolicy = Policy{Capacity: 60, Window: WindowMinute}
	}
	if !cfg.DefaultPolicy.Window.Valid() {
		cfg.DefaultPolicy.Window = WindowMinute
	}
	if cfg.Adaptive.LowLoadThreshold <= 0 {
		cfg.Adaptive.LowLoadThreshold = 100
	}
	if cfg.Adaptive.HighLoadThreshold <= 0 {
		cfg.Adaptive.HighLoadThreshold = 1000
	}
	if cfg.Adaptive.BoostFactor <= 0 {
		cfg.Adaptive.BoostFactor = 1.5
	}
	if cfg.Adaptive.ShedFactor <= 0 {
		cfg.Adaptive.ShedFactor = 0.5
	}
	if cfg.Adaptive.LoadWindow <= 0 {
		cfg.Adaptive.LoadWindow = 60 * time.Second
	}

	policies := make(map[string]Policy, len(cfg.Policies))
	for _, p := range cfg.Policies {
		if !p.Window.Valid() {
			p.Window = WindowMinute
		}
		policies[p.Endpoint] = p
	}

	tiers := cfg.Tiers
	if len(tiers) == 0 {
		tiers = map[string]float64{DefaultTier: 1.0}
	}

	return &Limiter{
		store:         store,
		resolver:      resolver,
		policies:      policies,
		tiers:         tiers,
		defaultPolicy: cfg.DefaultPolicy,
		adaptive:      cfg.Adaptive,
		now:           time.Now,
	}
}

// GetRateLimit resolves the caller's effective limit for an endpoint:
// base policy capacity x tier multiplier, adjusted for current load.
// Read-only; never consumes quota.
func (l *Limiter) GetRateLimit(ctx context.Context, endpoint, userID string) LimitSpec {
	policy := l.policyFor(endpoint)

	capacity := int(float64(policy.Capacity) * l.multiplierFor(l.resolveTier(ctx, userID)))
	capacity = l.applyAdaptiveThrottling(ctx, capacity)

	return LimitSpec{Capacity: capacity, Window: policy.Window}
}

// CheckRateLimit reports whether the caller is within quota for the
// current window bucket without consuming any of it. Store failures fail
// open: the request is allowed and the decision carries no limit info,
// because availability is worth more than strict enforcement.
func (l *Limiter) CheckRateLimit(ctx context.Context, endpoint, userID string) (bool, Decision) {
	spec := l.GetRateLimit(ctx, endpoint, userID)
	key := l.counterKey(endpoint, userID, spec.Window)

	var count int
	val, err := l.store.Get(ctx, key)
	switch {
	case err == storage.ErrKeyNotFound:
		count = 0
	case err != nil:
		log.Printf("Rate limit check failed, failing open: %v", err)
		return true, Decision{Allowed: true}
	default:
		count, _ = strconv.Atoi(val)
	}

	if count >= spec.Capacity {
		return false, Decision{
			Allowed:   false,
			Limit:     spec.Capacity,
			Remaining: 0,
			Window:    string(spec.Window),
		}
	}

	return true, Decision{
		Allowed:   true,
		Limit:     spec.Capacity,
		Remaining: spec.Capacity - count,
		Window:    string(spec.Window),
	}
}

// RecordRequest commits one unit of usage: increments the caller's window
// counter and appends the request timestamp to the global load log.
// Callers must invoke it at most once per allowed request. All failures
// are logged and swallowed; a missed increment is an acceptable cost of
// keeping the request path available.
func (l *Limiter) RecordRequest(ctx context.Context, endpoint, userID string) {
	policy := l.policyFor(endpoint)
	key := l.counterKey(endpoint, userID, policy.Window)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		log.Printf("Failed to record request for %s: %v", endpoint, err)
		return
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, policy.Window.Duration()); err != nil {
			log.Printf("Failed to set counter TTL for %s: %v", key, err)
		}
	}

	now := l.now()
	member := fmt.Sprintf("%d:%s", now.UnixNano(), userID)
	if err := l.store.ZAdd(ctx, loadLogKey, float64(now.Unix()), member); err != nil {
		log.Printf("Failed to append to load log: %v", err)
		return
	}

	// Entries older than two load windows can no longer influence any
	// load estimate
	cutoff := now.Add(-2 * l.adaptive.LoadWindow)
	if err := l.store.ZRemRangeByScore(ctx, loadLogKey, 0, float64(cutoff.Unix())); err != nil {
		log.Printf("Failed to trim load log: %v", err)
	}
}

// Boosts the limit when recent global load is low, sheds it when load is
// high, passes it through otherwise. Load estimation errors leave the
// limit unchanged.
func (l *Limiter) applyAdaptiveThrottling(ctx context.Context, base int) int {
	now := l.now()
	from := now.Add(-l.adaptive.LoadWindow)

	load, err := l.store.ZCount(ctx, loadLogKey, float64(from.Unix()), float64(now.Unix()))
	if err != nil {
		return base
	}

	switch {
	case load < int64(l.adaptive.LowLoadThreshold):
		return int(float64(base) * l.adaptive.BoostFactor)
	case load >= int64(l.adaptive.HighLoadThreshold):
		shed := int(float64(base) * l.adaptive.ShedFactor)
		if shed < 1 && base > 0 {
			shed = 1
		}
		return shed
	default:
		return base
	}
}

func (l *Limiter) policyFor(endpoint string) Policy {
	if policy, ok := l.policies[endpoint]; ok {
		return policy
	}
	return l.defaultPolicy
}

func (l *Limiter) multiplierFor(tier string) float64 {
	if multiplier, ok := l.tiers[tier]; ok && multiplier > 0 {
		return multiplier
	}
	return 1.0
}

func (l *Limiter) resolveTier(ctx context.Context, userID string) string {
	if l.resolver == nil || userID == "" {
		return DefaultTier
	}

	tier, err := l.resolver.LookupTier(ctx, userID)
	if err != nil || tier == "" {
		return DefaultTier
	}

	return tier
}

// Epoch-aligned bucket key: every worker derives the same bucket for the
// same instant without coordination
func (l *Limiter) counterKey(endpoint, userID string, window WindowUnit) string {
	bucket := l.now().Unix() / int64(window.Duration().Seconds())
	return fmt.Sprintf("ratelimit:window:%s:%s:%d", endpoint, userID, bucket)
}
