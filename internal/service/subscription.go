package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/ratelimit"
	"github.com/firescope/resource-governor/internal/storage"
)

const tierCacheTTL = 5 * time.Minute

// Data access the service needs; satisfied by
// repository.SubscriptionRepository
type subscriptionStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Subscription, error)
	List(ctx context.Context) ([]models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	UpdateTier(ctx context.Context, userID, tier string) error
	UpdateStatus(ctx context.Context, userID, status string) error
	CountByTier(ctx context.Context, tier string) (int64, error)
}

// Resolves and manages subscription tiers. Lookups go through a Redis
// cache in front of Postgres; any failure along the way degrades to the
// lowest tier rather than surfacing an error, so a flaky profile store
// can never block a request.
type SubscriptionService struct {
	repository subscriptionStore
	cache      storage.Cache
}

func NewSubscriptionService(repo subscriptionStore, cache storage.Cache) *SubscriptionService {
	return &SubscriptionService{
		repository: repo,
		cache:      cache,
	}
}

// LookupTier returns the caller's current tier, defaulting to the free
// tier on any lookup failure or absent/inactive subscription. Never
// returns an error to satisfy callers that must not fail.
func (s *SubscriptionService) LookupTier(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return ratelimit.DefaultTier, nil
	}

	// Check cache first
	cacheKey := s.cacheKey(userID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			return cached, nil
		}
	}

	// Cache miss - query database
	sub, err := s.repository.FindByUser(ctx, userID)
	if err != nil {
		log.Printf("Tier lookup failed for %s, defaulting to %s: %v", userID, ratelimit.DefaultTier, err)
		return ratelimit.DefaultTier, nil
	}

	tier := ratelimit.DefaultTier
	if sub != nil && sub.IsActive(time.Now()) {
		tier = sub.Tier
	}

	// Cache the result
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, tier, tierCacheTTL); err != nil {
			log.Printf("Failed to cache tier for %s: %v", userID, err)
		}
	}

	return tier, nil
}

func (s *SubscriptionService) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.repository.FindByUser(ctx, userID)
}

func (s *SubscriptionService) List(ctx context.Context) ([]models.Subscription, error) {
	return s.repository.List(ctx)
}

// Creates or updates a user's subscription tier and invalidates the cache
func (s *SubscriptionService) SetTier(ctx context.Context, userID, tier string) error {
	sub, err := s.repository.FindByUser(ctx, userID)
	if err != nil {
		return err
	}

	if sub == nil {
		err = s.repository.Create(ctx, &models.Subscription{
			UserID: userID,
			Tier:   tier,
			Status: "active",
		})
	} else {
		err = s.repository.UpdateTier(ctx, userID, tier)
	}
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// Cancels a user's subscription, dropping them to the free tier
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) error {
	if err := s.repository.UpdateStatus(ctx, userID, "canceled"); err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// TierBreakdown reports how many active subscriptions exist per tier
func (s *SubscriptionService) TierBreakdown(ctx context.Context, tiers []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(tiers))
	for _, tier := range tiers {
		count, err := s.repository.CountByTier(ctx, tier)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s subscriptions: %w", tier, err)
		}
		counts[tier] = count
	}
	return counts, nil
}

func (s *SubscriptionService) cacheKey(userID string) string {
	return fmt.Sprintf("tier:cache:%s", userID)
}

func (s *SubscriptionService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(userID)); err != nil {
		log.Printf("Failed to invalidate tier cache for %s: %v", userID, err)
	}
}
