package repository

import (
	"context"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db      *storage.Postgres
	monitor *monitor.Monitor
}

func NewSubscriptionRepository(db *storage.Postgres, mon *monitor.Monitor) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, monitor: mon}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "create")

	err := r.db.DB.WithContext(ctx).Create(sub).Error
	r.monitor.Complete(queryID, 1, err)

	return err
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "find_by_user")

	var sub models.Subscription
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error

	if err == gorm.ErrRecordNotFound {
		r.monitor.Complete(queryID, 0, nil)
		return nil, nil
	}
	if err != nil {
		r.monitor.Complete(queryID, 0, err)
		return nil, err
	}

	r.monitor.Complete(queryID, 1, nil)
	return &sub, nil
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]models.Subscription, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "list")

	var subs []models.Subscription
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&subs).Error

	r.monitor.Complete(queryID, len(subs), err)
	return subs, err
}

func (r *SubscriptionRepository) UpdateTier(ctx context.Context, userID, tier string) error {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "update_tier")

	err := r.db.DB.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("tier", tier).Error

	r.monitor.Complete(queryID, 1, err)
	return err
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, userID, status string) error {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "update_status")

	err := r.db.DB.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("status", status).Error

	r.monitor.Complete(queryID, 1, err)
	return err
}

func (r *SubscriptionRepository) CountByTier(ctx context.Context, tier string) (int64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "subscriptions", "count_by_tier")

	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("tier = ? AND status = ?", tier, "active").
		Count(&count).Error

	r.monitor.Complete(queryID, int(count), err)
	return count, err
}
