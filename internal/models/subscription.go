package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Represents a user's subscription, the source of truth for their rate
// limit tier
type Subscription struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID           string     `gorm:"uniqueIndex;not null" json:"user_id"`
	Tier             string     `gorm:"default:'free'" json:"tier"`
	Status           string     `gorm:"default:'active'" json:"status"` // "active" "canceled" "past_due"
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Reports whether the subscription currently grants its tier
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != "active" {
		return false
	}
	if s.CurrentPeriodEnd != nil && now.After(*s.CurrentPeriodEnd) {
		return false
	}
	return true
}
