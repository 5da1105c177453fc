package repository

import (
	"context"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthRepository struct {
	db      *storage.Postgres
	monitor *monitor.Monitor
}

func NewUserRepository(db *storage.Postgres, mon *monitor.Monitor) *AuthRepository {
	return &AuthRepository{db: db, monitor: mon}
}

// Inserts a new user into the database
func (r *AuthRepository) Create(ctx context.Context, user *models.User) error {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "users", "create")

	err := r.db.DB.WithContext(ctx).Create(user).Error
	r.monitor.Complete(queryID, 1, err)

	return err
}

// Retrieves user by email
func (r *AuthRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "users", "find_by_email")

	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		r.monitor.Complete(queryID, 0, nil)
		return nil, nil
	}
	if err != nil {
		r.monitor.Complete(queryID, 0, err)
		return nil, err
	}

	r.monitor.Complete(queryID, 1, nil)
	return &user, nil
}

// Retrieves user by id
func (r *AuthRepository) FindById(ctx context.Context, id string) (*models.User, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "users", "find_by_id")

	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		r.monitor.Complete(queryID, 0, nil)
		return nil, nil
	}
	if err != nil {
		r.monitor.Complete(queryID, 0, err)
		return nil, err
	}

	r.monitor.Complete(queryID, 1, nil)
	return &user, nil
}

// Retrieves all users
func (r *AuthRepository) List(ctx context.Context) ([]models.User, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "users", "list")

	var users []models.User
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&users).Error

	r.monitor.Complete(queryID, len(users), err)
	return users, err
}
