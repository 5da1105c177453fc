package service

import (
	"context"
	"testing"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/ratelimit"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	if f.byEmail == nil {
		f.byEmail = make(map[string]*models.User)
	}
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUserStore) FindById(ctx context.Context, id string) (*models.User, error) {
	for _, user := range f.byEmail {
		if user.ID.String() == id {
			return user, nil
		}
	}
	return nil, nil
}

type stubTiers struct {
	tier string
}

func (s stubTiers) LookupTier(ctx context.Context, userID string) (string, error) {
	return s.tier, nil
}

func newTestUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         "admin",
	}
}

func TestLoginEmbedsTierClaim(t *testing.T) {
	user := newTestUser(t, "ops@example.com", "secret123")
	store := &fakeUserStore{byEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(store, stubTiers{tier: "premium"}, "test-secret", 1)

	token, err := svc.Login(context.Background(), user.Email, "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims["tier"] != "premium" {
		t.Errorf("expected tier claim premium, got %v", claims["tier"])
	}
	if claims["user_id"] != user.ID.String() {
		t.Errorf("expected user_id claim %s, got %v", user.ID, claims["user_id"])
	}
}

func TestLoginDefaultsTierWithoutResolver(t *testing.T) {
	user := newTestUser(t, "ops@example.com", "secret123")
	store := &fakeUserStore{byEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(store, nil, "test-secret", 1)

	token, err := svc.Login(context.Background(), user.Email, "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims["tier"] != ratelimit.DefaultTier {
		t.Errorf("expected tier claim %q, got %v", ratelimit.DefaultTier, claims["tier"])
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	user := newTestUser(t, "ops@example.com", "secret123")
	store := &fakeUserStore{byEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(store, nil, "test-secret", 1)

	if _, err := svc.Login(context.Background(), user.Email, "wrong"); err == nil {
		t.Fatal("expected login to fail on a wrong password")
	}
}
