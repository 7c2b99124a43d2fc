package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/models"
)

const (
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
)

// Storage is the typed view over the users and currentUser keys
type Storage struct {
	kv KV
}

func NewStorage(kv KV) *Storage {
	return &Storage{kv: kv}
}

// GetUsers returns the cached users, empty when the key is absent
func (s *Storage) GetUsers(ctx context.Context) ([]models.StoredUser, error) {
	raw, ok, err := s.kv.Get(ctx, KeyUsers)
	if err != nil {
		return nil, err
	}
	users := []models.StoredUser{}
	if !ok {
		return users, nil
	}
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyUsers, err)
	}
	return users, nil
}

func (s *Storage) SaveUsers(ctx context.Context, users []models.StoredUser) error {
	for i := range users {
		if users[i].Services == nil {
			users[i].Services = []string{}
		}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyUsers, err)
	}
	return s.kv.Set(ctx, KeyUsers, string(raw))
}

// GetCurrentUser returns nil when nobody is logged in
func (s *Storage) GetCurrentUser(ctx context.Context) (*models.StoredUser, error) {
	raw, ok, err := s.kv.Get(ctx, KeyCurrentUser)
	if err != nil || !ok {
		return nil, err
	}
	var user models.StoredUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyCurrentUser, err)
	}
	return &user, nil
}

// SetCurrentUser stores user, or clears the key when user is nil
func (s *Storage) SetCurrentUser(ctx context.Context, user *models.StoredUser) error {
	if user == nil {
		return s.kv.Remove(ctx, KeyCurrentUser)
	}
	cp := *user
	if cp.Services == nil {
		cp.Services = []string{}
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyCurrentUser, err)
	}
	return s.kv.Set(ctx, KeyCurrentUser, string(raw))
}

func (s *Storage) AddUser(ctx context.Context, user models.StoredUser) error {
	users, err := s.GetUsers(ctx)
	if err != nil {
		return err
	}
	return s.SaveUsers(ctx, append(users, user))
}

// FindByEmail returns the cached user with the exact email, or nil
func (s *Storage) FindByEmail(ctx context.Context, email string) (*models.StoredUser, error) {
	users, err := s.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, nil
}

// DefaultAdmin is seeded into an empty or admin-less cache
func DefaultAdmin(now time.Time) models.StoredUser {
	return models.StoredUser{
		ID:           "admin-001",
		Name:         "Администратор",
		Email:        "admin@infotelecom.ru",
		Phone:        "+7 (999) 000-00-00",
		Password:     "admin123",
		Role:         models.RoleAdmin,
		RegisteredAt: now.UTC().Format(models.StoredTimeLayout),
		Services:     []string{},
	}
}

// SeedAdmin appends the default admin when no cached user has the admin role.
// It reports whether a user was added.
func (s *Storage) SeedAdmin(ctx context.Context, now time.Time) (bool, error) {
	users, err := s.GetUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.IsAdmin() {
			return false, nil
		}
	}
	if err := s.SaveUsers(ctx, append(users, DefaultAdmin(now))); err != nil {
		return false, err
	}
	return true, nil
}
