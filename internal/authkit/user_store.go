package authkit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/store"
)

var (
	// ErrUserNotFound indicates no user row matched the lookup.
	ErrUserNotFound = errors.New("user_store.not_found")
	// ErrEmailTaken indicates the email already belongs to another account.
	ErrEmailTaken = errors.New("user_store.email_taken")
)

// UserStore persists and retrieves application accounts.
type UserStore interface {
	Create(ctx context.Context, user *store.User) error
	FindByID(ctx context.Context, userID string) (*store.User, error)
	FindByEmail(ctx context.Context, email string) (*store.User, error)
	UpdateProfileImage(ctx context.Context, userID string, imageURL string) error
}

// GormUserStore implements UserStore over the shared database.
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore wraps an open database handle.
func NewGormUserStore(gormDB *gorm.DB) *GormUserStore {
	return &GormUserStore{db: gormDB}
}

// Create inserts a new account row.
func (userStore *GormUserStore) Create(ctx context.Context, user *store.User) error {
	if err := userStore.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user_store.create: %w", ErrEmailTaken)
		}
		return fmt.Errorf("user_store.create: %w", err)
	}
	return nil
}

// FindByID returns the account with the given id.
func (userStore *GormUserStore) FindByID(ctx context.Context, userID string) (*store.User, error) {
	var user store.User
	err := userStore.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user_store.find_id: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("user_store.find_id: %w", err)
	}
	return &user, nil
}

// FindByEmail returns the account with the given email.
func (userStore *GormUserStore) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	var user store.User
	err := userStore.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user_store.find_email: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("user_store.find_email: %w", err)
	}
	return &user, nil
}

// UpdateProfileImage stores a new profile image URL for the account.
func (userStore *GormUserStore) UpdateProfileImage(ctx context.Context, userID string, imageURL string) error {
	result := userStore.db.WithContext(ctx).
		Model(&store.User{}).
		Where("id = ?", userID).
		Update("profile_image", imageURL)
	if result.Error != nil {
		return fmt.Errorf("user_store.update_image: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user_store.update_image: %w", ErrUserNotFound)
	}
	return nil
}
