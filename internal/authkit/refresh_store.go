package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyemirov/behindy/internal/store"
)

var (
	// ErrRefreshTokenNotFound indicates no refresh token row matched the lookup.
	ErrRefreshTokenNotFound = errors.New("refresh_store.not_found")
)

// RefreshTokenStore persists the single live refresh token per user.
type RefreshTokenStore interface {
	// Save replaces the user's refresh token in one upsert keyed by user id,
	// so a concurrent reader never observes a gap between delete and insert.
	Save(ctx context.Context, userID string, token string, expiresAt time.Time) error
	// FindLatestByUser returns the user's current refresh token row.
	FindLatestByUser(ctx context.Context, userID string) (*store.RefreshToken, error)
	// FindByToken locates a row by its token string.
	FindByToken(ctx context.Context, token string) (*store.RefreshToken, error)
	// DeleteByToken removes a row by its token string.
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByUser removes every refresh token owned by the user.
	DeleteByUser(ctx context.Context, userID string) error
}

// GormRefreshTokenStore implements RefreshTokenStore over the shared database.
type GormRefreshTokenStore struct {
	db *gorm.DB
}

// NewGormRefreshTokenStore wraps an open database handle.
func NewGormRefreshTokenStore(gormDB *gorm.DB) *GormRefreshTokenStore {
	return &GormRefreshTokenStore{db: gormDB}
}

// Save upserts the user's refresh token row.
func (tokenStore *GormRefreshTokenStore) Save(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	record := store.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	err := tokenStore.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "created_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("refresh_store.save: %w", err)
	}
	return nil
}

// FindLatestByUser returns the most recently created token row for the user.
func (tokenStore *GormRefreshTokenStore) FindLatestByUser(ctx context.Context, userID string) (*store.RefreshToken, error) {
	var record store.RefreshToken
	err := tokenStore.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("refresh_store.find_latest: %w", ErrRefreshTokenNotFound)
		}
		return nil, fmt.Errorf("refresh_store.find_latest: %w", err)
	}
	return &record, nil
}

// FindByToken locates a token row by its string value.
func (tokenStore *GormRefreshTokenStore) FindByToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	var record store.RefreshToken
	err := tokenStore.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("refresh_store.find_token: %w", ErrRefreshTokenNotFound)
		}
		return nil, fmt.Errorf("refresh_store.find_token: %w", err)
	}
	return &record, nil
}

// DeleteByToken removes a token row by its string value.
func (tokenStore *GormRefreshTokenStore) DeleteByToken(ctx context.Context, token string) error {
	result := tokenStore.db.WithContext(ctx).Where("token = ?", token).Delete(&store.RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("refresh_store.delete_token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("refresh_store.delete_token: %w", ErrRefreshTokenNotFound)
	}
	return nil
}

// DeleteByUser removes all token rows owned by the user.
func (tokenStore *GormRefreshTokenStore) DeleteByUser(ctx context.Context, userID string) error {
	err := tokenStore.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&store.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("refresh_store.delete_user: %w", err)
	}
	return nil
}
