package authkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tyemirov/behindy/internal/store"
)

// MemoryRefreshTokenStore is an in-memory store intended for tests and dev.
// One record per user, matching the database invariant.
type MemoryRefreshTokenStore struct {
	mutex  sync.Mutex
	byUser map[string]*store.RefreshToken
}

// NewMemoryRefreshTokenStore creates an empty in-memory token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{byUser: make(map[string]*store.RefreshToken)}
}

// Save replaces the user's token record.
func (tokenStore *MemoryRefreshTokenStore) Save(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	tokenStore.mutex.Lock()
	defer tokenStore.mutex.Unlock()
	tokenStore.byUser[userID] = &store.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return nil
}

// FindLatestByUser returns the user's current token record.
func (tokenStore *MemoryRefreshTokenStore) FindLatestByUser(ctx context.Context, userID string) (*store.RefreshToken, error) {
	tokenStore.mutex.Lock()
	defer tokenStore.mutex.Unlock()
	record, ok := tokenStore.byUser[userID]
	if !ok {
		return nil, fmt.Errorf("refresh_store.find_latest: %w", ErrRefreshTokenNotFound)
	}
	clone := *record
	return &clone, nil
}

// FindByToken locates a record by its token string.
func (tokenStore *MemoryRefreshTokenStore) FindByToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	tokenStore.mutex.Lock()
	defer tokenStore.mutex.Unlock()
	for _, record := range tokenStore.byUser {
		if record.Token == token {
			clone := *record
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("refresh_store.find_token: %w", ErrRefreshTokenNotFound)
}

// DeleteByToken removes a record by its token string.
func (tokenStore *MemoryRefreshTokenStore) DeleteByToken(ctx context.Context, token string) error {
	tokenStore.mutex.Lock()
	defer tokenStore.mutex.Unlock()
	for userID, record := range tokenStore.byUser {
		if record.Token == token {
			delete(tokenStore.byUser, userID)
			return nil
		}
	}
	return fmt.Errorf("refresh_store.delete_token: %w", ErrRefreshTokenNotFound)
}

// DeleteByUser removes the user's token record.
func (tokenStore *MemoryRefreshTokenStore) DeleteByUser(ctx context.Context, userID string) error {
	tokenStore.mutex.Lock()
	defer tokenStore.mutex.Unlock()
	delete(tokenStore.byUser, userID)
	return nil
}
