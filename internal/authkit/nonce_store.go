package authkit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNonceNotFound indicates the nonce was never issued or already consumed.
	ErrNonceNotFound = errors.New("nonce.not_found")
	// ErrNonceExpired indicates the nonce expired before consumption.
	ErrNonceExpired = errors.New("nonce.expired")
)

// NonceStore issues one-time tokens binding Google ID-token exchanges to a
// prior request from the same client.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, token string) error
}

type memoryNonceStore struct {
	mutex   sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	clock   Clock
}

// NewMemoryNonceStore constructs an in-memory NonceStore with the given TTL.
func NewMemoryNonceStore(ttl time.Duration, clock Clock) NonceStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &memoryNonceStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		clock:   clock,
	}
}

func (nonceStore *memoryNonceStore) Issue(ctx context.Context) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("nonce.issue: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(randomBytes)
	nonceStore.mutex.Lock()
	defer nonceStore.mutex.Unlock()
	nonceStore.purgeExpiredLocked()
	nonceStore.entries[token] = nonceStore.clock.Now().Add(nonceStore.ttl)
	return token, nil
}

func (nonceStore *memoryNonceStore) Consume(ctx context.Context, token string) error {
	nonceStore.mutex.Lock()
	defer nonceStore.mutex.Unlock()
	expiry, ok := nonceStore.entries[token]
	if !ok {
		return fmt.Errorf("nonce.consume: %w", ErrNonceNotFound)
	}
	delete(nonceStore.entries, token)
	if nonceStore.clock.Now().After(expiry) {
		return fmt.Errorf("nonce.consume: %w", ErrNonceExpired)
	}
	return nil
}

func (nonceStore *memoryNonceStore) purgeExpiredLocked() {
	now := nonceStore.clock.Now()
	for token, expiry := range nonceStore.entries {
		if now.After(expiry) {
			delete(nonceStore.entries, token)
		}
	}
}
