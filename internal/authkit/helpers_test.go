package authkit

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/store"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		AccessTokenSecret:  []byte("access-secret-test"),
		RefreshTokenSecret: []byte("refresh-secret-test"),
		CookieSecret:       []byte("cookie-secret-test"),
		Issuer:             "behindy",
		SessionCookieName:  "behindy_session",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		NonceTTL:           5 * time.Minute,
		Environment:        EnvironmentDevelopment,
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		BaseURL:            "http://localhost:8080",
	}
}

type testEnvironment struct {
	config        ServerConfig
	clock         *controllableClock
	db            *gorm.DB
	users         *GormUserStore
	refreshTokens *MemoryRefreshTokenStore
	tokens        *TokenCodec
	sessions      *SessionCodec
	service       *Service
	resolver      *Resolver
	metrics       *CounterMetrics
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()

	gormDB, _, openErr := store.Open("sqlite://file::memory:")
	if openErr != nil {
		t.Fatalf("open test database: %v", openErr)
	}
	t.Cleanup(func() { _ = store.Close(gormDB) })

	config := newTestServerConfig()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	tokens := NewTokenCodec(config, clock)
	sessions := NewSessionCodec(config)
	users := NewGormUserStore(gormDB)
	refreshTokens := NewMemoryRefreshTokenStore()
	metrics := NewCounterMetrics()
	logger := zaptest.NewLogger(t)
	service := NewService(config, tokens, sessions, users, refreshTokens, clock, logger, metrics)
	resolver := NewResolver(service, logger)

	return &testEnvironment{
		config:        config,
		clock:         clock,
		db:            gormDB,
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		sessions:      sessions,
		service:       service,
		resolver:      resolver,
		metrics:       metrics,
	}
}
