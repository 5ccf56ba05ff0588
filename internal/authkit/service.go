package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tyemirov/behindy/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")
	// ErrWeakPassword indicates the supplied password is below the minimum length.
	ErrWeakPassword = errors.New("auth.weak_password")
)

const minimumPasswordLength = 8

// SessionIssue is the result of a successful authentication: the resolved
// user plus the signed cookie value the caller must attach to its response.
type SessionIssue struct {
	User        *store.User
	AccessToken string
	SessionID   string
	Cookie      string
}

// Service implements local login, registration, logout, and session issuance.
type Service struct {
	configuration ServerConfig
	tokens        *TokenCodec
	sessions      *SessionCodec
	users         UserStore
	refreshTokens RefreshTokenStore
	clock         Clock
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewService wires the auth service from its collaborators.
func NewService(configuration ServerConfig, tokens *TokenCodec, sessions *SessionCodec, users UserStore, refreshTokens RefreshTokenStore, clock Clock, logger *zap.Logger, metrics MetricsRecorder) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	return &Service{
		configuration: configuration,
		tokens:        tokens,
		sessions:      sessions,
		users:         users,
		refreshTokens: refreshTokens,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Sessions exposes the session cookie codec used by this service.
func (service *Service) Sessions() *SessionCodec {
	return service.sessions
}

// Tokens exposes the token codec used by this service.
func (service *Service) Tokens() *TokenCodec {
	return service.tokens
}

// Login verifies the password and issues a fresh session.
func (service *Service) Login(ctx context.Context, email string, password string) (*SessionIssue, error) {
	user, findErr := service.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			service.metrics.Increment("login.invalid_credentials")
			return nil, fmt.Errorf("auth.login: %w", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("auth.login: %w", findErr)
	}
	if user.PasswordHash == "" {
		// Google-only account; password login is never valid for it.
		service.metrics.Increment("login.invalid_credentials")
		return nil, fmt.Errorf("auth.login: %w", ErrInvalidCredentials)
	}
	if compareErr := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); compareErr != nil {
		service.metrics.Increment("login.invalid_credentials")
		return nil, fmt.Errorf("auth.login: %w", ErrInvalidCredentials)
	}
	issue, issueErr := service.IssueSession(ctx, user)
	if issueErr != nil {
		return nil, issueErr
	}
	service.metrics.Increment("login.success")
	return issue, nil
}

// Register creates a USER account and issues its first session.
func (service *Service) Register(ctx context.Context, email string, password string, name string) (*SessionIssue, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minimumPasswordLength {
		return nil, fmt.Errorf("auth.register: %w", ErrWeakPassword)
	}
	hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return nil, fmt.Errorf("auth.register: %w", hashErr)
	}
	user := &store.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
		Role:         store.RoleUser,
	}
	if createErr := service.users.Create(ctx, user); createErr != nil {
		return nil, fmt.Errorf("auth.register: %w", createErr)
	}
	issue, issueErr := service.IssueSession(ctx, user)
	if issueErr != nil {
		return nil, issueErr
	}
	service.metrics.Increment("register.success")
	return issue, nil
}

// IssueSession mints access and refresh tokens for the user, persists the
// refresh token, and returns the signed session cookie value.
func (service *Service) IssueSession(ctx context.Context, user *store.User) (*SessionIssue, error) {
	accessToken, _, accessErr := service.tokens.MintAccessToken(user.ID, user.Email, user.Role)
	if accessErr != nil {
		return nil, fmt.Errorf("auth.issue_session: %w", accessErr)
	}
	refreshToken, refreshExpiry, refreshErr := service.tokens.MintRefreshToken(user.ID, user.Email, user.Role)
	if refreshErr != nil {
		return nil, fmt.Errorf("auth.issue_session: %w", refreshErr)
	}
	if saveErr := service.refreshTokens.Save(ctx, user.ID, refreshToken, refreshExpiry); saveErr != nil {
		return nil, fmt.Errorf("auth.issue_session: %w", saveErr)
	}
	cookieValue, encodeErr := service.sessions.Encode(SessionPayload{
		AccessToken: accessToken,
		SessionID:   user.ID,
	})
	if encodeErr != nil {
		return nil, fmt.Errorf("auth.issue_session: %w", encodeErr)
	}
	return &SessionIssue{
		User:        user,
		AccessToken: accessToken,
		SessionID:   user.ID,
		Cookie:      cookieValue,
	}, nil
}

// RotateRefreshToken replaces the stored refresh token during a silent
// refresh and returns the new token string. Rotation is applied on every
// renewal; no code path reuses a refresh token across access-token renewals.
func (service *Service) RotateRefreshToken(ctx context.Context, user *store.User) (string, error) {
	newToken, newExpiry, mintErr := service.tokens.MintRefreshToken(user.ID, user.Email, user.Role)
	if mintErr != nil {
		return "", fmt.Errorf("auth.rotate_refresh: %w", mintErr)
	}
	if saveErr := service.refreshTokens.Save(ctx, user.ID, newToken, newExpiry); saveErr != nil {
		return "", fmt.Errorf("auth.rotate_refresh: %w", saveErr)
	}
	return newToken, nil
}

// Logout deletes the user's refresh tokens. The caller clears the cookie and
// redirects to the login page.
func (service *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if deleteErr := service.refreshTokens.DeleteByUser(ctx, sessionID); deleteErr != nil {
		service.logger.Warn("logout: refresh token cleanup failed", zap.Error(deleteErr))
		return fmt.Errorf("auth.logout: %w", deleteErr)
	}
	service.metrics.Increment("logout")
	return nil
}
