// Package sessionvalidator lets sibling services validate behindy session
// cookies without importing the server internals. A session cookie carries an
// HMAC-signed envelope whose payload embeds the short-lived access token; the
// validator checks both layers and surfaces the access-token claims.
package sessionvalidator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Validator. AccessTokenSecret and CookieSecret must
// match the values the behindy server was started with.
type Config struct {
	AccessTokenSecret []byte
	CookieSecret      []byte
	Issuer            string
	CookieName        string
	Clock             Clock
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "auth_claims"

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "behindy_session"

// Sentinel errors exposed by the validator.
var (
	ErrMissingAccessSecret = errors.New("session.validator.missing_access_secret")
	ErrMissingCookieSecret = errors.New("session.validator.missing_cookie_secret")
	ErrMissingIssuer       = errors.New("session.validator.missing_issuer")
	ErrMissingToken        = errors.New("session.validator.missing_token")
	ErrMissingCookie       = errors.New("session.validator.missing_cookie")
	ErrMalformedCookie     = errors.New("session.validator.malformed_cookie")
	ErrBadSignature        = errors.New("session.validator.bad_signature")
	ErrInvalidToken        = errors.New("session.validator.invalid_token")
	ErrInvalidIssuer       = errors.New("session.validator.invalid_issuer")
	ErrTokenExpired        = errors.New("session.validator.expired")
)

// Validator validates behindy session cookies.
type Validator struct {
	accessSecret []byte
	cookieSecret []byte
	issuer       string
	cookieName   string
	clock        Clock
}

// Claims represent the payload embedded inside behindy access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GetUserID returns the user identifier from the session.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// GetUserEmail returns the email associated with the session.
func (claims *Claims) GetUserEmail() string {
	if claims == nil {
		return ""
	}
	return claims.Email
}

// GetUserRole returns the role stored in the session.
func (claims *Claims) GetUserRole() string {
	if claims == nil {
		return ""
	}
	return claims.Role
}

// GetExpiresAt returns the expiry timestamp of the access token.
func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

type sessionEnvelope struct {
	AccessToken string `json:"accessToken"`
	SessionID   string `json:"sessionId"`
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if len(configuration.AccessTokenSecret) == 0 {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingAccessSecret)
	}
	if len(configuration.CookieSecret) == 0 {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingCookieSecret)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingIssuer)
	}
	cookieName := configuration.CookieName
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{
		accessSecret: configuration.AccessTokenSecret,
		cookieSecret: configuration.CookieSecret,
		issuer:       configuration.Issuer,
		cookieName:   cookieName,
		clock:        clock,
	}, nil
}

// ValidateCookieValue verifies the HMAC envelope of a raw cookie value, then
// validates the embedded access token and returns its claims.
func (validator *Validator) ValidateCookieValue(cookieValue string) (*Claims, error) {
	if strings.TrimSpace(cookieValue) == "" {
		return nil, fmt.Errorf("session.validator.validate_cookie: %w", ErrMissingToken)
	}
	body, signature, found := strings.Cut(cookieValue, ".")
	if !found || body == "" || signature == "" {
		return nil, fmt.Errorf("session.validator.validate_cookie: %w", ErrMalformedCookie)
	}
	mac := hmac.New(sha256.New, validator.cookieSecret)
	mac.Write([]byte(body))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("session.validator.validate_cookie: %w", ErrBadSignature)
	}
	serialized, decodeErr := base64.RawURLEncoding.DecodeString(body)
	if decodeErr != nil {
		return nil, fmt.Errorf("session.validator.validate_cookie: %w", ErrMalformedCookie)
	}
	var envelope sessionEnvelope
	if unmarshalErr := json.Unmarshal(serialized, &envelope); unmarshalErr != nil {
		return nil, fmt.Errorf("session.validator.validate_cookie: %w", ErrMalformedCookie)
	}
	return validator.ValidateToken(envelope.AccessToken)
}

// ValidateToken validates the provided access JWT and returns the parsed claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return validator.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("session.validator.validate_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	if claims.Issuer != validator.issuer {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidIssuer)
	}
	current := validator.clock.Now()
	// A token inspected at exactly its expiry instant is expired.
	if claims.ExpiresAt == nil || !current.Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrTokenExpired)
	}
	if claims.NotBefore != nil && current.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRequest reads the configured cookie from the request and validates it.
func (validator *Validator) ValidateRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	cookie, cookieErr := request.Cookie(validator.cookieName)
	if cookieErr != nil || cookie == nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingCookie)
	}
	return validator.ValidateCookieValue(cookie.Value)
}

// GinMiddleware returns a Gin middleware that validates the session cookie and injects claims.
func (validator *Validator) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		claims, err := validator.ValidateRequest(contextGin.Request)
		if err != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(contextKey, claims)
		contextGin.Next()
	}
}
