package authkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind selects the signing secret and validity window.
type TokenKind string

const (
	// TokenKindAccess is the short-lived per-request credential.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is the long-lived server-side credential.
	TokenKindRefresh TokenKind = "refresh"
)

var errEmptyUserID = errors.New("token_codec.empty_user_id")

// TokenClaims are embedded in both access and refresh tokens.
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access and refresh tokens with independent
// HS256 secrets. Verification never returns an error to the caller: any
// signature, algorithm, or expiry failure yields ok == false.
type TokenCodec struct {
	configuration ServerConfig
	clock         Clock
}

// NewTokenCodec constructs a codec over the configured secrets.
func NewTokenCodec(configuration ServerConfig, clock Clock) *TokenCodec {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenCodec{configuration: configuration, clock: clock}
}

// MintAccessToken signs claims with the access secret and the access TTL.
func (codec *TokenCodec) MintAccessToken(userID string, email string, role string) (string, time.Time, error) {
	return codec.mint(userID, email, role, TokenKindAccess)
}

// MintRefreshToken signs claims with the refresh secret and the refresh TTL.
func (codec *TokenCodec) MintRefreshToken(userID string, email string, role string) (string, time.Time, error) {
	return codec.mint(userID, email, role, TokenKindRefresh)
}

// VerifyAccessToken parses and validates an access token.
func (codec *TokenCodec) VerifyAccessToken(tokenString string) (*TokenClaims, bool) {
	return codec.verify(tokenString, codec.configuration.AccessTokenSecret)
}

// VerifyRefreshToken parses and validates a refresh token.
func (codec *TokenCodec) VerifyRefreshToken(tokenString string) (*TokenClaims, bool) {
	return codec.verify(tokenString, codec.configuration.RefreshTokenSecret)
}

func (codec *TokenCodec) mint(userID string, email string, role string, kind TokenKind) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("token_codec.mint.%s: %w", kind, errEmptyUserID)
	}
	secret := codec.configuration.AccessTokenSecret
	ttl := codec.configuration.AccessTokenTTL
	if kind == TokenKindRefresh {
		secret = codec.configuration.RefreshTokenSecret
		ttl = codec.configuration.RefreshTokenTTL
	}
	issuedAt := codec.clock.Now()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    codec.configuration.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(secret)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("token_codec.mint.%s: %w", kind, signErr)
	}
	return signed, expiresAt, nil
}

func (codec *TokenCodec) verify(tokenString string, secret []byte) (*TokenClaims, bool) {
	if tokenString == "" {
		return nil, false
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return codec.clock.Now() }),
	)
	if parseErr != nil || parsedToken == nil || !parsedToken.Valid {
		return nil, false
	}
	claims, ok := parsedToken.Claims.(*TokenClaims)
	if !ok || claims.UserID == "" {
		return nil, false
	}
	if claims.Issuer != codec.configuration.Issuer {
		return nil, false
	}
	// A token inspected at exactly its expiry instant is expired.
	if claims.ExpiresAt == nil || !codec.clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, false
	}
	return claims, true
}
