package authkit

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

var (
	// ErrIDTokenInvalid indicates the Google ID token failed verification.
	ErrIDTokenInvalid = errors.New("google.id_token_invalid")
	// ErrIDTokenUnverified indicates the token carried no verified email identity.
	ErrIDTokenUnverified = errors.New("google.id_token_unverified")
)

// IDTokenValidator verifies Google-issued ID tokens for the one-tap flow.
type IDTokenValidator interface {
	Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error)
}

type googleIDTokenValidator struct {
	validator *idtoken.Validator
}

// NewGoogleIDTokenValidator constructs a validator backed by Google's public keys.
func NewGoogleIDTokenValidator(ctx context.Context) (IDTokenValidator, error) {
	validator, validatorErr := idtoken.NewValidator(ctx)
	if validatorErr != nil {
		return nil, fmt.Errorf("google.id_token_validator: %w", validatorErr)
	}
	return &googleIDTokenValidator{validator: validator}, nil
}

func (wrapper *googleIDTokenValidator) Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
	return wrapper.validator.Validate(ctx, token, audience)
}

// VerifyGoogleIDToken validates a client-side Google ID token and extracts the
// identity. The issuer must be Google and the email must be verified.
func VerifyGoogleIDToken(ctx context.Context, validator IDTokenValidator, token string, clientID string) (GoogleIdentity, error) {
	payload, validateErr := validator.Validate(ctx, token, clientID)
	if validateErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.id_token: %w", ErrIDTokenInvalid)
	}
	issuer, _ := payload.Claims["iss"].(string)
	if issuer != "https://accounts.google.com" && issuer != "accounts.google.com" {
		return GoogleIdentity{}, fmt.Errorf("google.id_token: %w", ErrIDTokenInvalid)
	}
	email, _ := payload.Claims["email"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !emailVerified {
		return GoogleIdentity{}, fmt.Errorf("google.id_token: %w", ErrIDTokenUnverified)
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)
	return GoogleIdentity{Email: email, Name: name, Picture: picture}, nil
}
