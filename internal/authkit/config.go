package authkit

import "time"

// Environment labels accepted by ServerConfig.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// ServerConfig configures token signing, the session cookie, and Google sign-in.
// Access and refresh tokens are signed with independent secrets so a leaked
// access secret cannot forge refresh tokens, and vice versa.
type ServerConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	CookieSecret       []byte
	Issuer             string
	SessionCookieName  string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	NonceTTL           time.Duration
	Environment        string

	GoogleClientID     string
	GoogleClientSecret string
	BaseURL            string
}

// SecureCookies reports whether the Secure attribute is set on session cookies.
func (configuration ServerConfig) SecureCookies() bool {
	return configuration.Environment == EnvironmentProduction
}
