package authkit

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
)

const sessionCookieMaxAge = 7 * 24 * time.Hour

var (
	// ErrSessionCookieMalformed indicates the cookie value is not payload.signature.
	ErrSessionCookieMalformed = errors.New("session_cookie.malformed")
	// ErrSessionCookieBadSignature indicates the HMAC signature did not verify.
	ErrSessionCookieBadSignature = errors.New("session_cookie.bad_signature")
)

// SessionPayload is the client-held session state: the current access token
// and the session identifier (the user id). It is carried only in the cookie,
// never persisted server-side.
type SessionPayload struct {
	AccessToken string `json:"accessToken"`
	SessionID   string `json:"sessionId"`
}

// SessionCodec serializes SessionPayload into an HMAC-signed cookie value and
// back. The value is base64url(JSON payload) + "." + base64url(HMAC-SHA256).
type SessionCodec struct {
	configuration ServerConfig
}

// NewSessionCodec constructs a codec over the configured cookie secret.
func NewSessionCodec(configuration ServerConfig) *SessionCodec {
	return &SessionCodec{configuration: configuration}
}

// Encode signs the payload into a cookie value.
func (codec *SessionCodec) Encode(payload SessionPayload) (string, error) {
	serialized, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", fmt.Errorf("session_cookie.encode: %w", marshalErr)
	}
	body := base64.RawURLEncoding.EncodeToString(serialized)
	return body + "." + codec.sign(body), nil
}

// Decode verifies the signature and unmarshals the payload.
func (codec *SessionCodec) Decode(cookieValue string) (SessionPayload, error) {
	body, signature, found := strings.Cut(cookieValue, ".")
	if !found || body == "" || signature == "" {
		return SessionPayload{}, fmt.Errorf("session_cookie.decode: %w", ErrSessionCookieMalformed)
	}
	if !hmac.Equal([]byte(codec.sign(body)), []byte(signature)) {
		return SessionPayload{}, fmt.Errorf("session_cookie.decode: %w", ErrSessionCookieBadSignature)
	}
	serialized, decodeErr := base64.RawURLEncoding.DecodeString(body)
	if decodeErr != nil {
		return SessionPayload{}, fmt.Errorf("session_cookie.decode: %w", ErrSessionCookieMalformed)
	}
	var payload SessionPayload
	if unmarshalErr := json.Unmarshal(serialized, &payload); unmarshalErr != nil {
		return SessionPayload{}, fmt.Errorf("session_cookie.decode: %w", ErrSessionCookieMalformed)
	}
	return payload, nil
}

// ReadRequest decodes the session cookie carried by the request, if any.
func (codec *SessionCodec) ReadRequest(request *http.Request) (SessionPayload, bool) {
	cookie, cookieErr := request.Cookie(codec.configuration.SessionCookieName)
	if cookieErr != nil || cookie == nil || strings.TrimSpace(cookie.Value) == "" {
		return SessionPayload{}, false
	}
	payload, decodeErr := codec.Decode(cookie.Value)
	if decodeErr != nil {
		return SessionPayload{}, false
	}
	return payload, true
}

// Cookie builds the Set-Cookie header carrying the signed session value.
// Attributes follow the login flow contract: HttpOnly, SameSite=Lax, Path=/,
// Secure in production, seven-day max age.
func (codec *SessionCodec) Cookie(cookieValue string) *http.Cookie {
	return &http.Cookie{
		Name:     codec.configuration.SessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge / time.Second),
		Secure:   codec.configuration.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds the Set-Cookie header that destroys the session cookie.
func (codec *SessionCodec) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     codec.configuration.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   codec.configuration.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (codec *SessionCodec) sign(body string) string {
	mac := hmac.New(sha256.New, codec.configuration.CookieSecret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
