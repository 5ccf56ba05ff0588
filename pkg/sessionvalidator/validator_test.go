package sessionvalidator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

func mintToken(t *testing.T, signingKey []byte, issuer string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-123",
		Email:  "user@example.com",
		Role:   "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	result, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return result
}

func sealCookie(t *testing.T, cookieSecret []byte, accessToken string) string {
	t.Helper()
	serialized, marshalErr := json.Marshal(sessionEnvelope{AccessToken: accessToken, SessionID: "user-123"})
	if marshalErr != nil {
		t.Fatalf("failed to marshal envelope: %v", marshalErr)
	}
	body := base64.RawURLEncoding.EncodeToString(serialized)
	mac := hmac.New(sha256.New, cookieSecret)
	mac.Write([]byte(body))
	return body + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newTestValidator(t *testing.T, now time.Time) *Validator {
	t.Helper()
	validator, err := New(Config{
		AccessTokenSecret: []byte("access-secret"),
		CookieSecret:      []byte("cookie-secret"),
		Issuer:            "behindy",
		CookieName:        "session",
		Clock:             fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return validator
}

func TestNewValidatorRequiresSecrets(t *testing.T) {
	t.Parallel()

	_, accessErr := New(Config{CookieSecret: []byte("cookie"), Issuer: "behindy"})
	if accessErr == nil || !errors.Is(accessErr, ErrMissingAccessSecret) {
		t.Fatalf("expected missing access secret error, got %v", accessErr)
	}
	_, cookieErr := New(Config{AccessTokenSecret: []byte("access"), Issuer: "behindy"})
	if cookieErr == nil || !errors.Is(cookieErr, ErrMissingCookieSecret) {
		t.Fatalf("expected missing cookie secret error, got %v", cookieErr)
	}
	_, issuerErr := New(Config{AccessTokenSecret: []byte("access"), CookieSecret: []byte("cookie")})
	if issuerErr == nil || !errors.Is(issuerErr, ErrMissingIssuer) {
		t.Fatalf("expected missing issuer error, got %v", issuerErr)
	}
}

func TestNewValidatorDefaults(t *testing.T) {
	t.Parallel()

	validator, err := New(Config{
		AccessTokenSecret: []byte("access"),
		CookieSecret:      []byte("cookie"),
		Issuer:            "behindy",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validator.cookieName != DefaultCookieName {
		t.Fatalf("expected default cookie name, got %s", validator.cookieName)
	}
	if validator.clock == nil {
		t.Fatalf("expected default clock to be set")
	}
}

func TestValidateCookieValueSuccess(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, now)
	tokenValue := mintToken(t, []byte("access-secret"), "behindy", now, time.Minute)
	cookieValue := sealCookie(t, []byte("cookie-secret"), tokenValue)

	claims, validateErr := validator.ValidateCookieValue(cookieValue)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" || claims.GetUserEmail() != "user@example.com" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if claims.GetUserRole() != "USER" {
		t.Fatalf("unexpected role: %s", claims.GetUserRole())
	}
	if !claims.GetExpiresAt().Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestValidateCookieValueRejectsInvalidCases(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tests := []struct {
		name      string
		valueFunc func() string
		expectErr error
	}{
		{
			name:      "empty value",
			valueFunc: func() string { return "" },
			expectErr: ErrMissingToken,
		},
		{
			name:      "no signature separator",
			valueFunc: func() string { return "payload-without-signature" },
			expectErr: ErrMalformedCookie,
		},
		{
			name: "foreign cookie secret",
			valueFunc: func() string {
				token := mintToken(t, []byte("access-secret"), "behindy", now, time.Minute)
				return sealCookie(t, []byte("other-cookie-secret"), token)
			},
			expectErr: ErrBadSignature,
		},
		{
			name: "access token signed with wrong key",
			valueFunc: func() string {
				token := mintToken(t, []byte("other-access-secret"), "behindy", now, time.Minute)
				return sealCookie(t, []byte("cookie-secret"), token)
			},
			expectErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			valueFunc: func() string {
				token := mintToken(t, []byte("access-secret"), "other-issuer", now, time.Minute)
				return sealCookie(t, []byte("cookie-secret"), token)
			},
			expectErr: ErrInvalidIssuer,
		},
		{
			name: "expired access token",
			valueFunc: func() string {
				token := mintToken(t, []byte("access-secret"), "behindy", now.Add(-2*time.Minute), time.Minute)
				return sealCookie(t, []byte("cookie-secret"), token)
			},
			expectErr: ErrTokenExpired,
		},
	}

	validator := newTestValidator(t, now)

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			_, validateErr := validator.ValidateCookieValue(testCase.valueFunc())
			if validateErr == nil || !errors.Is(validateErr, testCase.expectErr) {
				t.Fatalf("expected %v, got %v", testCase.expectErr, validateErr)
			}
		})
	}
}

func TestValidateTokenExactExpiryIsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("access-secret"), "behindy", now.Add(-time.Minute), time.Minute)
	validator := newTestValidator(t, now)

	_, validateErr := validator.ValidateToken(tokenValue)
	if validateErr == nil || !errors.Is(validateErr, ErrTokenExpired) {
		t.Fatalf("expected expiry at the exact boundary, got %v", validateErr)
	}
}

func TestValidateRequest(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("access-secret"), "behindy", now, time.Minute)
	cookieValue := sealCookie(t, []byte("cookie-secret"), tokenValue)
	validator := newTestValidator(t, now)

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.AddCookie(&http.Cookie{Name: "session", Value: cookieValue})
	claims, validateErr := validator.ValidateRequest(request)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" {
		t.Fatalf("unexpected user: %v", claims.GetUserID())
	}

	badRequest := httptest.NewRequest(http.MethodGet, "/protected", nil)
	_, missingErr := validator.ValidateRequest(badRequest)
	if missingErr == nil || !errors.Is(missingErr, ErrMissingCookie) {
		t.Fatalf("expected missing cookie error, got %v", missingErr)
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("access-secret"), "behindy", now, time.Minute)
	cookieValue := sealCookie(t, []byte("cookie-secret"), tokenValue)
	validator, err := New(Config{
		AccessTokenSecret: []byte("access-secret"),
		CookieSecret:      []byte("cookie-secret"),
		Issuer:            "behindy",
		Clock:             fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	router := gin.New()
	router.Use(validator.GinMiddleware("claims"))
	router.GET("/protected", func(contextGin *gin.Context) {
		value, exists := contextGin.Get("claims")
		if !exists {
			t.Fatalf("claims missing")
		}
		if _, ok := value.(*Claims); !ok {
			t.Fatalf("unexpected claims type: %T", value)
		}
		contextGin.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookieValue})
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}

	requestMissing := httptest.NewRequest(http.MethodGet, "/protected", nil)
	responseMissing := httptest.NewRecorder()
	router.ServeHTTP(responseMissing, requestMissing)
	if responseMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing cookie, got %d", responseMissing.Code)
	}
}
