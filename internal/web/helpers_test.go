package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/analytics"
	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/blog"
	"github.com/tyemirov/behindy/internal/storage"
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

type fakeGoogleExchanger struct {
	identity    authkit.GoogleIdentity
	exchangeErr error
}

func (exchanger *fakeGoogleExchanger) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (exchanger *fakeGoogleExchanger) Exchange(ctx context.Context, code string) (authkit.GoogleIdentity, error) {
	if exchanger.exchangeErr != nil {
		return authkit.GoogleIdentity{}, exchanger.exchangeErr
	}
	return exchanger.identity, nil
}

type fakeIDTokenValidator struct {
	payload     *idtoken.Payload
	validateErr error
}

func (validator *fakeIDTokenValidator) Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
	if validator.validateErr != nil {
		return nil, validator.validateErr
	}
	return validator.payload, nil
}

type webEnvironment struct {
	router    *gin.Engine
	config    authkit.ServerConfig
	clock     *controllableClock
	db        *gorm.DB
	auth      *authkit.Service
	exchanger *fakeGoogleExchanger
	validator *fakeIDTokenValidator
	nonces    authkit.NonceStore
}

func newWebEnvironment(t *testing.T) *webEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, _, openErr := store.Open("sqlite://file::memory:")
	if openErr != nil {
		t.Fatalf("open test database: %v", openErr)
	}
	t.Cleanup(func() { _ = store.Close(gormDB) })

	config := authkit.ServerConfig{
		AccessTokenSecret:  []byte("access-secret-test"),
		RefreshTokenSecret: []byte("refresh-secret-test"),
		CookieSecret:       []byte("cookie-secret-test"),
		Issuer:             "behindy",
		SessionCookieName:  "behindy_session",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		NonceTTL:           5 * time.Minute,
		Environment:        authkit.EnvironmentDevelopment,
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		BaseURL:            "http://localhost:8080",
	}
	clock := &controllableClock{current: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)

	tokens := authkit.NewTokenCodec(config, clock)
	sessions := authkit.NewSessionCodec(config)
	users := authkit.NewGormUserStore(gormDB)
	refreshTokens := authkit.NewGormRefreshTokenStore(gormDB)
	auth := authkit.NewService(config, tokens, sessions, users, refreshTokens, clock, logger, authkit.NewCounterMetrics())
	resolver := authkit.NewResolver(auth, logger)
	exchanger := &fakeGoogleExchanger{identity: authkit.GoogleIdentity{
		Email: "google@example.com", Name: "Google User", Picture: "https://example.com/p.png",
	}}
	googleAuth := authkit.NewGoogleAuthenticator(exchanger, auth, logger)
	validator := &fakeIDTokenValidator{}
	nonces := authkit.NewMemoryNonceStore(config.NonceTTL, clock)

	objects, storageErr := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir()})
	if storageErr != nil {
		t.Fatalf("local storage: %v", storageErr)
	}

	blogService := blog.NewService(blog.NewStore(gormDB), clock, logger)
	analyticsService := analytics.NewService(gormDB, clock, logger)

	server := NewServer(ServerOptions{
		Configuration: config,
		Logger:        logger,
		DB:            gormDB,
		Auth:          auth,
		Resolver:      resolver,
		GoogleAuth:    googleAuth,
		Validator:     validator,
		Nonces:        nonces,
		Blog:          blogService,
		Analytics:     analyticsService,
		Objects:       objects,
	})

	router := gin.New()
	server.MountRoutes(router)

	return &webEnvironment{
		router:    router,
		config:    config,
		clock:     clock,
		db:        gormDB,
		auth:      auth,
		exchanger: exchanger,
		validator: validator,
		nonces:    nonces,
	}
}

// registerViaForm drives POST /register and returns the session cookie.
func registerViaForm(t *testing.T, env *webEnvironment, email string) *http.Cookie {
	t.Helper()
	form := url.Values{
		"email":      []string{email},
		"password":   []string{"long-enough-password"},
		"name":       []string{strings.Split(email, "@")[0]},
		"redirectTo": []string{"/"},
	}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusFound {
		t.Fatalf("register: expected 302, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	cookie := sessionCookie(recorder, env.config.SessionCookieName)
	if cookie == nil {
		t.Fatalf("register: expected a session cookie")
	}
	return cookie
}

func sessionCookie(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func jsonRequest(method string, target string, body string, cookie *http.Cookie) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(cookie)
	}
	return request
}

func findUserByEmail(t *testing.T, env *webEnvironment, email string) *store.User {
	t.Helper()
	var user store.User
	if findErr := env.db.Where("email = ?", email).First(&user).Error; findErr != nil {
		t.Fatalf("find user %s: %v", email, findErr)
	}
	return &user
}
