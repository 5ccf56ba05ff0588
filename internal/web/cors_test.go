package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestConfigureCORSAllowsListedOrigin(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	handler, configureErr := ConfigureCORS(zap.NewNop(), []string{"https://app.example.com"})
	if configureErr != nil {
		t.Fatalf("configure: %v", configureErr)
	}
	router := gin.New()
	router.Use(handler)
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.String(http.StatusOK, "pong")
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	request.Header.Set("Origin", "https://app.example.com")
	router.ServeHTTP(recorder, request)

	if allowed := recorder.Header().Get("Access-Control-Allow-Origin"); allowed != "https://app.example.com" {
		t.Fatalf("expected the origin to be allowed, got %q", allowed)
	}
	if credentials := recorder.Header().Get("Access-Control-Allow-Credentials"); credentials != "true" {
		t.Fatalf("expected credentials to be allowed for the cookie session")
	}
}

func TestConfigureCORSRejectsWildcard(t *testing.T) {
	t.Parallel()
	if _, configureErr := ConfigureCORS(zap.NewNop(), []string{"*"}); !errors.Is(configureErr, errWildcardOrigin) {
		t.Fatalf("expected wildcard rejection, got %v", configureErr)
	}
}

func TestConfigureCORSRejectsEmptyAndInvalid(t *testing.T) {
	t.Parallel()
	if _, configureErr := ConfigureCORS(zap.NewNop(), nil); !errors.Is(configureErr, errEmptyAllowedOrigins) {
		t.Fatalf("expected empty origins rejection, got %v", configureErr)
	}
	if _, configureErr := ConfigureCORS(zap.NewNop(), []string{"ftp://example.com"}); !errors.Is(configureErr, errInvalidOrigin) {
		t.Fatalf("expected invalid origin rejection, got %v", configureErr)
	}
	if _, configureErr := ConfigureCORS(zap.NewNop(), []string{"https://example.com/path"}); !errors.Is(configureErr, errInvalidOrigin) {
		t.Fatalf("expected path origin rejection, got %v", configureErr)
	}
}
