package authkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSessionCodecRoundTrip(t *testing.T) {
	codec := NewSessionCodec(newTestServerConfig())
	payload := SessionPayload{AccessToken: "token-value", SessionID: "user-1"}

	encoded, encodeErr := codec.Encode(payload)
	if encodeErr != nil {
		t.Fatalf("encode error: %v", encodeErr)
	}
	decoded, decodeErr := codec.Decode(encoded)
	if decodeErr != nil {
		t.Fatalf("decode error: %v", decodeErr)
	}
	if decoded != payload {
		t.Fatalf("expected %+v, got %+v", payload, decoded)
	}
}

func TestSessionCodecRejectsTamperedValue(t *testing.T) {
	codec := NewSessionCodec(newTestServerConfig())
	encoded, encodeErr := codec.Encode(SessionPayload{AccessToken: "token-value", SessionID: "user-1"})
	if encodeErr != nil {
		t.Fatalf("encode error: %v", encodeErr)
	}

	tampered := "x" + encoded[1:]
	if _, decodeErr := codec.Decode(tampered); decodeErr == nil {
		t.Fatalf("expected tampered cookie to be rejected")
	}
}

func TestSessionCodecRejectsForeignSecret(t *testing.T) {
	codec := NewSessionCodec(newTestServerConfig())

	foreign := newTestServerConfig()
	foreign.CookieSecret = []byte("a-different-cookie-secret")
	foreignCodec := NewSessionCodec(foreign)

	encoded, encodeErr := foreignCodec.Encode(SessionPayload{AccessToken: "token-value", SessionID: "user-1"})
	if encodeErr != nil {
		t.Fatalf("encode error: %v", encodeErr)
	}
	if _, decodeErr := codec.Decode(encoded); decodeErr == nil {
		t.Fatalf("expected cookie signed with a foreign secret to be rejected")
	}
}

func TestSessionCodecRejectsMalformedValues(t *testing.T) {
	codec := NewSessionCodec(newTestServerConfig())
	for _, cookieValue := range []string{"", "nodot", ".leading", "trailing.", "not-base64!.sig"} {
		if _, decodeErr := codec.Decode(cookieValue); decodeErr == nil {
			t.Fatalf("expected %q to be rejected", cookieValue)
		}
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	config := newTestServerConfig()
	codec := NewSessionCodec(config)

	cookie := codec.Cookie("value")
	if cookie.Name != config.SessionCookieName {
		t.Fatalf("expected cookie name %q, got %q", config.SessionCookieName, cookie.Name)
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly cookie")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax")
	}
	if cookie.Path != "/" {
		t.Fatalf("expected Path=/, got %q", cookie.Path)
	}
	if cookie.Secure {
		t.Fatalf("development configuration must not mark the cookie Secure")
	}
	if cookie.MaxAge != 7*24*60*60 {
		t.Fatalf("expected seven-day max age, got %d", cookie.MaxAge)
	}
}

func TestSessionCookieSecureInProduction(t *testing.T) {
	config := newTestServerConfig()
	config.Environment = EnvironmentProduction
	cookie := NewSessionCodec(config).Cookie("value")
	if !cookie.Secure {
		t.Fatalf("production configuration must mark the cookie Secure")
	}
}

func TestExpiredCookieDestroysSession(t *testing.T) {
	cookie := NewSessionCodec(newTestServerConfig()).ExpiredCookie()
	if cookie.MaxAge != -1 {
		t.Fatalf("expected MaxAge -1, got %d", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Fatalf("expected empty value, got %q", cookie.Value)
	}
}

func TestReadRequestMissingOrInvalidCookie(t *testing.T) {
	config := newTestServerConfig()
	codec := NewSessionCodec(config)

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, found := codec.ReadRequest(bare); found {
		t.Fatalf("expected no payload without a cookie")
	}

	withGarbage := httptest.NewRequest(http.MethodGet, "/", nil)
	withGarbage.AddCookie(&http.Cookie{Name: config.SessionCookieName, Value: "garbage"})
	if _, found := codec.ReadRequest(withGarbage); found {
		t.Fatalf("expected garbage cookie value to be ignored")
	}
}

func TestReadRequestDecodesValidCookie(t *testing.T) {
	config := newTestServerConfig()
	codec := NewSessionCodec(config)

	encoded, encodeErr := codec.Encode(SessionPayload{AccessToken: "token-value", SessionID: "user-1"})
	if encodeErr != nil {
		t.Fatalf("encode error: %v", encodeErr)
	}
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: config.SessionCookieName, Value: encoded})

	payload, found := codec.ReadRequest(request)
	if !found {
		t.Fatalf("expected payload from valid cookie")
	}
	if payload.SessionID != "user-1" || !strings.Contains(payload.AccessToken, "token") {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
