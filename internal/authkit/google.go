package authkit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/tyemirov/behindy/internal/store"
)

const (
	googleUserInfoURL     = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"
	googleExchangeTimeout = 10 * time.Second
)

var (
	// ErrGoogleExchange indicates the code exchange yielded no usable access token.
	ErrGoogleExchange = errors.New("google.exchange_failed")
	// ErrGoogleProfile indicates the userinfo fetch failed or returned no email.
	ErrGoogleProfile = errors.New("google.profile_failed")
)

// GoogleIdentity is the verified external profile.
type GoogleIdentity struct {
	Email   string
	Name    string
	Picture string
}

// GoogleExchanger converts an authorization code into a verified identity.
type GoogleExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (GoogleIdentity, error)
}

// OAuthGoogleExchanger implements GoogleExchanger against Google's endpoints.
type OAuthGoogleExchanger struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

// NewGoogleExchanger builds the exchanger from the server configuration. The
// callback is <base_url>/auth/google/callback.
func NewGoogleExchanger(configuration ServerConfig) *OAuthGoogleExchanger {
	redirectURL := strings.TrimRight(configuration.BaseURL, "/") + "/auth/google/callback"
	return &OAuthGoogleExchanger{
		oauthConfig: &oauth2.Config{
			ClientID:     configuration.GoogleClientID,
			ClientSecret: configuration.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		httpClient:  &http.Client{Timeout: googleExchangeTimeout},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the consent URL carrying the opaque state.
func (exchanger *OAuthGoogleExchanger) AuthCodeURL(state string) string {
	return exchanger.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange swaps the authorization code for provider tokens and fetches the
// profile. The external calls are bounded so a stalled provider cannot hold
// the request open indefinitely.
func (exchanger *OAuthGoogleExchanger) Exchange(ctx context.Context, code string) (GoogleIdentity, error) {
	exchangeCtx, cancel := context.WithTimeout(ctx, googleExchangeTimeout)
	defer cancel()
	exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, exchanger.httpClient)

	token, exchangeErr := exchanger.oauthConfig.Exchange(exchangeCtx, code)
	if exchangeErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.exchange: %w", exchangeErr)
	}
	if token == nil || token.AccessToken == "" {
		return GoogleIdentity{}, fmt.Errorf("google.exchange: %w", ErrGoogleExchange)
	}
	return exchanger.fetchProfile(exchangeCtx, token.AccessToken)
}

func (exchanger *OAuthGoogleExchanger) fetchProfile(ctx context.Context, providerAccessToken string) (GoogleIdentity, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, exchanger.userInfoURL, nil)
	if requestErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.profile: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+providerAccessToken)
	response, doErr := exchanger.httpClient.Do(request)
	if doErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.profile: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return GoogleIdentity{}, fmt.Errorf("google.profile.status_%d: %w", response.StatusCode, ErrGoogleProfile)
	}
	body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.profile: %w", readErr)
	}
	var profile struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if unmarshalErr := json.Unmarshal(body, &profile); unmarshalErr != nil {
		return GoogleIdentity{}, fmt.Errorf("google.profile: %w", unmarshalErr)
	}
	if profile.Email == "" {
		return GoogleIdentity{}, fmt.Errorf("google.profile: %w", ErrGoogleProfile)
	}
	return GoogleIdentity{Email: profile.Email, Name: profile.Name, Picture: profile.Picture}, nil
}

// GoogleAuthenticator maps verified Google identities onto local accounts.
type GoogleAuthenticator struct {
	exchanger GoogleExchanger
	service   *Service
	logger    *zap.Logger
}

// NewGoogleAuthenticator wires the adapter over the auth service.
func NewGoogleAuthenticator(exchanger GoogleExchanger, service *Service, logger *zap.Logger) *GoogleAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleAuthenticator{exchanger: exchanger, service: service, logger: logger}
}

// AuthCodeURL returns the provider consent URL for the given redirect path.
func (authenticator *GoogleAuthenticator) AuthCodeURL(redirectPath string) string {
	return authenticator.exchanger.AuthCodeURL(EncodeState(redirectPath))
}

// HandleGoogleLogin exchanges the authorization code, provisions the local
// account on first sight, and issues a session.
func (authenticator *GoogleAuthenticator) HandleGoogleLogin(ctx context.Context, code string) (*SessionIssue, error) {
	identity, exchangeErr := authenticator.exchanger.Exchange(ctx, code)
	if exchangeErr != nil {
		authenticator.service.metrics.Increment("google.exchange_failure")
		return nil, exchangeErr
	}
	return authenticator.ProvisionAndLogin(ctx, identity)
}

// ProvisionAndLogin resolves or creates the local user for the identity and
// issues a session. An existing account with a stale picture gets the new one.
func (authenticator *GoogleAuthenticator) ProvisionAndLogin(ctx context.Context, identity GoogleIdentity) (*SessionIssue, error) {
	user, findErr := authenticator.service.users.FindByEmail(ctx, strings.ToLower(identity.Email))
	switch {
	case findErr == nil:
		if identity.Picture != "" && (user.ProfileImage == nil || *user.ProfileImage != identity.Picture) {
			if updateErr := authenticator.service.users.UpdateProfileImage(ctx, user.ID, identity.Picture); updateErr != nil {
				return nil, fmt.Errorf("google.login: %w", updateErr)
			}
			picture := identity.Picture
			user.ProfileImage = &picture
		}
	case errors.Is(findErr, ErrUserNotFound):
		name := identity.Name
		if name == "" {
			name, _, _ = strings.Cut(identity.Email, "@")
		}
		user = &store.User{
			Email: strings.ToLower(identity.Email),
			Name:  name,
			// Empty hash marks the account as Google-only.
			PasswordHash: "",
			Role:         store.RoleUser,
		}
		if identity.Picture != "" {
			picture := identity.Picture
			user.ProfileImage = &picture
		}
		if createErr := authenticator.service.users.Create(ctx, user); createErr != nil {
			return nil, fmt.Errorf("google.login: %w", createErr)
		}
	default:
		return nil, fmt.Errorf("google.login: %w", findErr)
	}

	issue, issueErr := authenticator.service.IssueSession(ctx, user)
	if issueErr != nil {
		return nil, issueErr
	}
	authenticator.service.metrics.Increment("google.login.success")
	return issue, nil
}

type stateEnvelope struct {
	RedirectPath string `json:"redirectPath"`
}

// EncodeState wraps the post-login redirect path in base64 JSON.
func EncodeState(redirectPath string) string {
	if redirectPath == "" {
		redirectPath = "/"
	}
	serialized, _ := json.Marshal(stateEnvelope{RedirectPath: redirectPath})
	return base64.StdEncoding.EncodeToString(serialized)
}

// DecodeState recovers the redirect path; malformed state degrades to "/".
func DecodeState(state string) string {
	if state == "" {
		return "/"
	}
	serialized, decodeErr := base64.StdEncoding.DecodeString(state)
	if decodeErr != nil {
		return "/"
	}
	var envelope stateEnvelope
	if unmarshalErr := json.Unmarshal(serialized, &envelope); unmarshalErr != nil {
		return "/"
	}
	if envelope.RedirectPath == "" || !strings.HasPrefix(envelope.RedirectPath, "/") {
		return "/"
	}
	return envelope.RedirectPath
}
