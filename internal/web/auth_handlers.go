package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/store"
)

// safeRedirectPath keeps post-login redirects on this site.
func safeRedirectPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	return raw
}

func loginErrorRedirect(contextGin *gin.Context, code string) {
	contextGin.Redirect(http.StatusFound, "/login?"+url.Values{"error": []string{code}}.Encode())
}

// handleLogin verifies a password login and redirects with the session cookie
// set. Unknown email and wrong password produce the same error code.
func (server *Server) handleLogin(contextGin *gin.Context) {
	email := contextGin.PostForm("email")
	password := contextGin.PostForm("password")
	redirectTo := safeRedirectPath(contextGin.PostForm("redirectTo"))

	issue, loginErr := server.auth.Login(contextGin.Request.Context(), email, password)
	if loginErr != nil {
		if errors.Is(loginErr, authkit.ErrInvalidCredentials) {
			loginErrorRedirect(contextGin, "invalid_credentials")
			return
		}
		server.logger.Error("login failed", zap.Error(loginErr))
		loginErrorRedirect(contextGin, "server_error")
		return
	}
	http.SetCookie(contextGin.Writer, server.auth.Sessions().Cookie(issue.Cookie))
	contextGin.Redirect(http.StatusFound, redirectTo)
}

// handleRegister creates an account and logs it in.
func (server *Server) handleRegister(contextGin *gin.Context) {
	email := contextGin.PostForm("email")
	password := contextGin.PostForm("password")
	name := strings.TrimSpace(contextGin.PostForm("name"))
	redirectTo := safeRedirectPath(contextGin.PostForm("redirectTo"))

	issue, registerErr := server.auth.Register(contextGin.Request.Context(), email, password, name)
	if registerErr != nil {
		switch {
		case errors.Is(registerErr, authkit.ErrWeakPassword):
			loginErrorRedirect(contextGin, "weak_password")
		case errors.Is(registerErr, authkit.ErrEmailTaken):
			// Same generic code as a bad login so account existence leaks
			// nowhere.
			loginErrorRedirect(contextGin, "invalid_credentials")
		default:
			server.logger.Error("register failed", zap.Error(registerErr))
			loginErrorRedirect(contextGin, "server_error")
		}
		return
	}
	http.SetCookie(contextGin.Writer, server.auth.Sessions().Cookie(issue.Cookie))
	contextGin.Redirect(http.StatusFound, redirectTo)
}

// handleLogout deletes the refresh tokens for the carried session, expires
// the cookie, and redirects to the login page.
func (server *Server) handleLogout(contextGin *gin.Context) {
	if payload, ok := server.auth.Sessions().ReadRequest(contextGin.Request); ok {
		if logoutErr := server.auth.Logout(contextGin.Request.Context(), payload.SessionID); logoutErr != nil {
			server.logger.Warn("logout cleanup failed", zap.Error(logoutErr))
		}
	}
	http.SetCookie(contextGin.Writer, server.auth.Sessions().ExpiredCookie())
	contextGin.Redirect(http.StatusFound, "/login")
}

// handleGoogleRedirect sends the browser to the Google consent screen with
// the return path folded into the state parameter.
func (server *Server) handleGoogleRedirect(contextGin *gin.Context) {
	redirectTo := safeRedirectPath(contextGin.Query("redirectTo"))
	contextGin.Redirect(http.StatusFound, server.googleAuth.AuthCodeURL(redirectTo))
}

// handleGoogleCallback finishes the OAuth round trip. Provider failures
// redirect back to the login page with an error code, never a raw error body.
func (server *Server) handleGoogleCallback(contextGin *gin.Context) {
	if providerError := contextGin.Query("error"); providerError != "" {
		loginErrorRedirect(contextGin, "google_denied")
		return
	}
	code := contextGin.Query("code")
	if code == "" {
		loginErrorRedirect(contextGin, "google_failed")
		return
	}

	issue, loginErr := server.googleAuth.HandleGoogleLogin(contextGin.Request.Context(), code)
	if loginErr != nil {
		server.logger.Warn("google login failed", zap.Error(loginErr))
		loginErrorRedirect(contextGin, "google_failed")
		return
	}
	http.SetCookie(contextGin.Writer, server.auth.Sessions().Cookie(issue.Cookie))
	contextGin.Redirect(http.StatusFound, authkit.DecodeState(contextGin.Query("state")))
}

// handleNonce issues a one-time nonce for the google-token exchange.
func (server *Server) handleNonce(contextGin *gin.Context) {
	nonce, issueErr := server.nonces.Issue(contextGin.Request.Context())
	if issueErr != nil {
		server.logger.Error("nonce issue failed", zap.Error(issueErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// handleGoogleToken verifies a client-side Google ID token, bound to a
// previously issued nonce, and issues a session without the redirect dance.
func (server *Server) handleGoogleToken(contextGin *gin.Context) {
	var inbound struct {
		IDToken string `json:"idToken"`
		Nonce   string `json:"nonce"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.IDToken) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	ctx := contextGin.Request.Context()
	if consumeErr := server.nonces.Consume(ctx, inbound.Nonce); consumeErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_nonce"})
		return
	}
	identity, verifyErr := authkit.VerifyGoogleIDToken(ctx, server.validator, inbound.IDToken, server.configuration.GoogleClientID)
	if verifyErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_google_token"})
		return
	}
	issue, loginErr := server.googleAuth.ProvisionAndLogin(ctx, identity)
	if loginErr != nil {
		server.logger.Error("google token login failed", zap.Error(loginErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	http.SetCookie(contextGin.Writer, server.auth.Sessions().Cookie(issue.Cookie))
	contextGin.JSON(http.StatusOK, userPayload(issue.User))
}

// handleMe returns the authenticated user's profile.
func (server *Server) handleMe(contextGin *gin.Context) {
	user := authkit.CurrentUser(contextGin)
	contextGin.JSON(http.StatusOK, userPayload(user))
}

func userPayload(user *store.User) gin.H {
	payload := gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	}
	if user.ProfileImage != nil {
		payload["profileImage"] = *user.ProfileImage
	}
	return payload
}
