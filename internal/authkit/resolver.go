package authkit

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/store"
)

// ContextUserKey is where RequireAuth stores the resolved user.
const ContextUserKey = "auth_user"

// Resolver turns an incoming request into a verified user, refreshing the
// access token transparently when it has expired and a valid refresh token
// remains. Request states: unauthenticated, valid access, expired access with
// valid refresh, expired access with invalid refresh.
type Resolver struct {
	service *Service
	logger  *zap.Logger
}

// NewResolver wires the resolver over the auth service.
func NewResolver(service *Service, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{service: service, logger: logger}
}

// AuthenticateUser resolves the request to a user or nil. When a silent
// refresh happened, refreshedCookie carries the new signed session cookie
// value; the caller is contractually required to attach it to the response.
// Store failures resolve to an unauthenticated result (fail closed).
func (resolver *Resolver) AuthenticateUser(request *http.Request) (user *store.User, refreshedCookie string) {
	ctx := request.Context()
	payload, ok := resolver.service.sessions.ReadRequest(request)
	if !ok || payload.AccessToken == "" {
		return nil, ""
	}

	if claims, valid := resolver.service.tokens.VerifyAccessToken(payload.AccessToken); valid {
		resolved, findErr := resolver.service.users.FindByID(ctx, claims.UserID)
		if findErr != nil {
			if !errors.Is(findErr, ErrUserNotFound) {
				resolver.logger.Warn("auth: user lookup failed", zap.Error(findErr))
			}
			return nil, ""
		}
		return resolved, ""
	}

	// Access token expired or invalid: try the stored refresh token.
	if payload.SessionID == "" {
		return nil, ""
	}
	record, findErr := resolver.service.refreshTokens.FindLatestByUser(ctx, payload.SessionID)
	if findErr != nil {
		if !errors.Is(findErr, ErrRefreshTokenNotFound) {
			resolver.logger.Warn("auth: refresh token lookup failed", zap.Error(findErr))
		}
		resolver.service.metrics.Increment("session.refresh_invalid")
		return nil, ""
	}
	if _, valid := resolver.service.tokens.VerifyRefreshToken(record.Token); !valid {
		if deleteErr := resolver.service.refreshTokens.DeleteByToken(ctx, record.Token); deleteErr != nil && !errors.Is(deleteErr, ErrRefreshTokenNotFound) {
			resolver.logger.Warn("auth: stale refresh token cleanup failed", zap.Error(deleteErr))
		}
		resolver.service.metrics.Increment("session.refresh_invalid")
		return nil, ""
	}
	resolved, userErr := resolver.service.users.FindByID(ctx, record.UserID)
	if userErr != nil {
		if !errors.Is(userErr, ErrUserNotFound) {
			resolver.logger.Warn("auth: user lookup failed", zap.Error(userErr))
		}
		return nil, ""
	}

	accessToken, _, mintErr := resolver.service.tokens.MintAccessToken(resolved.ID, resolved.Email, resolved.Role)
	if mintErr != nil {
		resolver.logger.Warn("auth: access token mint failed", zap.Error(mintErr))
		return nil, ""
	}
	if _, rotateErr := resolver.service.RotateRefreshToken(ctx, resolved); rotateErr != nil {
		resolver.logger.Warn("auth: refresh rotation failed", zap.Error(rotateErr))
		return nil, ""
	}
	cookieValue, encodeErr := resolver.service.sessions.Encode(SessionPayload{
		AccessToken: accessToken,
		SessionID:   resolved.ID,
	})
	if encodeErr != nil {
		resolver.logger.Warn("auth: session encode failed", zap.Error(encodeErr))
		return nil, ""
	}
	resolver.service.metrics.Increment("session.refresh")
	return resolved, cookieValue
}

// RequireAuth redirects unauthenticated requests to the login page with the
// original path preserved in redirectTo. On success the user is injected into
// the gin context and any refreshed cookie is re-issued on the response.
func (resolver *Resolver) RequireAuth() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		user, refreshedCookie := resolver.AuthenticateUser(contextGin.Request)
		if user == nil {
			redirectTo := contextGin.Request.URL.Path
			query := url.Values{"redirectTo": []string{redirectTo}}
			contextGin.Redirect(http.StatusFound, "/login?"+query.Encode())
			contextGin.Abort()
			return
		}
		if refreshedCookie != "" {
			http.SetCookie(contextGin.Writer, resolver.service.sessions.Cookie(refreshedCookie))
		}
		contextGin.Set(ContextUserKey, user)
		contextGin.Next()
	}
}

// RequireAuthJSON behaves like RequireAuth but answers 401 JSON instead of a
// redirect, for API-style endpoints.
func (resolver *Resolver) RequireAuthJSON() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		user, refreshedCookie := resolver.AuthenticateUser(contextGin.Request)
		if user == nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if refreshedCookie != "" {
			http.SetCookie(contextGin.Writer, resolver.service.sessions.Cookie(refreshedCookie))
		}
		contextGin.Set(ContextUserKey, user)
		contextGin.Next()
	}
}

// RequireAdmin allows only ADMIN users past; it must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		user := CurrentUser(contextGin)
		if user == nil || user.Role != store.RoleAdmin {
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		contextGin.Next()
	}
}

// CurrentUser returns the user injected by RequireAuth, or nil.
func CurrentUser(contextGin *gin.Context) *store.User {
	value, exists := contextGin.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*store.User)
	if !ok {
		return nil
	}
	return user
}
