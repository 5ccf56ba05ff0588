package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/analytics"
	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/blog"
	"github.com/tyemirov/behindy/internal/storage"
	"github.com/tyemirov/behindy/internal/store"
)

// Server bundles the handler dependencies and mounts the HTTP surface.
type Server struct {
	configuration authkit.ServerConfig
	logger        *zap.Logger
	db            *gorm.DB

	auth       *authkit.Service
	resolver   *authkit.Resolver
	googleAuth *authkit.GoogleAuthenticator
	validator  authkit.IDTokenValidator
	nonces     authkit.NonceStore

	blog      *blog.Service
	analytics *analytics.Service
	objects   storage.ObjectStorage
}

// ServerOptions carries the collaborators the handlers need.
type ServerOptions struct {
	Configuration authkit.ServerConfig
	Logger        *zap.Logger
	DB            *gorm.DB
	Auth          *authkit.Service
	Resolver      *authkit.Resolver
	GoogleAuth    *authkit.GoogleAuthenticator
	Validator     authkit.IDTokenValidator
	Nonces        authkit.NonceStore
	Blog          *blog.Service
	Analytics     *analytics.Service
	Objects       storage.ObjectStorage
}

// NewServer wires the server from its options.
func NewServer(options ServerOptions) *Server {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		configuration: options.Configuration,
		logger:        logger,
		db:            options.DB,
		auth:          options.Auth,
		resolver:      options.Resolver,
		googleAuth:    options.GoogleAuth,
		validator:     options.Validator,
		nonces:        options.Nonces,
		blog:          options.Blog,
		analytics:     options.Analytics,
		objects:       options.Objects,
	}
}

// MountRoutes registers every endpoint on the router.
func (server *Server) MountRoutes(router gin.IRouter) {
	// Redirect-style auth flow.
	router.POST("/login", server.handleLogin)
	router.POST("/register", server.handleRegister)
	router.POST("/logout", server.handleLogout)
	router.GET("/auth/google", server.handleGoogleRedirect)
	router.GET("/auth/google/callback", server.handleGoogleCallback)

	// JSON auth surface.
	router.GET("/api/auth/nonce", server.handleNonce)
	router.POST("/api/auth/google-token", server.handleGoogleToken)
	router.GET("/api/me", server.resolver.RequireAuthJSON(), server.handleMe)

	// Blog.
	router.GET("/api/blog/posts", server.handleListPosts)
	router.GET("/api/blog/posts/:slug", server.handleGetPost)
	router.POST("/api/blog/posts", server.resolver.RequireAuthJSON(), server.handleCreatePost)
	router.PUT("/api/blog/posts/:slug", server.resolver.RequireAuthJSON(), server.handleUpdatePost)
	router.DELETE("/api/blog/posts/:slug", server.resolver.RequireAuthJSON(), server.handleDeletePost)
	router.POST("/api/blog/posts/:slug/publish", server.resolver.RequireAuthJSON(), server.handleTogglePublish)
	router.POST("/api/blog/posts/:slug/comments", server.resolver.RequireAuthJSON(), server.handleAddComment)
	router.DELETE("/api/blog/comments/:id", server.resolver.RequireAuthJSON(), server.handleDeleteComment)
	router.GET("/api/blog/search", server.handleSearch)
	router.GET("/api/blog/tags", server.handleTags)
	router.GET("/api/blog/authors/:id/posts", server.handleAuthorPosts)

	// Dashboards.
	router.GET("/api/dashboard", server.resolver.RequireAuthJSON(), server.handleAuthorDashboard)
	router.GET("/api/dashboard/platform", server.resolver.RequireAuthJSON(), authkit.RequireAdmin(), server.handlePlatformDashboard)

	// Uploads.
	router.POST("/api/upload-image", server.resolver.RequireAuthJSON(), server.handleUploadImage)
	router.GET("/files/*key", server.handleServeFile)
}

// currentUserOptional resolves the viewer without requiring authentication,
// re-issuing the refreshed cookie when a silent refresh happened.
func (server *Server) currentUserOptional(contextGin *gin.Context) *store.User {
	user, refreshedCookie := server.resolver.AuthenticateUser(contextGin.Request)
	if refreshedCookie != "" {
		http.SetCookie(contextGin.Writer, server.auth.Sessions().Cookie(refreshedCookie))
	}
	return user
}

// handleServeFile streams locally stored uploads. Remote backends serve
// their objects from their own public URLs, so this route only backs the
// local development setup.
func (server *Server) handleServeFile(contextGin *gin.Context) {
	key := strings.TrimPrefix(contextGin.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	reader, openErr := server.objects.Open(contextGin.Request.Context(), key)
	if openErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	defer func() { _ = reader.Close() }()
	contextGin.Status(http.StatusOK)
	if _, copyErr := io.Copy(contextGin.Writer, reader); copyErr != nil {
		server.logger.Warn("file stream interrupted", zap.Error(copyErr))
	}
}
