package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/authkit"
)

// handleAuthorDashboard answers the authenticated author's dashboard.
func (server *Server) handleAuthorDashboard(contextGin *gin.Context) {
	user := authkit.CurrentUser(contextGin)
	dashboard, dashboardErr := server.analytics.AuthorDashboard(contextGin.Request.Context(), user.ID)
	if dashboardErr != nil {
		server.logger.Error("author dashboard failed", zap.Error(dashboardErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	contextGin.JSON(http.StatusOK, dashboard)
}

// handlePlatformDashboard answers the ADMIN-only platform dashboard. The
// RequireAdmin middleware guards the route.
func (server *Server) handlePlatformDashboard(contextGin *gin.Context) {
	dashboard, dashboardErr := server.analytics.PlatformDashboard(contextGin.Request.Context())
	if dashboardErr != nil {
		server.logger.Error("platform dashboard failed", zap.Error(dashboardErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	contextGin.JSON(http.StatusOK, dashboard)
}
