package web

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/store"
)

// maxUploadBytes caps a single image upload at 5 MiB.
const maxUploadBytes = 5 << 20

// handleUploadImage stores one multipart image under an opaque key, records
// an audit row, and returns the public URL.
func (server *Server) handleUploadImage(contextGin *gin.Context) {
	user := authkit.CurrentUser(contextGin)

	contextGin.Request.Body = http.MaxBytesReader(contextGin.Writer, contextGin.Request.Body, maxUploadBytes+4096)
	fileHeader, formErr := contextGin.FormFile("image")
	if formErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_image"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		contextGin.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image_too_large"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "not_an_image"})
		return
	}

	key := uploadKey(user.ID, fileHeader.Filename)
	file, openErr := fileHeader.Open()
	if openErr != nil {
		server.logger.Error("upload open failed", zap.Error(openErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	defer func() { _ = file.Close() }()

	ctx := contextGin.Request.Context()
	if saveErr := server.objects.Save(ctx, key, file, contentType); saveErr != nil {
		server.logger.Error("upload store failed", zap.Error(saveErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	publicURL := server.objects.PublicURL(key)
	upload := &store.Upload{
		UserID:      user.ID,
		Key:         key,
		URL:         publicURL,
		ContentType: contentType,
		SizeBytes:   fileHeader.Size,
	}
	if recordErr := server.db.WithContext(ctx).Create(upload).Error; recordErr != nil {
		server.logger.Warn("upload audit row failed", zap.Error(recordErr))
	}

	contextGin.JSON(http.StatusOK, gin.H{"url": publicURL, "key": key})
}

// uploadKey derives the storage key: a short owner prefix plus a short random
// id, keeping the original extension.
func uploadKey(userID string, filename string) string {
	ownerPart := userID
	if len(ownerPart) > 8 {
		ownerPart = ownerPart[:8]
	}
	randomPart := uuid.NewString()[:8]
	extension := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("uploads/%s_%s%s", ownerPart, randomPart, extension)
}
