package upload

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"avatar-service/internal/storage"
)

const (
	// FieldName is the multipart form field carrying the avatar file.
	FieldName = "avatar"

	// MaxFileSize caps a single upload at 5 MiB.
	MaxFileSize = 5 * 1024 * 1024

	// ContextKey holds the stored filename for the downstream handler.
	ContextKey = "uploaded_file"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Accept validates and stores the avatar file before the handler runs.
// A request without a file passes through untouched: the handler decides
// whether that is an error, so a missing user still wins over a missing file.
func Accept(log *slog.Logger, store storage.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile(FieldName)
		if err != nil {
			c.Next()
			return
		}

		contentType := fh.Header.Get("Content-Type")
		if !allowedTypes[contentType] {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Unsupported file format"})
			return
		}

		if fh.Size > MaxFileSize {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "File too large"})
			return
		}

		src, err := fh.Open()
		if err != nil {
			log.Error("upload_open_failed", "file", fh.Filename, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}
		defer src.Close()

		name := StoredName(fh.Filename, time.Now())
		if err := store.Save(c.Request.Context(), name, src); err != nil {
			log.Error("upload_store_failed", "file", name, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}

		c.Set(ContextKey, name)
		c.Next()
	}
}

// StoredName builds the collision-resistant on-disk name
// <unix-millis>-<original-filename>.
func StoredName(original string, now time.Time) string {
	base := filepath.Base(strings.TrimSpace(original))
	base = strings.ReplaceAll(base, string(filepath.Separator), "_")
	if base == "." || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}
