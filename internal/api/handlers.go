package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"avatar-service/internal/store"
	"avatar-service/internal/upload"
)

const userCacheTTL = 5 * time.Minute

func userCacheKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (s *Server) getUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		// malformed ids cannot match any store-assigned identifier
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userCacheKey(id)); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		s.log.Error("user_lookup_failed", "user_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	if s.cache != nil {
		if body, err := json.Marshal(user); err == nil {
			_ = s.cache.Set(ctx, userCacheKey(id), string(body), userCacheTTL)
		}
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) updateAvatar(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		s.discardStoredFile(c)
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	// lookup first: a missing user outranks a missing file
	if _, err := s.users.GetByID(ctx, id); err != nil {
		s.discardStoredFile(c)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.log.Error("user_lookup_failed", "user_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	stored, ok := c.Get(upload.ContextKey)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}
	filename := stored.(string)
	avatarURL := "/uploads/" + filename

	user, previous, err := s.users.UpdateAvatar(ctx, id, avatarURL)
	if err != nil {
		// the file is already on disk; drop it so a failed update leaves nothing behind
		if rmErr := s.files.Remove(ctx, filename); rmErr != nil {
			s.log.Warn("upload_compensation_failed", "file", filename, "error", rmErr)
		}
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.log.Error("avatar_update_failed", "user_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	// reclaim the superseded file after a successful replacement
	if previous != nil && *previous != avatarURL {
		if rmErr := s.files.Remove(ctx, path.Base(*previous)); rmErr != nil {
			s.log.Warn("previous_avatar_remove_failed", "file", *previous, "error", rmErr)
		}
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, userCacheKey(id))
	}

	s.log.Info("avatar_updated", "user_id", id, "avatar_url", avatarURL)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Avatar updated successfully",
		"avatarUrl": user.AvatarURL,
	})
}

// discardStoredFile removes a file the acceptance layer already wrote when
// the request is about to fail for a reason unrelated to the file itself.
func (s *Server) discardStoredFile(c *gin.Context) {
	stored, ok := c.Get(upload.ContextKey)
	if !ok {
		return
	}
	name := stored.(string)
	if err := s.files.Remove(c.Request.Context(), name); err != nil {
		s.log.Warn("upload_compensation_failed", "file", name, "error", err)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if s.db == nil || s.db.Pool == nil {
		dbStatus = "disconnected"
	} else if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if s.cache == nil {
		redisStatus = "disconnected"
	} else if err := s.cache.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	response := gin.H{
		"status":   status,
		"database": dbStatus,
		"redis":    redisStatus,
	}

	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
