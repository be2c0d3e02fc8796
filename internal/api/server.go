package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"avatar-service/internal/config"
	"avatar-service/internal/db"
	"avatar-service/internal/redis"
	"avatar-service/internal/security"
	"avatar-service/internal/storage"
	"avatar-service/internal/store"
	"avatar-service/internal/upload"
)

type Server struct {
	log     *slog.Logger
	db      *db.DB
	users   store.Users
	files   storage.Client
	cache   *redis.Client // nil when redis is unavailable
	cfg     config.Config
	router  *gin.Engine
	limiter *security.LimiterStore
}

func NewServer(log *slog.Logger, dbConn *db.DB, users store.Users, files storage.Client, cache *redis.Client, cfg config.Config) *Server {
	s := &Server{
		log:     log,
		db:      dbConn,
		users:   users,
		files:   files,
		cache:   cache,
		cfg:     cfg,
		router:  gin.New(),
		limiter: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.requestIDMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	ug := r.Group("/api/users")
	{
		ug.GET("/:id", s.getUser)
		ug.POST("/:id/avatar", upload.Accept(log, files), s.updateAvatar)
	}

	// accepted files are publicly served back at /uploads/<name>
	if local, ok := files.(*storage.Local); ok {
		r.Static("/uploads", local.Dir())
	}

	r.GET("/healthz", s.health)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
