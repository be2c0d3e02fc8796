package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN     string
	HTTPAddr  string
	LogLevel  string
	UploadDir string
	RedisDSN  string

	// S3/R2 object storage; local disk is used when Bucket is empty
	S3Endpoint  string
	S3Bucket    string
	S3PublicURL string
	S3Region    string

	CORSOrigins []string
}

func Load() (Config, error) {
	// optional .env for local development; real deployments set the environment
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:       getenvDefault("DB_DSN", "postgres://localhost:5432/avatars?sslmode=disable"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		UploadDir:   getenvDefault("UPLOAD_DIR", "uploads"),
		RedisDSN:    getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		S3Endpoint:  getenvDefault("S3_ENDPOINT", ""),
		S3Bucket:    getenvDefault("S3_BUCKET", ""),
		S3PublicURL: getenvDefault("S3_PUBLIC_URL", ""),
		S3Region:    getenvDefault("S3_REGION", "auto"),
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
