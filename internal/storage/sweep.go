package storage

import (
	"context"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"avatar-service/internal/db"
)

// SweepJob periodically deletes stored avatar files no user record references.
// Files written by uploads whose record update later failed, or replaced
// avatars missed by the inline cleanup, are reclaimed here.
type SweepJob struct {
	db      *db.DB
	storage Client
	logger  *slog.Logger

	interval time.Duration
	grace    time.Duration
}

func NewSweepJob(logger *slog.Logger, dbConn *db.DB, storageClient Client) *SweepJob {
	return &SweepJob{
		db:       dbConn,
		storage:  storageClient,
		logger:   logger,
		interval: 6 * time.Hour,
		grace:    1 * time.Hour,
	}
}

func (j *SweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			j.runCycle(cycleCtx)
			cancel()
		}
	}
}

func (j *SweepJob) runCycle(ctx context.Context) {
	j.logger.Info("orphan_sweep_started")

	referenced, err := j.referencedNames(ctx)
	if err != nil {
		j.logger.Warn("orphan_sweep_query_failed", "error", err)
		return
	}

	stored, err := j.storage.List(ctx)
	if err != nil {
		j.logger.Warn("orphan_sweep_list_failed", "error", err)
		return
	}

	removed := 0
	for _, name := range stored {
		if referenced[name] {
			continue
		}
		// skip recent files: an upload may be in flight between file write
		// and record update
		if ts, ok := uploadedAt(name); ok && time.Since(ts) < j.grace {
			continue
		}
		if err := j.storage.Remove(ctx, name); err != nil {
			j.logger.Warn("orphan_sweep_remove_failed", "file", name, "error", err)
			continue
		}
		removed++
	}

	j.logger.Info("orphan_sweep_completed", "stored", len(stored), "removed", removed)
}

func (j *SweepJob) referencedNames(ctx context.Context) (map[string]bool, error) {
	rows, err := j.db.Pool.Query(ctx,
		`SELECT avatar_url FROM users WHERE avatar_url IS NOT NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referenced := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		referenced[path.Base(url)] = true
	}
	return referenced, rows.Err()
}

// uploadedAt recovers the write time from the <unix-millis>-<original> name.
func uploadedAt(name string) (time.Time, bool) {
	prefix, _, found := strings.Cut(name, "-")
	if !found {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
