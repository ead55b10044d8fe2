// workers/leaderboard_export_worker.go
package workers

import (
	"context"
	"fmt"
	"time"

	"scavenger-hunt/models"
	"scavenger-hunt/utils"

	"github.com/google/uuid"
)

const latestLeaderboardKey = "leaderboards/latest.json"

// Uploader stores a JSON document and returns its public URL.
type Uploader interface {
	UploadJSON(ctx context.Context, key string, v any) (string, error)
}

// LeaderboardSource produces the ranked top of the leaderboard.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// LeaderboardSnapshot is the document published to object storage.
type LeaderboardSnapshot struct {
	SnapshotID  string                    `json:"snapshot_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Entries     []models.LeaderboardEntry `json:"entries"`
}

type LeaderboardExportWorker struct {
	source   LeaderboardSource
	uploader Uploader
	interval time.Duration
	size     int
	now      func() time.Time
}

func NewLeaderboardExportWorker(source LeaderboardSource, uploader Uploader, interval time.Duration, size int) *LeaderboardExportWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &LeaderboardExportWorker{
		source:   source,
		uploader: uploader,
		interval: interval,
		size:     size,
		now:      time.Now,
	}
}

func (w *LeaderboardExportWorker) Start(ctx context.Context) {
	utils.Sugar.Infof("🔁 Starting leaderboard export worker (every %s)…", w.interval)
	go w.run(ctx)
}

func (w *LeaderboardExportWorker) run(ctx context.Context) {
	if _, err := w.ExportOnce(ctx); err != nil {
		utils.Sugar.Warnf("⚠️ Initial leaderboard export failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.ExportOnce(ctx); err != nil {
				utils.Sugar.Errorf("❌ Leaderboard export failed: %v", err)
			}
		case <-ctx.Done():
			utils.Sugar.Info("⏹️ Leaderboard export worker stopped")
			return
		}
	}
}

// ExportOnce uploads a dated snapshot and refreshes the "latest" object.
// It returns the URL of the latest object.
func (w *LeaderboardExportWorker) ExportOnce(ctx context.Context) (string, error) {
	entries, err := w.source.Leaderboard(ctx, w.size)
	if err != nil {
		return "", fmt.Errorf("load leaderboard: %w", err)
	}

	at := w.now().UTC()
	snap := LeaderboardSnapshot{
		SnapshotID:  uuid.NewString(),
		GeneratedAt: at,
		Entries:     entries,
	}

	key := fmt.Sprintf("leaderboards/%s/%s.json", at.Format("2006-01-02"), snap.SnapshotID)
	if _, err := w.uploader.UploadJSON(ctx, key, snap); err != nil {
		return "", err
	}
	url, err := w.uploader.UploadJSON(ctx, latestLeaderboardKey, snap)
	if err != nil {
		return "", err
	}

	utils.Sugar.Infof("📤 Leaderboard exported (%d entries) → %s", len(entries), url)
	return url, nil
}
