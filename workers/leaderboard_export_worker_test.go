package workers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"scavenger-hunt/models"
)

type fakeSource struct {
	entries []models.LeaderboardEntry
	err     error
	limit   int
}

func (f *fakeSource) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
	docs []any
	fail bool
}

func (f *fakeUploader) UploadJSON(_ context.Context, key string, v any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("bucket unavailable")
	}
	f.keys = append(f.keys, key)
	f.docs = append(f.docs, v)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func TestExportOnce(t *testing.T) {
	src := &fakeSource{entries: []models.LeaderboardEntry{
		{Rank: 1, UserID: "a", DisplayName: "A", TotalPoints: 900},
		{Rank: 2, UserID: "b", DisplayName: "B", TotalPoints: 400},
	}}
	up := &fakeUploader{}
	w := NewLeaderboardExportWorker(src, up, time.Minute, 25)
	w.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	url, err := w.ExportOnce(context.Background())
	if err != nil {
		t.Fatalf("ExportOnce: %v", err)
	}
	if url != "https://cdn.example.com/leaderboards/latest.json" {
		t.Errorf("url = %q", url)
	}
	if src.limit != 25 {
		t.Errorf("limit = %d, want 25", src.limit)
	}
	if len(up.keys) != 2 || !strings.HasPrefix(up.keys[0], "leaderboards/2026-05-01/") || up.keys[1] != latestLeaderboardKey {
		t.Fatalf("keys = %v", up.keys)
	}
	snap := up.docs[1].(LeaderboardSnapshot)
	if snap.SnapshotID == "" || len(snap.Entries) != 2 || !snap.GeneratedAt.Equal(w.now()) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestExportOnceErrors(t *testing.T) {
	w := NewLeaderboardExportWorker(&fakeSource{err: errors.New("store down")}, &fakeUploader{}, time.Minute, 10)
	if _, err := w.ExportOnce(context.Background()); err == nil {
		t.Error("expected source error")
	}

	w = NewLeaderboardExportWorker(&fakeSource{}, &fakeUploader{fail: true}, time.Minute, 10)
	if _, err := w.ExportOnce(context.Background()); err == nil {
		t.Error("expected upload error")
	}
}

func TestWorkerExportsOnStartAndStops(t *testing.T) {
	up := &fakeUploader{}
	w := NewLeaderboardExportWorker(&fakeSource{}, up, time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for up.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if up.count() != 2 {
		t.Fatalf("uploads = %d, want 2 from the initial export", up.count())
	}
}
