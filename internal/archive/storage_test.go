package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/score"
)

func TestLocalStoragePutGetExport(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"history":[]}`)
	if err := s.PutExport(ctx, "alice", "exp1", data); err != nil {
		t.Fatalf("PutExport: %v", err)
	}

	got, err := s.GetExport(ctx, "alice", "exp1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetExport = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "alice", "exports", "exp1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStoragePutGetReport(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"title":"Breathescope"}`)
	if err := s.PutReport(ctx, "alice", "rep1", data); err != nil {
		t.Fatalf("PutReport: %v", err)
	}

	got, err := s.GetReport(ctx, "alice", "rep1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetReport = %q, want %q", got, data)
	}
}

func TestLocalStorageGetNotFound(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	if _, err := s.GetExport(context.Background(), "alice", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent export")
	}
}

func historyFixture(scores ...float64) []score.Snapshot {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	out := make([]score.Snapshot, len(scores))
	for i, v := range scores {
		out[i] = score.Snapshot{
			UserID:       "alice",
			Timestamp:    base.Add(time.Duration(i) * 24 * time.Hour),
			Overall:      v,
			RiskCategory: score.CategoryFromScore(v),
			RiskLevel:    score.RiskLevelFromScore(v),
		}
	}
	return out
}

func TestExportHistoryRoundTrip(t *testing.T) {
	exporter := NewExporter(NewLocalStorage(t.TempDir()), zerolog.Nop())
	ctx := context.Background()

	history := historyFixture(80, 78, 74, 72, 71, 70)
	exp, err := exporter.ExportHistory(ctx, "alice", history)
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if exp.Count != 6 {
		t.Errorf("Count = %d, want 6", exp.Count)
	}
	if !exp.From.Equal(history[0].Timestamp) || !exp.To.Equal(history[5].Timestamp) {
		t.Errorf("window = %v..%v", exp.From, exp.To)
	}

	gotHistory, gotTrend, err := exporter.LoadExport(ctx, "alice", exp.ID)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if len(gotHistory) != 6 {
		t.Fatalf("loaded %d snapshots, want 6", len(gotHistory))
	}
	if gotTrend.SampleCount != 6 {
		t.Errorf("trend sample count = %d, want 6", gotTrend.SampleCount)
	}
}

func TestExportHistoryEmpty(t *testing.T) {
	exporter := NewExporter(NewLocalStorage(t.TempDir()), zerolog.Nop())
	if _, err := exporter.ExportHistory(context.Background(), "alice", nil); err == nil {
		t.Error("expected error for empty history")
	}
}
