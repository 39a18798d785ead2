package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/surface"
	"github.com/breathescope/breathescope/pkg/trend"
)

// Export describes one archived history export.
type Export struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// exportBody is the stored blob format.
type exportBody struct {
	Export
	Trend   trend.Report     `json:"trend"`
	History []score.Snapshot `json:"history"`
}

// Exporter writes score history with its trend analysis to blob storage.
type Exporter struct {
	storage StorageClient
	log     zerolog.Logger
}

// NewExporter creates an Exporter on top of the given storage backend.
func NewExporter(storage StorageClient, log zerolog.Logger) *Exporter {
	return &Exporter{storage: storage, log: log}
}

// ExportHistory archives the given history slice and returns its
// descriptor. The history must be in ascending timestamp order; the trend
// report is computed over exactly what is archived.
func (e *Exporter) ExportHistory(ctx context.Context, userID string, history []score.Snapshot) (*Export, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("no history to export for %s", userID)
	}

	exp := Export{
		ID:        uuid.NewString(),
		UserID:    userID,
		From:      history[0].Timestamp,
		To:        history[len(history)-1].Timestamp,
		Count:     len(history),
		CreatedAt: time.Now().UTC(),
	}
	body := exportBody{
		Export:  exp,
		Trend:   trend.Analyze(history),
		History: history,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	if err := e.storage.PutExport(ctx, userID, exp.ID, data); err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}

	e.log.Info().Str("user", userID).Str("export", exp.ID).
		Int("snapshots", exp.Count).Msg("archived score history")
	return &exp, nil
}

// ExportReport renders and archives a shareable Markdown report for the
// latest snapshot, returning the report ID.
func (e *Exporter) ExportReport(ctx context.Context, userID string, view *surface.View) (string, error) {
	data := (&surface.MarkdownRenderer{}).BuildReportData(view)
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	reportID := uuid.NewString()
	if err := e.storage.PutReport(ctx, userID, reportID, raw); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return reportID, nil
}

// LoadExport retrieves an archived export body.
func (e *Exporter) LoadExport(ctx context.Context, userID, exportID string) ([]score.Snapshot, *trend.Report, error) {
	raw, err := e.storage.GetExport(ctx, userID, exportID)
	if err != nil {
		return nil, nil, fmt.Errorf("load export %s: %w", exportID, err)
	}
	var body exportBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, fmt.Errorf("decode export %s: %w", exportID, err)
	}
	return body.History, &body.Trend, nil
}
