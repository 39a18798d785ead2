// Package surface defines output rendering for Breathescope results.
// Implementations handle different output targets: terminal, Markdown
// report, JSON.
package surface

import (
	"io"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

// View bundles everything a renderer may show for one user.
type View struct {
	Snapshot *score.Snapshot `json:"snapshot"`
	Trend    *trend.Report   `json:"trend,omitempty"`
	Stale    bool            `json:"stale,omitempty"`
}

// Renderer produces formatted output from a score view.
type Renderer interface {
	// Render writes the formatted view to the writer.
	Render(w io.Writer, view *View) error
}

// ReportData holds the data needed for a shareable score report.
type ReportData struct {
	Title   string `json:"title"`
	Summary string `json:"summary"` // Markdown body
	Status  string `json:"status"`  // good, caution, alert
}
