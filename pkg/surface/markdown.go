package surface

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

// MarkdownRenderer produces a shareable Markdown report from a score view,
// wrapped in ReportData so delivery integrations can post title and status
// separately from the body.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, view *View) error {
	data := r.BuildReportData(view)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// BuildReportData creates the ReportData struct from a score view.
func (r *MarkdownRenderer) BuildReportData(view *View) ReportData {
	snap := view.Snapshot
	title := fmt.Sprintf("Breathescope: Score %.1f — %s risk", snap.Overall, snap.RiskCategory)
	if view.Stale {
		title += " (stale)"
	}

	return ReportData{
		Title:   title,
		Summary: buildMarkdownSummary(view),
		Status:  categoryToStatus(snap.RiskCategory),
	}
}

func categoryToStatus(cat score.RiskCategory) string {
	switch cat {
	case score.RiskLow:
		return "good"
	case score.RiskMedium:
		return "caution"
	default:
		return "alert"
	}
}

func buildMarkdownSummary(view *View) string {
	snap := view.Snapshot
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Breathescope: Score %.1f — %s risk\n\n", snap.Overall, snap.RiskCategory))

	sb.WriteString("### Components\n\n")
	sb.WriteString("| Component | Score |\n|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Respiratory | %.1f |\n", snap.Components.Respiratory))
	sb.WriteString(fmt.Sprintf("| Cardiovascular | %.1f |\n", snap.Components.Cardiovascular))
	sb.WriteString(fmt.Sprintf("| Immune | %.1f |\n", snap.Components.Immune))
	sb.WriteString(fmt.Sprintf("| Activity impact | %.1f |\n", snap.Components.ActivityImpact))
	sb.WriteString("\n")

	// Recommendations (max 5)
	if len(snap.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		max := 5
		if len(snap.Recommendations) < max {
			max = len(snap.Recommendations)
		}
		for i := 0; i < max; i++ {
			rec := snap.Recommendations[i]
			sb.WriteString(fmt.Sprintf("- %s **%s** — %s\n",
				priorityIcon(rec), rec.Title, rec.Description))
		}
		if len(snap.Recommendations) > max {
			sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(snap.Recommendations)-max))
		}
		sb.WriteString("\n")
	}

	if rep := view.Trend; rep != nil && rep.SufficientData {
		sb.WriteString("### Trend\n\n")
		sb.WriteString(fmt.Sprintf("%s %s over %d samples, range %.1f–%.1f, %+.1f pts/week\n",
			trendIcon(rep.Direction), rep.Direction, rep.SampleCount,
			rep.MinScore, rep.MaxScore, rep.ImprovementRate))
	}

	return sb.String()
}

func priorityIcon(rec score.Recommendation) string {
	if rec.IsUrgent || rec.Priority == score.PriorityCritical {
		return ":red_circle:"
	}
	switch rec.Priority {
	case score.PriorityHigh:
		return ":orange_circle:"
	case score.PriorityMedium:
		return ":yellow_circle:"
	default:
		return ":blue_circle:"
	}
}

func trendIcon(dir trend.Direction) string {
	switch dir {
	case trend.Improving:
		return ":chart_with_upwards_trend:"
	case trend.Declining:
		return ":chart_with_downwards_trend:"
	default:
		return ":straight_ruler:"
	}
}
