package surface

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

// TerminalRenderer renders a score view as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func categoryColor(cat score.RiskCategory) string {
	if noColor() {
		return ""
	}
	switch cat {
	case score.RiskLow:
		return colorGreen
	case score.RiskMedium:
		return colorYellow
	case score.RiskHigh, score.RiskCritical:
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, view *View) error {
	snap := view.Snapshot
	cc := categoryColor(snap.RiskCategory)

	// Header
	header := fmt.Sprintf("Breathescope: Score %.1f — %s risk",
		snap.Overall, colored(strings.ToUpper(string(snap.RiskCategory)), cc))
	if view.Stale {
		header += " " + dim("(stale)")
	}
	fmt.Fprintf(w, "%s\n\n", bold(header))

	// Components
	fmt.Fprintln(w, "Components:")
	fmt.Fprintf(w, "  Respiratory     %5.1f\n", snap.Components.Respiratory)
	fmt.Fprintf(w, "  Cardiovascular  %5.1f\n", snap.Components.Cardiovascular)
	fmt.Fprintf(w, "  Immune          %5.1f\n", snap.Components.Immune)
	fmt.Fprintf(w, "  Activity impact %5.1f\n", snap.Components.ActivityImpact)
	fmt.Fprintln(w)

	// Contributing factors, stable order
	if len(snap.ContributingFactors) > 0 {
		keys := make([]string, 0, len(snap.ContributingFactors))
		for k := range snap.ContributingFactors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Contributing factors:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %s\n", dim(fmt.Sprintf("%-20s", k)),
				fmt.Sprintf("%.1f", snap.ContributingFactors[k]))
		}
		fmt.Fprintln(w)
	}

	// Recommendations, urgent first marker
	if len(snap.Recommendations) > 0 {
		fmt.Fprintln(w, "Recommendations:")
		for _, rec := range snap.Recommendations {
			marker := "•"
			if rec.IsUrgent || rec.Priority == score.PriorityCritical {
				marker = colored("!", colorRed)
			}
			fmt.Fprintf(w, "  %s %s %s\n", marker, bold(rec.Title),
				dim(fmt.Sprintf("[%s/%s]", rec.Type, rec.Priority)))
			if rec.Description != "" {
				for _, line := range wrapText(rec.Description, 70) {
					fmt.Fprintf(w, "    %s\n", dim(line))
				}
			}
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No recommendations.")
		fmt.Fprintln(w)
	}

	// Trend
	if view.Trend != nil {
		r.renderTrend(w, view.Trend)
	}

	return nil
}

func (r *TerminalRenderer) renderTrend(w io.Writer, rep *trend.Report) {
	if !rep.SufficientData {
		fmt.Fprintf(w, "Trend: %s\n\n", dim(fmt.Sprintf("not enough history (%d samples)", rep.SampleCount)))
		return
	}

	dc := ""
	if !noColor() {
		switch rep.Direction {
		case trend.Improving:
			dc = colorGreen
		case trend.Declining:
			dc = colorRed
		}
	}
	fmt.Fprintf(w, "Trend: %s over %d samples\n", colored(string(rep.Direction), dc), rep.SampleCount)
	fmt.Fprintf(w, "  range %.1f–%.1f, volatility %.1f, %+.1f pts/week\n\n",
		rep.MinScore, rep.MaxScore, rep.Volatility, rep.ImprovementRate)
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
