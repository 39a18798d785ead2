// Package recommend manages the lifecycle of recommendations attached to a
// score snapshot. Every mutation is copy-on-write: the input snapshot is
// never modified, a new snapshot version sharing the same timestamp key is
// returned instead. Persistence of the result is the caller's job.
package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/breathescope/breathescope/pkg/score"
)

// completedMarker prefixes the action entry appended by Complete.
const completedMarker = "Completed"

// Dismiss removes the recommendation with the given ID from the snapshot's
// active list. Unknown or already-dismissed IDs are a silent no-op returning
// the input unchanged: UI double-taps are expected and not an error.
func Dismiss(snap *score.Snapshot, recommendationID string) *score.Snapshot {
	if snap == nil {
		return nil
	}
	idx := indexOf(snap.Recommendations, recommendationID)
	if idx < 0 {
		return snap
	}

	out := snap.Clone()
	out.Recommendations = append(out.Recommendations[:idx], out.Recommendations[idx+1:]...)
	return out
}

// Complete appends a timestamped completion marker to the matching
// recommendation's actions. The recommendation itself is never removed.
// Unknown IDs are a no-op, same rationale as Dismiss.
func Complete(snap *score.Snapshot, recommendationID string, at time.Time) *score.Snapshot {
	if snap == nil {
		return nil
	}
	idx := indexOf(snap.Recommendations, recommendationID)
	if idx < 0 {
		return snap
	}

	out := snap.Clone()
	rec := &out.Recommendations[idx]
	rec.Actions = append(rec.Actions, fmt.Sprintf("%s at %s", completedMarker, at.UTC().Format(time.RFC3339)))
	return out
}

// IsCompleted reports whether the recommendation carries a completion marker.
func IsCompleted(rec score.Recommendation) bool {
	for _, a := range rec.Actions {
		if strings.HasPrefix(a, completedMarker) {
			return true
		}
	}
	return false
}

// Urgent returns recommendations flagged urgent or carrying critical
// priority, preserving original order.
func Urgent(snap *score.Snapshot) []score.Recommendation {
	if snap == nil {
		return nil
	}
	var out []score.Recommendation
	for _, r := range snap.Recommendations {
		if r.IsUrgent || r.Priority == score.PriorityCritical {
			out = append(out, r)
		}
	}
	return out
}

// ByType filters recommendations by type, case-insensitively, preserving
// order.
func ByType(snap *score.Snapshot, recType string) []score.Recommendation {
	return filter(snap, func(r score.Recommendation) bool {
		return strings.EqualFold(r.Type, recType)
	})
}

// ByPriority filters recommendations by priority, case-insensitively,
// preserving order.
func ByPriority(snap *score.Snapshot, priority string) []score.Recommendation {
	return filter(snap, func(r score.Recommendation) bool {
		return strings.EqualFold(string(r.Priority), priority)
	})
}

// CarryForward copies still-applicable recommendations from a previous
// snapshot version into a freshly computed one, skipping IDs the new
// snapshot already carries and anything already completed.
func CarryForward(prev, next *score.Snapshot) *score.Snapshot {
	if prev == nil || next == nil {
		return next
	}
	out := next.Clone()
	for _, r := range prev.Recommendations {
		if r.IsUrgent && !IsCompleted(r) && indexOf(out.Recommendations, r.ID) < 0 {
			out.Recommendations = append(out.Recommendations, r)
		}
	}
	return out
}

func indexOf(recs []score.Recommendation, id string) int {
	for i, r := range recs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func filter(snap *score.Snapshot, keep func(score.Recommendation) bool) []score.Recommendation {
	if snap == nil {
		return nil
	}
	var out []score.Recommendation
	for _, r := range snap.Recommendations {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
