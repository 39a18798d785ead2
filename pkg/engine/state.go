package engine

import "github.com/breathescope/breathescope/pkg/score"

// Phase is the engine lifecycle phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseComputing
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComputing:
		return "computing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the discriminated engine state visible to consumers. Whatever
// the phase, Snapshot carries the last committed snapshot when one exists,
// so transient failures never blank the caller's view: a Failed state with
// a snapshot means "show stale data with an error indicator".
type State struct {
	Phase    Phase
	Snapshot *score.Snapshot // last committed; nil before first success
	Stale    bool            // set when Snapshot survived a failed refresh
	Err      error           // set when Phase == PhaseFailed
}
