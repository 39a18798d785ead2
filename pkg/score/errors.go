package score

import "errors"

// Typed errors raised by the scoring model. The model never recovers from
// these itself; the engine classifies them.
var (
	// ErrMissingInput means caller-supplied required data (user or health
	// profile) was absent. Not retryable.
	ErrMissingInput = errors.New("missing required input")

	// ErrDataUnavailable means neither a current exposure sample nor any
	// usable historical exposure was supplied. Retryable by caller policy.
	ErrDataUnavailable = errors.New("exposure data unavailable")

	// ErrInvalidWeights means the configured weight map does not sum to 1.
	// Rejected at configuration-validation time, never clamped at compute
	// time.
	ErrInvalidWeights = errors.New("invalid score weights")
)
