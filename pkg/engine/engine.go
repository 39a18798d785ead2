// Package engine orchestrates health score computation, history, and the
// recommendation/alert lifecycle for one user. One engine instance owns
// all state for its userID and processes events serially through an
// ordered command queue; cross-user engines run independently in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/recommend"
	"github.com/breathescope/breathescope/pkg/score"
)

// Config holds engine tunables. Zero values are replaced with defaults;
// weights are validated at construction, never at compute time.
type Config struct {
	Weights score.Weights

	// ComputeTimeout bounds exposure fetch plus computation for one
	// assessment. Exceeding it surfaces as a Failed transition with a
	// timeout error, never a silent stall.
	ComputeTimeout time.Duration

	// MinRecomputeInterval gates streaming recomputation: samples arriving
	// sooner are merged as annotations instead of triggering a full
	// recompute.
	MinRecomputeInterval time.Duration

	// HistoricalHours is the lookback window requested from the
	// air-quality provider when historical context is included.
	HistoricalHours int

	// PersistRetries bounds the store retry loop.
	PersistRetries uint64
}

func (c Config) withDefaults() Config {
	if c.Weights == (score.Weights{}) {
		c.Weights = score.DefaultWeights()
	}
	if c.ComputeTimeout <= 0 {
		c.ComputeTimeout = 15 * time.Second
	}
	if c.MinRecomputeInterval <= 0 {
		c.MinRecomputeInterval = 15 * time.Minute
	}
	if c.HistoricalHours <= 0 {
		c.HistoricalHours = 24
	}
	if c.PersistRetries == 0 {
		c.PersistRetries = 3
	}
	return c
}

// Deps are the external collaborators the engine drives.
type Deps struct {
	Store      Store
	AirQuality AirQualityProvider
	Location   LocationProvider
	Trigger    *notify.Trigger
	Sink       EventSink
	Log        zerolog.Logger
}

type cmdKind int

const (
	cmdCompute cmdKind = iota
	cmdDismiss
	cmdComplete
	cmdMerge
	cmdSample
)

type computeRequest struct {
	user              *score.User
	profile           *score.HealthProfile
	includeHistorical bool
	current           *score.ExposureSample // pre-supplied exposure, skips provider fetch
	patterns          map[string]float64
	useLast           bool // refresh: reuse the previous request's inputs
}

type result struct {
	snap *score.Snapshot
	err  error
}

type command struct {
	kind    cmdKind
	req     computeRequest
	recID   string
	recalc  bool
	factors map[string]float64
	sample  score.ExposureSample
	reply   chan result
}

// Engine is the per-user health score state machine.
type Engine struct {
	userID string
	cfg    Config
	deps   Deps

	cmds      chan *command
	done      chan struct{}
	closeOnce sync.Once

	// published mirrors loop state for lock-cheap reads.
	mu        sync.RWMutex
	published State

	// Owned exclusively by the run loop.
	state        State
	lastReq      computeRequest
	hasLastReq   bool
	lastComputed time.Time
}

// New creates and starts an engine for the given user. The configured
// weights are validated here; an invalid weight map is a configuration
// error and is rejected before any computation can run.
func New(userID string, deps Deps, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if deps.Trigger == nil {
		deps.Trigger = notify.New(deps.Log)
	}
	if deps.Sink == nil {
		deps.Sink = discardSink{}
	}

	e := &Engine{
		userID: userID,
		cfg:    cfg,
		deps:   deps,
		cmds:   make(chan *command, 32),
		done:   make(chan struct{}),
		state:  State{Phase: PhaseIdle},
	}
	e.seedFromStore()
	go e.run()
	return e, nil
}

// seedFromStore resumes the last committed snapshot when the store keeps
// one. It is served as stale until the first fresh compute; Refresh still
// requires a new RequestScore since the prior inputs are gone.
func (e *Engine) seedFromStore() {
	loader, ok := e.deps.Store.(LatestLoader)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := loader.LatestSnapshot(ctx, e.userID)
	if err != nil {
		e.deps.Log.Warn().Err(err).Str("user", e.userID).Msg("could not resume last snapshot")
		return
	}
	if snap == nil {
		return
	}
	e.setState(State{Phase: PhaseReady, Snapshot: snap, Stale: true})
}

// Close shuts the engine down. Queued and future calls fail with ErrClosed;
// no stream update is delivered after teardown.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// UserID returns the user this engine instance owns.
func (e *Engine) UserID() string { return e.userID }

// RequestScore runs a full assessment: resolve exposure, compute, persist,
// and evaluate alerts. Concurrent requests are serialized; if several
// arrive together the newest supersedes the rest and all callers receive
// its result.
func (e *Engine) RequestScore(ctx context.Context, user *score.User, profile *score.HealthProfile, includeHistorical bool, patterns map[string]float64) (*score.Snapshot, error) {
	return e.do(ctx, &command{kind: cmdCompute, req: computeRequest{
		user:              user,
		profile:           profile,
		includeHistorical: includeHistorical,
		patterns:          patterns,
	}})
}

// Refresh recomputes using the previous request's inputs. Requires a
// prior successful RequestScore.
func (e *Engine) Refresh(ctx context.Context) (*score.Snapshot, error) {
	return e.do(ctx, &command{kind: cmdCompute, req: computeRequest{useLast: true}})
}

// DismissRecommendation removes a recommendation from the current
// snapshot. Unknown IDs are a silent no-op.
func (e *Engine) DismissRecommendation(ctx context.Context, recommendationID string) error {
	_, err := e.do(ctx, &command{kind: cmdDismiss, recID: recommendationID})
	return err
}

// CompleteRecommendation marks a recommendation completed, optionally
// recomputing the score afterwards.
func (e *Engine) CompleteRecommendation(ctx context.Context, recommendationID string, recalculate bool) error {
	_, err := e.do(ctx, &command{kind: cmdComplete, recID: recommendationID, recalc: recalculate})
	return err
}

// MergeExternalData merges additional contributing factors (e.g. live
// sensor readings) into the current snapshot without recomputing the
// score. Annotation only.
func (e *Engine) MergeExternalData(ctx context.Context, factors map[string]float64) error {
	_, err := e.do(ctx, &command{kind: cmdMerge, factors: factors})
	return err
}

// LoadHistory returns the persisted snapshot history for this user,
// ascending by timestamp.
func (e *Engine) LoadHistory(ctx context.Context, start, end time.Time) ([]score.Snapshot, error) {
	return e.deps.Store.LoadHistory(ctx, e.userID, start, end)
}

// State returns the current engine state with a cloned snapshot. The
// snapshot is always the most recently committed one; in-progress
// computations are never exposed.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.published
	s.Snapshot = s.Snapshot.Clone()
	return s
}

// CurrentSnapshot returns a copy of the last committed snapshot, or nil.
func (e *Engine) CurrentSnapshot() *score.Snapshot {
	return e.State().Snapshot
}

// NeedsImmediateAttention reports whether the current state warrants
// urgent surfacing: critical risk, a very low score, or any open urgent
// recommendation.
func (e *Engine) NeedsImmediateAttention() bool {
	snap := e.CurrentSnapshot()
	if snap == nil {
		return false
	}
	return snap.RiskCategory == score.RiskCritical ||
		snap.Overall < 30 ||
		len(recommend.Urgent(snap)) > 0
}

func (e *Engine) do(ctx context.Context, cmd *command) (*score.Snapshot, error) {
	cmd.reply = make(chan result, 1)
	select {
	case <-e.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case e.cmds <- cmd:
	}
	select {
	case <-e.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-cmd.reply:
		return r.snap, r.err
	}
}

func (e *Engine) run() {
	for {
		select {
		case <-e.done:
			return
		case cmd := <-e.cmds:
			e.handle(cmd)
		}
	}
}

func (e *Engine) handle(cmd *command) {
	switch cmd.kind {
	case cmdCompute:
		e.handleCompute(cmd)
	case cmdDismiss:
		cmd.reply <- e.handleDismiss(cmd.recID)
	case cmdComplete:
		cmd.reply <- e.handleComplete(cmd.recID, cmd.recalc)
	case cmdMerge:
		cmd.reply <- e.handleMerge(cmd.factors)
	case cmdSample:
		e.handleSample(cmd.sample)
	}
}

// handleCompute serves a compute request. Compute commands already queued
// behind this one supersede it: only the newest request runs, and every
// superseded waiter receives the newest result. Partial results are never
// interleaved into visible state.
func (e *Engine) handleCompute(cmd *command) {
	waiters := []*command{cmd}
	var deferred []*command
drain:
	for {
		select {
		case next := <-e.cmds:
			if next.kind == cmdCompute {
				waiters = append(waiters, next)
			} else {
				deferred = append(deferred, next)
			}
		default:
			break drain
		}
	}

	newest := waiters[len(waiters)-1]
	res := e.compute(newest.req)
	for _, w := range waiters {
		w.reply <- res
	}

	for _, d := range deferred {
		e.handle(d)
	}
}

func (e *Engine) compute(req computeRequest) result {
	if req.useLast {
		if !e.hasLastReq {
			return result{nil, ErrNotReady}
		}
		current := req.current
		req = e.lastReq
		req.current = current
	}

	prev := e.state.Snapshot
	e.setState(State{Phase: PhaseComputing, Snapshot: prev, Stale: e.state.Stale})

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ComputeTimeout)
	defer cancel()

	snap, err := e.assess(ctx, req)
	if err != nil {
		return e.failCompute(prev, err)
	}

	// Reject snapshots that would break history ordering.
	if prev != nil && snap.Timestamp.Before(prev.Timestamp) {
		return e.failCompute(prev, ErrOutOfOrder)
	}

	snap = recommend.CarryForward(prev, snap)

	if err := e.persist(ctx, func(c context.Context) error {
		return e.deps.Store.SaveSnapshot(c, snap)
	}); err != nil {
		return e.failCompute(prev, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if events := e.deps.Trigger.Evaluate(prev, snap); len(events) > 0 {
		if err := e.deps.Store.SaveTriggerEvents(ctx, e.userID, events); err != nil {
			// Alert decisions are best effort; the committed score wins.
			e.deps.Log.Error().Err(err).Str("user", e.userID).Msg("failed to store trigger events")
		}
	}

	persistedReq := req
	persistedReq.current = nil // never replay a one-shot sample on refresh
	e.lastReq = persistedReq
	e.hasLastReq = true
	e.lastComputed = time.Now()
	e.setState(State{Phase: PhaseReady, Snapshot: snap})
	e.deps.Sink.Emit(Event{Kind: EventScoreComputed, UserID: e.userID, At: snap.Timestamp})

	return result{snap.Clone(), nil}
}

// assess resolves exposure inputs and runs the pure scoring model.
func (e *Engine) assess(ctx context.Context, req computeRequest) (*score.Snapshot, error) {
	current := req.current
	var historical []score.ExposureSample

	if e.deps.AirQuality != nil {
		lat, lon, locErr := e.resolveLocation(ctx, current, req.user)
		if locErr != nil {
			e.deps.Log.Debug().Err(locErr).Str("user", e.userID).Msg("location unavailable")
		} else {
			if current == nil {
				c, err := e.deps.AirQuality.Current(ctx, lat, lon)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					e.deps.Log.Warn().Err(err).Str("user", e.userID).Msg("current exposure fetch failed")
				} else {
					current = c
				}
			}
			if req.includeHistorical {
				h, err := e.deps.AirQuality.Historical(ctx, lat, lon, e.cfg.HistoricalHours)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					e.deps.Log.Warn().Err(err).Str("user", e.userID).Msg("historical exposure fetch failed")
				} else {
					historical = h
				}
			}
		}
	}

	return score.Compute(score.ComputeInput{
		User:             req.user,
		Profile:          req.profile,
		Current:          current,
		Historical:       historical,
		LocationPatterns: req.patterns,
		Weights:          e.cfg.Weights,
	})
}

// resolveLocation picks the assessment position: the sample's own
// coordinates, then the user's home, then the shared location provider.
func (e *Engine) resolveLocation(ctx context.Context, current *score.ExposureSample, user *score.User) (float64, float64, error) {
	if current != nil {
		return current.Latitude, current.Longitude, nil
	}
	if user != nil && (user.HomeLatitude != 0 || user.HomeLongitude != 0) {
		return user.HomeLatitude, user.HomeLongitude, nil
	}
	if e.deps.Location != nil {
		if lat, lon, err := e.deps.Location.CurrentLocation(ctx); err == nil {
			return lat, lon, nil
		}
	}
	return 0, 0, fmt.Errorf("no location available")
}

// failCompute classifies the error and transitions state. Transient
// unavailability with a known-good snapshot degrades to stale Ready
// instead of failing, so consumers never blank their display.
func (e *Engine) failCompute(prev *score.Snapshot, err error) result {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	transient := errors.Is(err, score.ErrDataUnavailable) || errors.Is(err, ErrTimeout)
	if transient && prev != nil {
		e.deps.Log.Warn().Err(err).Str("user", e.userID).
			Msg("transient failure, serving last known snapshot as stale")
		e.setState(State{Phase: PhaseReady, Snapshot: prev, Stale: true})
		return result{prev.Clone(), nil}
	}

	e.setState(State{Phase: PhaseFailed, Snapshot: prev, Stale: prev != nil, Err: err})
	return result{nil, err}
}

func (e *Engine) handleDismiss(recID string) result {
	cur := e.state.Snapshot
	if cur == nil {
		return result{nil, ErrNotReady}
	}
	next := recommend.Dismiss(cur, recID)
	if next == cur {
		return result{cur.Clone(), nil} // unknown id: visible no-op
	}
	if err := e.replaceLatest(next); err != nil {
		return result{nil, err}
	}
	e.deps.Sink.Emit(Event{Kind: EventRecommendationDismissed, UserID: e.userID, RecommendationID: recID, At: time.Now().UTC()})
	return result{next.Clone(), nil}
}

func (e *Engine) handleComplete(recID string, recalculate bool) result {
	cur := e.state.Snapshot
	if cur == nil {
		return result{nil, ErrNotReady}
	}
	next := recommend.Complete(cur, recID, time.Now().UTC())
	if next != cur {
		if err := e.replaceLatest(next); err != nil {
			return result{nil, err}
		}
		e.deps.Sink.Emit(Event{Kind: EventRecommendationCompleted, UserID: e.userID, RecommendationID: recID, At: time.Now().UTC()})
	}

	if recalculate && e.hasLastReq {
		return e.compute(computeRequest{useLast: true})
	}
	return result{e.state.Snapshot.Clone(), nil}
}

func (e *Engine) handleMerge(factors map[string]float64) result {
	cur := e.state.Snapshot
	if cur == nil {
		return result{nil, ErrNotReady}
	}
	if len(factors) == 0 {
		return result{cur.Clone(), nil}
	}

	next := cur.Clone()
	if next.ContributingFactors == nil {
		next.ContributingFactors = make(map[string]float64, len(factors))
	}
	for k, v := range factors {
		next.ContributingFactors[k] = v
	}
	if err := e.replaceLatest(next); err != nil {
		return result{nil, err}
	}
	e.deps.Sink.Emit(Event{Kind: EventDataMerged, UserID: e.userID, At: time.Now().UTC()})
	return result{next.Clone(), nil}
}

// handleSample reacts to one monitoring-stream reading. Samples older than
// the committed history are rejected so trend analysis never sees
// out-of-order data; fresh samples either annotate the current snapshot or
// trigger a recompute, depending on the minimum recompute interval.
func (e *Engine) handleSample(sample score.ExposureSample) {
	if cur := e.state.Snapshot; cur != nil && sample.Timestamp.Before(cur.Timestamp) {
		e.deps.Log.Warn().Str("user", e.userID).
			Time("sample", sample.Timestamp).Time("committed", cur.Timestamp).
			Msg("rejecting out-of-order exposure sample")
		return
	}

	if time.Since(e.lastComputed) < e.cfg.MinRecomputeInterval {
		res := e.handleMerge(map[string]float64{
			"live_aqi":  sample.AQI,
			"live_pm25": sample.PM25,
		})
		if res.err != nil && !errors.Is(res.err, ErrNotReady) {
			e.deps.Log.Error().Err(res.err).Str("user", e.userID).Msg("failed to merge stream sample")
		}
		return
	}

	if !e.hasLastReq {
		e.deps.Log.Debug().Str("user", e.userID).Msg("dropping stream sample: no prior assessment inputs")
		return
	}
	if res := e.compute(computeRequest{useLast: true, current: &sample}); res.err != nil {
		e.deps.Log.Error().Err(res.err).Str("user", e.userID).Msg("stream-triggered recompute failed")
	}
}

func (e *Engine) replaceLatest(snap *score.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ComputeTimeout)
	defer cancel()
	if err := e.persist(ctx, func(c context.Context) error {
		return e.deps.Store.ReplaceLatest(c, snap)
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	e.setState(State{Phase: PhaseReady, Snapshot: snap, Stale: e.state.Stale})
	return nil
}

// persist runs a store operation with bounded exponential backoff.
func (e *Engine) persist(ctx context.Context, op func(context.Context) error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.cfg.PersistRetries),
		ctx,
	)
	return backoff.Retry(func() error { return op(ctx) }, bo)
}

func (e *Engine) setState(s State) {
	e.state = s
	e.mu.Lock()
	e.published = s
	e.mu.Unlock()
}
