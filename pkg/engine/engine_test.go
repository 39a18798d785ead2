package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/score"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     []*score.Snapshot
	replaced  []*score.Snapshot
	events    [][]notify.TriggerEvent
	saveErr   error
	saveCalls int
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap *score.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, snap.Clone())
	return nil
}

func (s *fakeStore) ReplaceLatest(_ context.Context, snap *score.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, snap.Clone())
	return nil
}

func (s *fakeStore) LoadHistory(context.Context, string, time.Time, time.Time) ([]score.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]score.Snapshot, 0, len(s.saved))
	for _, snap := range s.saved {
		out = append(out, *snap.Clone())
	}
	return out, nil
}

func (s *fakeStore) SaveTriggerEvents(_ context.Context, _ string, evts []notify.TriggerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts)
	return nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *fakeStore) eventBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeAir struct {
	mu    sync.Mutex
	aqi   float64
	err   error
	delay time.Duration
}

func (a *fakeAir) set(aqi float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aqi, a.err = aqi, err
}

func (a *fakeAir) Current(ctx context.Context, lat, lon float64) (*score.ExposureSample, error) {
	a.mu.Lock()
	aqi, err, delay := a.aqi, a.err, a.delay
	a.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &score.ExposureSample{
		Timestamp: time.Now().UTC(),
		AQI:       aqi,
		PM25:      aqi / 4,
		Latitude:  lat,
		Longitude: lon,
		Source:    "fake",
	}, nil
}

func (a *fakeAir) Historical(context.Context, float64, float64, int) ([]score.ExposureSample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return []score.ExposureSample{{Timestamp: time.Now().Add(-time.Hour).UTC(), AQI: a.aqi}}, nil
}

type fakeLocation struct{}

func (fakeLocation) CurrentLocation(context.Context) (float64, float64, error) {
	return 37.77, -122.42, nil
}

func testDeps(store *fakeStore, air *fakeAir) Deps {
	return Deps{
		Store:      store,
		AirQuality: air,
		Location:   fakeLocation{},
		Log:        zerolog.Nop(),
	}
}

func testUser() (*score.User, *score.HealthProfile) {
	return &score.User{ID: "u1", DisplayName: "Test"}, &score.HealthProfile{
		AgeBand:       score.AgeAdult,
		ActivityLevel: score.ActivityModerate,
	}
}

func TestRequestScoreHappyPath(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	snap, err := e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, "u1", snap.UserID)
	require.Greater(t, snap.Overall, 90.0)
	require.Equal(t, score.RiskLow, snap.RiskCategory)

	st := e.State()
	require.Equal(t, PhaseReady, st.Phase)
	require.False(t, st.Stale)
	require.Equal(t, 1, store.savedCount())
}

func TestRequestScoreMissingUser(t *testing.T) {
	store := &fakeStore{}
	e, err := New("u1", testDeps(store, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.RequestScore(context.Background(), nil, nil, false, nil)
	require.ErrorIs(t, err, score.ErrMissingInput)
	require.Equal(t, PhaseFailed, e.State().Phase)
}

func TestStaleFallbackOnTransientFailure(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 30}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	first, err := e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	air.set(0, errors.New("provider down"))
	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Overall, snap.Overall)

	st := e.State()
	require.Equal(t, PhaseReady, st.Phase)
	require.True(t, st.Stale)
}

func TestFailureWithoutPriorSnapshot(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{err: errors.New("provider down")}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.ErrorIs(t, err, score.ErrDataUnavailable)
	require.Equal(t, PhaseFailed, e.State().Phase)
	require.Nil(t, e.CurrentSnapshot())
}

func TestPersistenceFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{PersistRetries: 1})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, PhaseFailed, e.State().Phase)
	require.GreaterOrEqual(t, store.saveCalls, 2) // original attempt plus retry
}

func TestRefreshBeforeFirstScore(t *testing.T) {
	e, err := New("u1", testDeps(&fakeStore{}, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
}

func TestDismissUnknownIDIsNoOp(t *testing.T) {
	store := &fakeStore{}
	e, err := New("u1", testDeps(store, &fakeAir{aqi: 180}), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	snap, err := e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Recommendations)

	require.NoError(t, e.DismissRecommendation(context.Background(), "no-such-id"))
	require.Len(t, e.CurrentSnapshot().Recommendations, len(snap.Recommendations))
	require.Empty(t, store.replaced)
}

func TestDismissRemovesRecommendation(t *testing.T) {
	store := &fakeStore{}
	e, err := New("u1", testDeps(store, &fakeAir{aqi: 180}), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	snap, err := e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Recommendations)

	target := snap.Recommendations[0].ID
	require.NoError(t, e.DismissRecommendation(context.Background(), target))

	cur := e.CurrentSnapshot()
	require.Len(t, cur.Recommendations, len(snap.Recommendations)-1)
	for _, rec := range cur.Recommendations {
		require.NotEqual(t, target, rec.ID)
	}
	require.Len(t, store.replaced, 1)
}

func TestCompleteWithRecalculate(t *testing.T) {
	store := &fakeStore{}
	e, err := New("u1", testDeps(store, &fakeAir{aqi: 180}), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	snap, err := e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Recommendations)

	require.NoError(t, e.CompleteRecommendation(context.Background(), snap.Recommendations[0].ID, true))
	require.Equal(t, 2, store.savedCount())
	require.Equal(t, PhaseReady, e.State().Phase)
}

func TestMergeExternalData(t *testing.T) {
	store := &fakeStore{}
	e, err := New("u1", testDeps(store, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	before := e.CurrentSnapshot().Overall
	require.NoError(t, e.MergeExternalData(context.Background(), map[string]float64{"indoor_aqi": 12}))

	cur := e.CurrentSnapshot()
	require.Equal(t, before, cur.Overall) // annotation only, score untouched
	require.Equal(t, 12.0, cur.ContributingFactors["indoor_aqi"])
	require.Len(t, store.replaced, 1)
}

func TestTriggerEventsPersistedOnDrop(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.Equal(t, 0, store.eventBatches())

	air.set(320, nil)
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.eventBatches())
}

func TestNeedsImmediateAttention(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	require.False(t, e.NeedsImmediateAttention())

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.False(t, e.NeedsImmediateAttention())

	air.set(340, nil)
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)
	require.True(t, e.NeedsImmediateAttention())
}

func TestConcurrentRequestsAllServed(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 40, delay: 20 * time.Millisecond}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.RequestScore(context.Background(), user, profile, false, nil)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, PhaseReady, e.State().Phase)
}

func TestSubscribeMergesWithinInterval(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	samples := make(chan score.ExposureSample, 1)
	sub := e.Subscribe(samples)
	defer sub.Cancel()

	samples <- score.ExposureSample{Timestamp: time.Now().Add(time.Minute).UTC(), AQI: 95, PM25: 22}
	require.Eventually(t, func() bool {
		snap := e.CurrentSnapshot()
		return snap != nil && snap.ContributingFactors["live_aqi"] == 95
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, store.savedCount()) // merged, not recomputed
}

func TestSubscribeRecomputesAfterInterval(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{MinRecomputeInterval: time.Nanosecond})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	samples := make(chan score.ExposureSample, 1)
	sub := e.Subscribe(samples)
	defer sub.Cancel()

	samples <- score.ExposureSample{Timestamp: time.Now().Add(time.Minute).UTC(), AQI: 160, PM25: 70}
	require.Eventually(t, func() bool {
		return store.savedCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	snap := e.CurrentSnapshot()
	require.Less(t, snap.Overall, 90.0)
}

func TestSubscribeRejectsOutOfOrderSample(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	samples := make(chan score.ExposureSample, 1)
	sub := e.Subscribe(samples)
	defer sub.Cancel()

	samples <- score.ExposureSample{Timestamp: time.Now().Add(-time.Hour).UTC(), AQI: 400}
	time.Sleep(50 * time.Millisecond)

	snap := e.CurrentSnapshot()
	_, merged := snap.ContributingFactors["live_aqi"]
	require.False(t, merged)
	require.Equal(t, 1, store.savedCount())
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	store := &fakeStore{}
	air := &fakeAir{aqi: 20}
	e, err := New("u1", testDeps(store, air), Config{})
	require.NoError(t, err)
	defer e.Close()

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.NoError(t, err)

	samples := make(chan score.ExposureSample, 1)
	sub := e.Subscribe(samples)
	sub.Cancel()
	sub.Cancel() // idempotent

	samples <- score.ExposureSample{Timestamp: time.Now().Add(time.Minute).UTC(), AQI: 300}
	time.Sleep(50 * time.Millisecond)

	snap := e.CurrentSnapshot()
	_, merged := snap.ContributingFactors["live_aqi"]
	require.False(t, merged)
}

func TestCloseRejectsFurtherCalls(t *testing.T) {
	e, err := New("u1", testDeps(&fakeStore{}, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)
	e.Close()
	e.Close() // idempotent

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestManagerOneEnginePerUser(t *testing.T) {
	m, err := NewManager(testDeps(&fakeStore{}, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)
	defer m.Close()

	a, err := m.ForUser("alice")
	require.NoError(t, err)
	b, err := m.ForUser("bob")
	require.NoError(t, err)
	again, err := m.ForUser("alice")
	require.NoError(t, err)

	require.Same(t, a, again)
	require.NotSame(t, a, b)
}

func TestManagerClose(t *testing.T) {
	m, err := NewManager(testDeps(&fakeStore{}, &fakeAir{aqi: 20}), Config{})
	require.NoError(t, err)

	e, err := m.ForUser("alice")
	require.NoError(t, err)
	m.Close()
	m.Close()

	_, err = m.ForUser("carol")
	require.ErrorIs(t, err, ErrClosed)

	user, profile := testUser()
	_, err = e.RequestScore(context.Background(), user, profile, false, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestInvalidWeightsRejectedAtConstruction(t *testing.T) {
	_, err := New("u1", testDeps(&fakeStore{}, &fakeAir{}), Config{
		Weights: score.Weights{AirQuality: 0.9, UserVulnerability: 0.9},
	})
	require.ErrorIs(t, err, score.ErrInvalidWeights)
}

type resumingStore struct {
	fakeStore
	latest *score.Snapshot
}

func (s *resumingStore) LatestSnapshot(context.Context, string) (*score.Snapshot, error) {
	return s.latest, nil
}

func TestResumesLastSnapshotOnStart(t *testing.T) {
	prior := &score.Snapshot{
		UserID:       "u1",
		Overall:      72,
		RiskCategory: score.RiskLow,
		Timestamp:    time.Now().Add(-2 * time.Hour).UTC(),
	}
	store := &resumingStore{latest: prior}

	e, err := New("u1", Deps{
		Store:      store,
		AirQuality: &fakeAir{aqi: 30},
		Location:   fakeLocation{},
		Log:        zerolog.Nop(),
	}, Config{})
	require.NoError(t, err)
	defer e.Close()

	st := e.State()
	require.Equal(t, PhaseReady, st.Phase)
	require.True(t, st.Stale)
	require.NotNil(t, e.CurrentSnapshot())
	require.Equal(t, 72.0, e.CurrentSnapshot().Overall)

	// The prior request inputs are gone, so a refresh still needs a full
	// RequestScore first.
	_, err = e.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
}
