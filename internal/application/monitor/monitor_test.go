package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/listinglab/internal/application/engine"
	"github.com/alejandrodnm/listinglab/internal/application/monitor"
	"github.com/alejandrodnm/listinglab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeProvider struct {
	mu       sync.Mutex
	metrics  map[string][]domain.VariantMetrics // by remote id
	fetchErr error
	stopped  map[string]string // remote id → reason
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		metrics: make(map[string][]domain.VariantMetrics),
		stopped: make(map[string]string),
	}
}

func (f *fakeProvider) Create(context.Context, domain.ProvisionRequest) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProvider) Start(context.Context, string) error { return nil }

func (f *fakeProvider) Stop(_ context.Context, remoteID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped[remoteID] = reason
	return nil
}

func (f *fakeProvider) FetchMetrics(_ context.Context, remoteID string, _, _ time.Time) ([]domain.VariantMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.metrics[remoteID], nil
}

func (f *fakeProvider) ResolveProductReference(context.Context, string, string) (string, error) {
	return "B0TEST0001", nil
}

type fakePublisher struct {
	mu      sync.Mutex
	updates []domain.ContentUpdate
}

func (f *fakePublisher) ApplyContentUpdate(_ context.Context, u domain.ContentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

type fakeStorage struct {
	mu          sync.Mutex
	exps        map[string]*domain.Experiment
	evaluations []domain.Evaluation
	updateErr   error
	conflicts   int // updates that race with another writer bumping the version
}

func newFakeStorage(exps ...*domain.Experiment) *fakeStorage {
	s := &fakeStorage{exps: make(map[string]*domain.Experiment)}
	for _, e := range exps {
		s.exps[e.ID] = clone(e)
	}
	return s
}

func clone(e *domain.Experiment) *domain.Experiment {
	c := *e
	c.Variants = append([]domain.Variant(nil), e.Variants...)
	return &c
}

func (s *fakeStorage) CreateExperiment(_ context.Context, e *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exps[e.ID] = clone(e)
	return nil
}

func (s *fakeStorage) GetExperiment(_ context.Context, id string) (*domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(e), nil
}

func (s *fakeStorage) ListExperiments(_ context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Experiment
	for _, e := range s.exps {
		if status == "" || e.Status == status {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

func (s *fakeStorage) UpdateExperiment(_ context.Context, e *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	cur, ok := s.exps[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if s.conflicts > 0 {
		s.conflicts--
		cur.Version++
	}
	if cur.Version != e.Version {
		return domain.ErrConcurrentModification
	}
	e.Version++
	s.exps[e.ID] = clone(e)
	return nil
}

func (s *fakeStorage) SaveEvaluation(_ context.Context, ev domain.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, ev)
	return nil
}

func (s *fakeStorage) GetEvaluations(context.Context, string, time.Time) ([]domain.Evaluation, error) {
	return nil, nil
}

func (s *fakeStorage) Close() error { return nil }

func (s *fakeStorage) get(id string) *domain.Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.exps[id])
}

type fakeNotifier struct {
	calls [][]domain.Evaluation
}

func (f *fakeNotifier) Notify(_ context.Context, evs []domain.Evaluation) error {
	f.calls = append(f.calls, evs)
	return nil
}

// --- helpers ---

func runningExperiment(remoteID string, autoApply bool) *domain.Experiment {
	exp := domain.NewExperiment("title "+remoteID, domain.TypeTitle, []domain.Variant{
		domain.NewVariant("control", domain.TitleContent{Text: "Steel Bottle"}, 50),
		domain.NewVariant("treatment", domain.TitleContent{Text: "Insulated Steel Bottle"}, 50),
	})
	start := fixedNow.AddDate(0, 0, -7)
	end := start.AddDate(0, 0, exp.DurationDays)
	exp.SKU = "BOTTLE-1L"
	exp.Marketplace = "ATVPDKIKX0DER"
	exp.ProductRef = "B0TEST0001"
	exp.RemoteExperimentID = remoteID
	exp.Status = domain.StatusRunning
	exp.StartDate = &start
	exp.EndDate = &end
	exp.AutoApplyWinner = autoApply
	exp.Version = 1
	return &exp
}

func expire(exp *domain.Experiment) *domain.Experiment {
	end := fixedNow.Add(-time.Hour)
	exp.EndDate = &end
	return exp
}

func report(exp *domain.Experiment, clicks1, conv1, clicks2, conv2 int64) []domain.VariantMetrics {
	return []domain.VariantMetrics{
		{VariantID: exp.Variants[0].ID, Impressions: clicks1 * 10, Clicks: clicks1, Conversions: conv1},
		{VariantID: exp.Variants[1].ID, Impressions: clicks2 * 10, Clicks: clicks2, Conversions: conv2},
	}
}

type fixture struct {
	provider  *fakeProvider
	publisher *fakePublisher
	storage   *fakeStorage
	notifier  *fakeNotifier
	monitor   *monitor.Monitor
}

func newFixture(opts engine.Options, exps ...*domain.Experiment) *fixture {
	f := &fixture{
		provider:  newFakeProvider(),
		publisher: &fakePublisher{},
		storage:   newFakeStorage(exps...),
		notifier:  &fakeNotifier{},
	}
	eng := engine.New(f.provider, f.publisher, opts)
	eng.SetClock(func() time.Time { return fixedNow })
	f.monitor = monitor.New(monitor.Config{Workers: 2, Once: true}, eng, f.storage, f.notifier)
	return f
}

// --- tests ---

func TestRunOnce_EarlyStopAppliesWinner(t *testing.T) {
	exp := runningExperiment("remote-1", true)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)

	ev := evs[0]
	assert.True(t, ev.Decision.HasWinner)
	assert.Equal(t, monitor.ActionEarlyStop, ev.Action)
	assert.Equal(t, domain.StatusCompleted, ev.Status)
	require.NotNil(t, ev.Collection)
	assert.Equal(t, int64(2000), ev.Collection.Clicks)

	stored := f.storage.get(exp.ID)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, exp.Variants[1].ID, stored.WinnerVariantID)
	assert.Equal(t, int64(2), stored.Version)

	require.Len(t, f.publisher.updates, 1)
	assert.Equal(t, domain.TitleContent{Text: "Insulated Steel Bottle"}, f.publisher.updates[0].Content)
	assert.Equal(t, "winner applied", f.provider.stopped["remote-1"])
	assert.Len(t, f.storage.evaluations, 1)
}

func TestRunOnce_WinnerWithoutAutoApplyKeepsRunning(t *testing.T) {
	exp := runningExperiment("remote-1", false)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].Action)

	stored := f.storage.get(exp.ID)
	assert.Equal(t, domain.StatusRunning, stored.Status)
	assert.Equal(t, exp.Variants[1].ID, stored.WinnerVariantID)
	assert.Equal(t, int64(130), stored.Variants[1].Conversions)
	assert.Empty(t, f.publisher.updates)
}

func TestRunOnce_EarlyStopNeedsSampleSize(t *testing.T) {
	exp := runningExperiment("remote-1", true)
	opts := engine.DefaultOptions()
	opts.MinimumSampleSize = 5000
	f := newFixture(opts, exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Decision.HasWinner)
	assert.Empty(t, evs[0].Action)
	assert.Equal(t, domain.StatusRunning, f.storage.get(exp.ID).Status)
}

func TestRunOnce_ExpiredWithoutWinnerIsStopped(t *testing.T) {
	exp := expire(runningExperiment("remote-1", true))
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 500, 50, 500, 60)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, monitor.ActionExpiredStop, evs[0].Action)
	assert.Equal(t, domain.StatusCancelled, f.storage.get(exp.ID).Status)
	assert.Equal(t, monitor.ExpiryReason, f.provider.stopped["remote-1"])
	assert.Empty(t, f.publisher.updates)
}

func TestRunOnce_ExpiredWithWinnerApplies(t *testing.T) {
	exp := expire(runningExperiment("remote-1", true))
	opts := engine.DefaultOptions()
	opts.MinimumSampleSize = 5000
	f := newFixture(opts, exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, monitor.ActionExpiredApply, evs[0].Action)
	assert.Equal(t, domain.StatusCompleted, f.storage.get(exp.ID).Status)
	assert.Len(t, f.publisher.updates, 1)
}

func TestRunOnce_ExpiredWinnerWithoutAutoApplyIsStopped(t *testing.T) {
	exp := expire(runningExperiment("remote-1", false))
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, monitor.ActionExpiredStop, evs[0].Action)
	assert.Empty(t, f.publisher.updates)
}

func TestRunOnce_FetchFailureEvaluatesLastCounters(t *testing.T) {
	exp := runningExperiment("remote-1", true)
	exp.Variants[0].Clicks, exp.Variants[0].Conversions = 500, 50
	exp.Variants[1].Clicks, exp.Variants[1].Conversions = 500, 60
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.fetchErr = errors.New("connection reset")

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Nil(t, evs[0].Collection)
	assert.Equal(t, domain.ReasonInsufficientSignificance, evs[0].Decision.Reason)
	assert.Equal(t, domain.StatusRunning, evs[0].Status)
}

func TestRunOnce_ConcurrentModificationDiscardsResult(t *testing.T) {
	exp := runningExperiment("remote-1", false)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)
	f.storage.updateErr = domain.ErrConcurrentModification

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Empty(t, f.storage.evaluations)
}

func TestRunOnce_PublishedWinnerReplayedAfterConcurrentModification(t *testing.T) {
	exp := runningExperiment("remote-1", true)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)
	f.storage.conflicts = 1

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, monitor.ActionEarlyStop, evs[0].Action)

	stored := f.storage.get(exp.ID)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, exp.Variants[1].ID, stored.WinnerVariantID)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, int64(3), stored.Version)
	assert.Len(t, f.publisher.updates, 1)
	assert.Len(t, f.storage.evaluations, 1)

	// Completed experiments are not picked up again, so nothing is republished.
	evs, err = f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Len(t, f.publisher.updates, 1)
}

func TestRunOnce_PublishedWinnerRecordedWhenSaveFails(t *testing.T) {
	exp := runningExperiment("remote-1", true)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)
	f.storage.updateErr = errors.New("disk full")

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, monitor.ActionEarlyStop, evs[0].Action)
	assert.Len(t, f.storage.evaluations, 1)
	assert.Len(t, f.publisher.updates, 1)
}

func TestRunOnce_OnlyRunningExperiments(t *testing.T) {
	running := runningExperiment("remote-1", false)
	draft := runningExperiment("remote-2", false)
	draft.Status = domain.StatusDraft
	f := newFixture(engine.DefaultOptions(), running, draft)
	f.provider.metrics["remote-1"] = report(running, 100, 10, 100, 12)

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, running.ID, evs[0].ExperimentID)
	assert.Equal(t, domain.ReasonInsufficientData, evs[0].Decision.Reason)
}

func TestRunOnce_ManyExperimentsInParallel(t *testing.T) {
	var exps []*domain.Experiment
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		exps = append(exps, runningExperiment(id, false))
	}
	f := newFixture(engine.DefaultOptions(), exps...)
	for _, e := range exps {
		f.provider.metrics[e.RemoteExperimentID] = report(e, 1000, 100, 1000, 130)
	}

	evs, err := f.monitor.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Len(t, evs, 5)
	for _, e := range exps {
		assert.Equal(t, int64(2), f.storage.get(e.ID).Version)
	}
}

func TestRun_OnceNotifies(t *testing.T) {
	exp := runningExperiment("remote-1", false)
	f := newFixture(engine.DefaultOptions(), exp)
	f.provider.metrics["remote-1"] = report(exp, 1000, 100, 1000, 130)

	require.NoError(t, f.monitor.Run(t.Context()))
	require.Len(t, f.notifier.calls, 1)
	assert.Len(t, f.notifier.calls[0], 1)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	f := newFixture(engine.DefaultOptions(), runningExperiment("remote-1", false))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := f.monitor.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
