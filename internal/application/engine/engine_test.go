package engine_test

import (
	"context"
	"time"

	"github.com/alejandrodnm/listinglab/internal/application/engine"
	"github.com/alejandrodnm/listinglab/internal/domain"
)

type fakeProvider struct {
	productRef string
	createID   string
	createErr  error
	resolveErr error
	startErr   error
	stopErr    error
	fetchErr   error
	metrics    []domain.VariantMetrics

	created   []domain.ProvisionRequest
	started   []string
	stopped   []string
	fetchFrom time.Time
	fetchTo   time.Time
}

func (f *fakeProvider) Create(_ context.Context, req domain.ProvisionRequest) (string, error) {
	f.created = append(f.created, req)
	return f.createID, f.createErr
}

func (f *fakeProvider) Start(_ context.Context, remoteID string) error {
	f.started = append(f.started, remoteID)
	return f.startErr
}

func (f *fakeProvider) Stop(_ context.Context, remoteID, _ string) error {
	f.stopped = append(f.stopped, remoteID)
	return f.stopErr
}

func (f *fakeProvider) FetchMetrics(_ context.Context, _ string, from, to time.Time) ([]domain.VariantMetrics, error) {
	f.fetchFrom, f.fetchTo = from, to
	return f.metrics, f.fetchErr
}

func (f *fakeProvider) ResolveProductReference(_ context.Context, _, _ string) (string, error) {
	return f.productRef, f.resolveErr
}

type fakePublisher struct {
	err     error
	updates []domain.ContentUpdate
}

func (f *fakePublisher) ApplyContentUpdate(_ context.Context, u domain.ContentUpdate) error {
	f.updates = append(f.updates, u)
	return f.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(p *fakeProvider, pub *fakePublisher) *engine.Engine {
	e := engine.New(p, pub, engine.DefaultOptions())
	e.SetClock(func() time.Time { return fixedNow })
	return e
}

// titleExperiment returns a valid two-arm DRAFT title experiment.
func titleExperiment() *domain.Experiment {
	exp := domain.NewExperiment("Bottle title test", domain.TypeTitle, []domain.Variant{
		domain.NewVariant("control", domain.TitleContent{Text: "Steel Bottle 1L"}, 50),
		domain.NewVariant("treatment", domain.TitleContent{Text: "Insulated Steel Bottle 1L, Keeps Cold 24h"}, 50),
	})
	exp.UserID = "user-1"
	exp.SKU = "BOTTLE-1L"
	exp.Marketplace = "ATVPDKIKX0DER"
	return &exp
}

// runningExperiment returns a provisioned RUNNING experiment started a week before fixedNow.
func runningExperiment() *domain.Experiment {
	exp := titleExperiment()
	start := fixedNow.AddDate(0, 0, -7)
	end := start.AddDate(0, 0, exp.DurationDays)
	exp.RemoteExperimentID = "remote-1"
	exp.ProductRef = "B0TEST0001"
	exp.Status = domain.StatusRunning
	exp.StartDate = &start
	exp.EndDate = &end
	return exp
}

func withCounters(exp *domain.Experiment, clicks1, conv1, clicks2, conv2 int64) *domain.Experiment {
	exp.Variants[0].Clicks, exp.Variants[0].Conversions = clicks1, conv1
	exp.Variants[1].Clicks, exp.Variants[1].Conversions = clicks2, conv2
	exp.Variants[0].Impressions = clicks1 * 10
	exp.Variants[1].Impressions = clicks2 * 10
	return exp
}
