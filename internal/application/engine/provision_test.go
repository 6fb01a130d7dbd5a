package engine_test

import (
	"errors"
	"testing"

	"github.com/alejandrodnm/listinglab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision_Success(t *testing.T) {
	p := &fakeProvider{productRef: "B0TEST0001", createID: "remote-42"}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()

	require.NoError(t, e.Provision(t.Context(), exp))

	assert.Equal(t, "remote-42", exp.RemoteExperimentID)
	assert.Equal(t, "B0TEST0001", exp.ProductRef)
	assert.Equal(t, domain.StatusDraft, exp.Status)
	assert.Equal(t, fixedNow, exp.UpdatedAt)

	require.Len(t, p.created, 1)
	req := p.created[0]
	assert.Equal(t, exp.ID, req.ExperimentID)
	assert.Equal(t, "B0TEST0001", req.ProductRef)
	assert.Equal(t, domain.TypeTitle, req.Type)
	require.Len(t, req.Variants, 2)
	assert.Equal(t, exp.Variants[0].ID, req.Variants[0].ID)
	assert.Equal(t, domain.TitleContent{Text: "Steel Bottle 1L"}, req.Variants[0].Content)
}

func TestProvision_InvalidExperimentNeverReachesProvider(t *testing.T) {
	p := &fakeProvider{productRef: "B0TEST0001", createID: "remote-42"}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()
	exp.Variants[1].TrafficPercentage = 20

	err := e.Provision(t.Context(), exp)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Empty(t, p.created)
	assert.Empty(t, exp.RemoteExperimentID)
}

func TestProvision_RemoteFailureLeavesDraftWithoutID(t *testing.T) {
	p := &fakeProvider{productRef: "B0TEST0001", createErr: errors.New("503 service unavailable")}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()

	err := e.Provision(t.Context(), exp)

	var pe *domain.ProvisioningError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, exp.ID, pe.ExperimentID)
	assert.Contains(t, err.Error(), "503")
	assert.Empty(t, exp.RemoteExperimentID)
	assert.Equal(t, domain.StatusDraft, exp.Status)
}

func TestProvision_EmptyRemoteIDIsAFailure(t *testing.T) {
	p := &fakeProvider{productRef: "B0TEST0001"}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()

	err := e.Provision(t.Context(), exp)

	var pe *domain.ProvisioningError
	require.True(t, errors.As(err, &pe))
	assert.False(t, exp.Provisioned())
}

func TestProvision_UnresolvableSKU(t *testing.T) {
	p := &fakeProvider{resolveErr: domain.ErrNotFound, createID: "remote-42"}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()

	err := e.Provision(t.Context(), exp)

	var pe *domain.ProvisioningError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, p.created)
}

func TestProvision_RejectsAlreadyProvisioned(t *testing.T) {
	p := &fakeProvider{productRef: "B0TEST0001", createID: "remote-42"}
	e := newTestEngine(p, &fakePublisher{})
	exp := titleExperiment()
	exp.RemoteExperimentID = "remote-1"

	var se *domain.StateError
	require.True(t, errors.As(e.Provision(t.Context(), exp), &se))
	assert.Empty(t, p.created)
}

func TestProvision_RejectsRunning(t *testing.T) {
	e := newTestEngine(&fakeProvider{}, &fakePublisher{})

	var se *domain.StateError
	require.True(t, errors.As(e.Provision(t.Context(), runningExperiment()), &se))
	assert.Equal(t, domain.StatusRunning, se.Status)
}
