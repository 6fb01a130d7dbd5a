package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExperiment_AssignsIDs(t *testing.T) {
	exp := NewExperiment("hero title", TypeTitle, []Variant{
		{Name: "control", Content: TitleContent{Text: "A"}, TrafficPercentage: 50},
		{Name: "treatment", Content: TitleContent{Text: "B"}, TrafficPercentage: 50},
	})

	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, StatusDraft, exp.Status)
	assert.False(t, exp.Provisioned())
	require.Len(t, exp.Variants, 2)
	assert.NotEmpty(t, exp.Variants[0].ID)
	assert.NotEqual(t, exp.Variants[0].ID, exp.Variants[1].ID)
	assert.InDelta(t, 100.0, exp.TrafficTotal(), 1e-9)
}

func TestExperiment_WinnerMustBelongToExperiment(t *testing.T) {
	exp := NewExperiment("x", TypeTitle, []Variant{
		NewVariant("a", TitleContent{Text: "A"}, 50),
		NewVariant("b", TitleContent{Text: "B"}, 50),
	})

	assert.Nil(t, exp.Winner())

	exp.WinnerVariantID = "someone-else"
	assert.Nil(t, exp.Winner())

	exp.WinnerVariantID = exp.Variants[1].ID
	require.NotNil(t, exp.Winner())
	assert.Equal(t, "b", exp.Winner().Name)
}

func TestExperiment_Expired(t *testing.T) {
	end := time.Now().Add(-time.Minute)
	exp := Experiment{Status: StatusRunning, EndDate: &end}
	assert.True(t, exp.Expired(time.Now()))

	exp.Status = StatusCancelled
	assert.False(t, exp.Expired(time.Now()))
}

func TestVariant_Rates(t *testing.T) {
	v := Variant{Impressions: 1000, Clicks: 200, Conversions: 20, Revenue: 500}
	assert.InDelta(t, 0.2, v.CTR(), 1e-9)
	assert.InDelta(t, 0.1, v.ConversionRate(), 1e-9)
	assert.InDelta(t, 2.5, v.RevenuePerClick(), 1e-9)

	assert.Equal(t, 0.0, Variant{}.ConversionRate())
}

func TestContent_RoundTripKeepsType(t *testing.T) {
	in := []Content{
		TitleContent{Text: "Stainless bottle 1L"},
		ImageContent{URL: "https://img.example.com/a.jpg"},
		BulletPointsContent{Bullets: []string{"BPA free", "Keeps cold 24h"}},
		APlusContent{ContentRef: "aplus-123"},
		MultivariateContent{Title: "T", ImageURL: "https://img.example.com/b.jpg"},
	}
	for _, c := range in {
		data, err := MarshalContent(c)
		require.NoError(t, err)

		out, err := UnmarshalContent(data)
		require.NoError(t, err)
		assert.Equal(t, c, out)
		assert.Equal(t, c.Kind(), out.Kind())
	}
}

func TestUnmarshalContent_UnknownType(t *testing.T) {
	_, err := UnmarshalContent([]byte(`{"type":"VIDEO","value":{}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedExperimentType))
}

func TestMetric_Supported(t *testing.T) {
	assert.True(t, MetricCTR.Supported())
	assert.False(t, Metric("bounce_rate").Supported())
}
