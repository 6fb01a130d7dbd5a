package engine

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Analyze ejecuta un z-test de dos proporciones y dos colas sobre las tasas
// de conversión (conversions / clicks) de variants[0] (control) y
// variants[1] (treatment).
//
// Es una función pura de los contadores. Con menos de minConversions
// conversiones en total devuelve insufficient_data sin z-score. Con error
// estándar cero o sin clicks da significancia 0, p-value 1 e intervalo nulo.
func Analyze(variants []domain.Variant, confidenceLevel float64, minConversions, minSampleSize int64) (domain.Analysis, error) {
	if len(variants) != 2 {
		return domain.Analysis{}, fmt.Errorf("%w: got %d", domain.ErrUnsupportedVariantCount, len(variants))
	}
	control, treatment := variants[0], variants[1]

	a := domain.Analysis{
		ControlID:          control.ID,
		TreatmentID:        treatment.ID,
		CurrentConversions: control.Conversions + treatment.Conversions,
		SampleSize:         control.Clicks + treatment.Clicks,
		ConfidenceLevel:    confidenceLevel,
	}
	a.SampleSizeReached = a.SampleSize >= minSampleSize

	if a.CurrentConversions < minConversions {
		a.Status = domain.AnalysisInsufficientData
		return a, nil
	}
	a.Status = domain.AnalysisComplete

	n1, n2 := float64(control.Clicks), float64(treatment.Clicks)
	c1, c2 := float64(control.Conversions), float64(treatment.Conversions)

	p1 := rate(c1, n1)
	p2 := rate(c2, n2)
	diff := p2 - p1

	a.ControlRate = p1
	a.TreatmentRate = p2
	if p1 > 0 {
		a.LiftPercent = diff / p1 * 100
	}

	// Valores sin señal.
	a.PValue = 1.0
	a.Significance = 0.0
	a.CILower, a.CIUpper = diff, diff

	if n1 <= 0 || n2 <= 0 || c1+c2 <= 0 {
		return a, nil
	}

	pooled := (c1 + c2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if !(se > 0) {
		return a, nil
	}

	a.ZScore = diff / se
	a.PValue = 2 * (1 - domain.NormalCDF(math.Abs(a.ZScore)))
	a.Significance = (1 - a.PValue) * 100

	seDiff := math.Sqrt(p1*(1-p1)/n1 + p2*(1-p2)/n2)
	if seDiff > 0 {
		margin := domain.CriticalValue(confidenceLevel) * seDiff
		a.CILower = diff - margin
		a.CIUpper = diff + margin
	}
	return a, nil
}

// Analyze ejecuta el z-test sobre exp y guarda en él la significancia.
func (e *Engine) Analyze(exp *domain.Experiment) (domain.Analysis, error) {
	a, err := Analyze(exp.Variants, exp.ConfidenceLevel, e.opts.MinimumConversionEvents, e.opts.MinimumSampleSize)
	if err != nil {
		analysesTotal.WithLabelValues("rejected").Inc()
		return domain.Analysis{}, fmt.Errorf("engine.Analyze %s: %w", exp.ID, err)
	}
	analysesTotal.WithLabelValues(string(a.Status)).Inc()

	if a.Sufficient() {
		exp.StatisticalSignificance = a.Significance
	}
	return a, nil
}

func rate(conversions, clicks float64) float64 {
	if clicks <= 0 {
		return 0
	}
	return conversions / clicks
}
