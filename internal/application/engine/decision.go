package engine

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Umbrales de ganador. Son un listón global y no dependen del nivel de
// confianza configurado en el experimento.
const (
	WinnerSignificance = 95.0
	MinimumLiftPercent = 5.0
)

// Decide aplica los umbrales de ganador a un análisis de exp.
// El lift mínimo se comprueba primero: un lift pequeño da insufficient_lift
// sea cual sea la significancia.
func Decide(exp *domain.Experiment, a domain.Analysis) domain.Decision {
	d := domain.Decision{
		LiftPercent:  a.LiftPercent,
		Significance: a.Significance,
	}

	switch {
	case !a.Sufficient():
		d.Reason = domain.ReasonInsufficientData
	case math.Abs(a.LiftPercent) < MinimumLiftPercent:
		d.Reason = domain.ReasonInsufficientLift
	case a.Significance < WinnerSignificance:
		d.Reason = domain.ReasonInsufficientSignificance
	default:
		winnerID := a.ControlID
		if a.LiftPercent > 0 {
			winnerID = a.TreatmentID
		}
		d.HasWinner = true
		d.Reason = domain.ReasonWinner
		d.WinnerID = winnerID
		d.LiftPercent = math.Abs(a.LiftPercent)
		if v := exp.Variant(winnerID); v != nil {
			d.WinnerName = v.Name
		}
	}
	return d
}

// Recommend convierte una decisión en una instrucción de una línea para el seller.
func Recommend(d domain.Decision) string {
	switch d.Reason {
	case domain.ReasonWinner:
		return fmt.Sprintf("Apply variant %s (+%.1f%% improvement, %.1f%% confidence)",
			d.WinnerName, d.LiftPercent, d.Significance)
	case domain.ReasonInsufficientSignificance:
		return fmt.Sprintf("Continue the test (current confidence %.1f%% vs %.0f%% required)",
			d.Significance, WinnerSignificance)
	case domain.ReasonInsufficientLift:
		return fmt.Sprintf("Difference not significant (%.1f%% lift)", d.LiftPercent)
	default:
		return "Gather more data before deciding"
	}
}

// Evaluate analiza exp, decide si alguna variante ganó y, si es así, guarda
// el ganador en el experimento. Un ganador ya fijado nunca se borra aquí.
func (e *Engine) Evaluate(exp *domain.Experiment) (domain.Evaluation, error) {
	a, err := e.Analyze(exp)
	if err != nil {
		return domain.Evaluation{}, err
	}

	d := Decide(exp, a)
	decisionsTotal.WithLabelValues(string(d.Reason)).Inc()
	if d.HasWinner {
		exp.WinnerVariantID = d.WinnerID
		exp.UpdatedAt = e.now()
	}

	return domain.Evaluation{
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		Status:         exp.Status,
		Analysis:       a,
		Decision:       d,
		Recommendation: Recommend(d),
		EvaluatedAt:    e.now(),
	}, nil
}
