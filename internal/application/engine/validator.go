package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Validate comprueba la configuración de un experimento antes de provisionarlo.
// Devuelve el primer *domain.ValidationError encontrado, o nil.
func Validate(exp *domain.Experiment, maxDurationDays int) error {
	if len(exp.Variants) < 2 {
		return &domain.ValidationError{Field: "variants", Message: "at least 2 variants required"}
	}

	for _, v := range exp.Variants {
		if !(v.TrafficPercentage >= 0 && v.TrafficPercentage <= 100) {
			return &domain.ValidationError{
				Field:   "traffic_percentage",
				Message: fmt.Sprintf("variant %q traffic must be within [0, 100], got %v", v.Name, v.TrafficPercentage),
				Value:   v.TrafficPercentage,
			}
		}
	}

	// Escrito así para que un total NaN falle.
	total := exp.TrafficTotal()
	if !(math.Abs(total-100) <= trafficTolerance) {
		return &domain.ValidationError{
			Field:   "traffic_percentage",
			Message: fmt.Sprintf("traffic split must sum to 100, got %v", total),
			Value:   total,
		}
	}

	if !exp.PrimaryMetric.Supported() {
		return &domain.ValidationError{
			Field:   "primary_metric",
			Message: fmt.Sprintf("unsupported metric %q", exp.PrimaryMetric),
			Value:   exp.PrimaryMetric,
		}
	}

	if exp.DurationDays > maxDurationDays {
		return &domain.ValidationError{
			Field:   "duration_days",
			Message: fmt.Sprintf("duration %d days exceeds maximum of %d", exp.DurationDays, maxDurationDays),
			Value:   exp.DurationDays,
		}
	}
	if exp.DurationDays <= 0 {
		return &domain.ValidationError{Field: "duration_days", Message: "duration must be positive", Value: exp.DurationDays}
	}

	if !supportedConfidence(exp.ConfidenceLevel) {
		return &domain.ValidationError{
			Field:   "confidence_level",
			Message: fmt.Sprintf("confidence level %v not in %v", exp.ConfidenceLevel, domain.SupportedConfidenceLevels),
			Value:   exp.ConfidenceLevel,
		}
	}

	if !exp.Type.Valid() {
		return &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown experiment type %q", exp.Type), Value: exp.Type}
	}
	for _, v := range exp.Variants {
		if v.Content == nil {
			return &domain.ValidationError{Field: "content", Message: fmt.Sprintf("variant %q has no content", v.Name)}
		}
		if v.Content.Kind() != exp.Type {
			return &domain.ValidationError{
				Field:   "content",
				Message: fmt.Sprintf("variant %q has %s content in a %s experiment", v.Name, v.Content.Kind(), exp.Type),
			}
		}
	}

	required := []struct{ field, value string }{
		{"name", exp.Name},
		{"sku", exp.SKU},
		{"marketplace", exp.Marketplace},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &domain.ValidationError{Field: r.field, Message: "required"}
		}
	}

	return nil
}

// Validate comprueba exp contra la duración máxima configurada en el engine.
func (e *Engine) Validate(exp *domain.Experiment) error {
	return Validate(exp, e.opts.MaximumDurationDays)
}

func supportedConfidence(level float64) bool {
	for _, l := range domain.SupportedConfidenceLevels {
		if level == l {
			return true
		}
	}
	return false
}
