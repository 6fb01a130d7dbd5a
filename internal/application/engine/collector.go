package engine

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// CollectMetrics trae del provider los contadores acumulados de un
// experimento en marcha y sobreescribe con ellos los contadores locales.
//
// Un fetch fallido devuelve *domain.MetricsUnavailableError, salvo con
// SimulateMetrics: entonces se usan contadores sintéticos y el resumen
// queda marcado como Simulated.
func (e *Engine) CollectMetrics(ctx context.Context, exp *domain.Experiment) (domain.CollectionSummary, error) {
	if !exp.Provisioned() {
		return domain.CollectionSummary{}, &domain.StateError{Op: "collect metrics", Status: exp.Status, Reason: "not provisioned"}
	}
	if exp.Status != domain.StatusRunning {
		return domain.CollectionSummary{}, &domain.StateError{Op: "collect metrics", Status: exp.Status}
	}

	now := e.now()
	from := exp.CreatedAt
	if exp.StartDate != nil {
		from = *exp.StartDate
	}

	simulated := false
	reports, err := e.provider.FetchMetrics(ctx, exp.RemoteExperimentID, from, now)
	if err != nil {
		if !e.opts.SimulateMetrics || e.simulator == nil {
			collectionsTotal.WithLabelValues("failed").Inc()
			return domain.CollectionSummary{}, &domain.MetricsUnavailableError{ExperimentID: exp.ID, Err: err}
		}
		slog.Warn("metrics fetch failed, substituting SIMULATED counters (non-production mode)",
			"experiment_id", exp.ID,
			"err", err,
		)
		reports = e.simulator.Generate(exp, now)
		simulated = true
	}

	updated := applyMetrics(exp, reports)
	exp.UpdatedAt = now

	summary := exp.Totals()
	summary.VariantsUpdated = updated
	summary.Simulated = simulated

	if simulated {
		collectionsTotal.WithLabelValues("simulated").Inc()
	} else {
		collectionsTotal.WithLabelValues("ok").Inc()
	}

	slog.Debug("metrics collected",
		"experiment_id", exp.ID,
		"impressions", summary.Impressions,
		"clicks", summary.Clicks,
		"conversions", summary.Conversions,
		"variants_updated", updated,
		"simulated", simulated,
	)
	return summary, nil
}

// applyMetrics sobreescribe los contadores con los valores acumulados reportados.
// Se ignoran variantes desconocidas. Se rechazan, para esa variante, los
// reportes que bajarían un contador o que traen más conversions que clicks.
func applyMetrics(exp *domain.Experiment, reports []domain.VariantMetrics) int {
	updated := 0
	for _, r := range reports {
		v := exp.Variant(r.VariantID)
		if v == nil {
			slog.Debug("metrics for unknown variant ignored",
				"experiment_id", exp.ID,
				"variant_id", r.VariantID,
			)
			continue
		}
		if r.Conversions > r.Clicks {
			slog.Warn("metrics report has more conversions than clicks, skipped",
				"experiment_id", exp.ID,
				"variant_id", v.ID,
				"clicks_reported", r.Clicks,
				"conversions_reported", r.Conversions,
			)
			continue
		}
		if r.Impressions < v.Impressions || r.Clicks < v.Clicks ||
			r.Conversions < v.Conversions || r.Revenue < v.Revenue {
			slog.Warn("metrics report would decrease counters, skipped",
				"experiment_id", exp.ID,
				"variant_id", v.ID,
				"clicks_local", v.Clicks,
				"clicks_reported", r.Clicks,
				"conversions_local", v.Conversions,
				"conversions_reported", r.Conversions,
			)
			continue
		}
		v.Impressions = r.Impressions
		v.Clicks = r.Clicks
		v.Conversions = r.Conversions
		v.Revenue = r.Revenue
		updated++
	}
	return updated
}
