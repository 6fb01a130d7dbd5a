package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Start lanza en remoto un experimento DRAFT provisionado y, si va bien, lo
// marca RUNNING con sus fechas de inicio y fin. Si falla no se toca.
func (e *Engine) Start(ctx context.Context, exp *domain.Experiment) error {
	if exp.Status != domain.StatusDraft {
		return &domain.StateError{Op: "start", Status: exp.Status}
	}
	if !exp.Provisioned() {
		return fmt.Errorf("engine.Start %s: %w", exp.ID, domain.ErrNotProvisioned)
	}

	if err := e.provider.Start(ctx, exp.RemoteExperimentID); err != nil {
		return fmt.Errorf("engine.Start %s: remote start: %w", exp.ID, err)
	}

	now := e.now()
	end := now.AddDate(0, 0, exp.DurationDays)
	exp.Status = domain.StatusRunning
	exp.StartDate = &now
	exp.EndDate = &end
	exp.UpdatedAt = now
	transitionsTotal.WithLabelValues(string(domain.StatusRunning)).Inc()

	slog.Info("experiment started",
		"experiment_id", exp.ID,
		"remote_id", exp.RemoteExperimentID,
		"end_date", end.Format("2006-01-02"),
	)
	return nil
}

// Stop cancela el experimento. El stop remoto es best effort: un fallo se
// loguea y el status local pasa igualmente a CANCELLED.
func (e *Engine) Stop(ctx context.Context, exp *domain.Experiment, reason string) error {
	if exp.Status.Terminal() {
		return &domain.StateError{Op: "stop", Status: exp.Status}
	}

	if exp.Provisioned() {
		e.stopRemote(ctx, exp, reason)
	}

	now := e.now()
	exp.Status = domain.StatusCancelled
	exp.CompletedAt = &now
	exp.UpdatedAt = now
	transitionsTotal.WithLabelValues(string(domain.StatusCancelled)).Inc()

	slog.Info("experiment cancelled", "experiment_id", exp.ID, "reason", reason)
	return nil
}

// ApplyWinner publica en el listing el contenido de la variante ganadora y
// marca el experimento COMPLETED. Si falla no se modifica nada.
func (e *Engine) ApplyWinner(ctx context.Context, exp *domain.Experiment) error {
	if exp.WinnerVariantID == "" {
		return fmt.Errorf("engine.ApplyWinner %s: %w", exp.ID, domain.ErrNoWinner)
	}
	winner := exp.Winner()
	if winner == nil {
		return fmt.Errorf("engine.ApplyWinner %s: %w: %s", exp.ID, domain.ErrWinnerNotFound, exp.WinnerVariantID)
	}
	if exp.Status.Terminal() {
		return &domain.StateError{Op: "apply winner", Status: exp.Status}
	}

	update, err := contentUpdate(exp, winner)
	if err != nil {
		return fmt.Errorf("engine.ApplyWinner %s: %w", exp.ID, err)
	}

	if err := e.publisher.ApplyContentUpdate(ctx, update); err != nil {
		publishFailures.Inc()
		return fmt.Errorf("engine.ApplyWinner %s: publish: %w", exp.ID, err)
	}

	if exp.Status == domain.StatusRunning && exp.Provisioned() {
		e.stopRemote(ctx, exp, "winner applied")
	}

	now := e.now()
	exp.Status = domain.StatusCompleted
	exp.CompletedAt = &now
	exp.UpdatedAt = now
	transitionsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()

	slog.Info("winner applied",
		"experiment_id", exp.ID,
		"variant_id", winner.ID,
		"variant", winner.Name,
		"significance", fmt.Sprintf("%.1f%%", exp.StatisticalSignificance),
	)
	return nil
}

func (e *Engine) stopRemote(ctx context.Context, exp *domain.Experiment, reason string) {
	if err := e.provider.Stop(ctx, exp.RemoteExperimentID, reason); err != nil {
		remoteStopFailures.Inc()
		slog.Warn("remote stop failed, continuing with local transition",
			"experiment_id", exp.ID,
			"remote_id", exp.RemoteExperimentID,
			"err", err,
		)
	}
}

// contentUpdate traduce el contenido ganador al payload del publisher. El
// publisher no aplica varios elementos a la vez, así que un ganador
// MULTIVARIATE falla aquí en lugar de aplicarse a medias.
func contentUpdate(exp *domain.Experiment, winner *domain.Variant) (domain.ContentUpdate, error) {
	update := domain.ContentUpdate{
		ProductRef:  exp.ProductRef,
		SKU:         exp.SKU,
		Marketplace: exp.Marketplace,
		Type:        exp.Type,
		Content:     winner.Content,
	}

	switch exp.Type {
	case domain.TypeTitle, domain.TypeMainImage, domain.TypeBulletPoints, domain.TypeAPlusContent:
	case domain.TypeMultivariate:
		return domain.ContentUpdate{}, fmt.Errorf("%w: %s cannot be published", domain.ErrUnsupportedExperimentType, exp.Type)
	default:
		return domain.ContentUpdate{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedExperimentType, exp.Type)
	}

	if winner.Content == nil || winner.Content.Kind() != exp.Type {
		return domain.ContentUpdate{}, fmt.Errorf("winner %s content does not match experiment type %s", winner.ID, exp.Type)
	}
	return update, nil
}
