package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Provision valida exp y lo crea en el servicio de experimentación del
// marketplace. Si falla, el experimento sigue DRAFT sin id remoto y el error
// es un *domain.ProvisioningError (o un *domain.ValidationError).
func (e *Engine) Provision(ctx context.Context, exp *domain.Experiment) error {
	if exp.Status != domain.StatusDraft {
		return &domain.StateError{Op: "provision", Status: exp.Status}
	}
	if exp.Provisioned() {
		return &domain.StateError{Op: "provision", Status: exp.Status, Reason: "already provisioned"}
	}
	if err := e.Validate(exp); err != nil {
		return err
	}

	productRef, err := e.provider.ResolveProductReference(ctx, exp.SKU, exp.Marketplace)
	if err != nil {
		return &domain.ProvisioningError{
			ExperimentID: exp.ID,
			Err:          fmt.Errorf("resolve sku %q: %w", exp.SKU, err),
		}
	}

	remoteID, err := e.provider.Create(ctx, provisionRequest(exp, productRef))
	if err != nil {
		return &domain.ProvisioningError{ExperimentID: exp.ID, Err: err}
	}
	if remoteID == "" {
		return &domain.ProvisioningError{
			ExperimentID: exp.ID,
			Err:          errors.New("provider returned an empty experiment id"),
		}
	}

	exp.ProductRef = productRef
	exp.RemoteExperimentID = remoteID
	exp.UpdatedAt = e.now()

	slog.Info("experiment provisioned",
		"experiment_id", exp.ID,
		"remote_id", remoteID,
		"product_ref", productRef,
	)
	return nil
}

func provisionRequest(exp *domain.Experiment, productRef string) domain.ProvisionRequest {
	req := domain.ProvisionRequest{
		ExperimentID:  exp.ID,
		Name:          exp.Name,
		Description:   exp.Description,
		Type:          exp.Type,
		ProductRef:    productRef,
		Marketplace:   exp.Marketplace,
		PrimaryMetric: exp.PrimaryMetric,
		DurationDays:  exp.DurationDays,
		Variants:      make([]domain.ProvisionVariant, 0, len(exp.Variants)),
	}
	for _, v := range exp.Variants {
		req.Variants = append(req.Variants, domain.ProvisionVariant{
			ID:                v.ID,
			Name:              v.Name,
			TrafficPercentage: v.TrafficPercentage,
			Content:           v.Content,
		})
	}
	return req
}
