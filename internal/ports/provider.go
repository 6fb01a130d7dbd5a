package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// ExperimentProvider es el servicio de experimentación del marketplace.
// Timeouts y retries son cosa de la implementación; el caller hace una sola llamada.
type ExperimentProvider interface {
	// Create provisiona el experimento en remoto y devuelve el id remoto.
	Create(ctx context.Context, req domain.ProvisionRequest) (string, error)

	// Start empieza a servir tráfico al experimento remoto.
	Start(ctx context.Context, remoteID string) error

	// Stop termina el experimento remoto.
	Stop(ctx context.Context, remoteID, reason string) error

	// FetchMetrics devuelve los contadores acumulados por variante en [from, to].
	FetchMetrics(ctx context.Context, remoteID string, from, to time.Time) ([]domain.VariantMetrics, error)

	// ResolveProductReference traduce un SKU del seller al product id del marketplace (ASIN).
	ResolveProductReference(ctx context.Context, sku, marketplace string) (string, error)
}
