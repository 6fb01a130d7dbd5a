package ports

import (
	"context"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// Notifier presenta los resultados de evaluación al usuario.
type Notifier interface {
	// Notify reporta las evaluaciones de un ciclo del monitor.
	Notify(ctx context.Context, evaluations []domain.Evaluation) error
}
