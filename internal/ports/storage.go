package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// ExperimentStorage persiste experimentos y su historial de evaluaciones.
type ExperimentStorage interface {
	// CreateExperiment inserta un experimento nuevo con sus variantes.
	CreateExperiment(ctx context.Context, exp *domain.Experiment) error

	// GetExperiment devuelve domain.ErrNotFound si el id no existe.
	GetExperiment(ctx context.Context, id string) (*domain.Experiment, error)

	// ListExperiments devuelve los experimentos en el status dado, o todos si status está vacío.
	ListExperiments(ctx context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error)

	// UpdateExperiment escribe exp si su Version coincide con la guardada;
	// si no, devuelve domain.ErrConcurrentModification. Version se incrementa al guardar.
	UpdateExperiment(ctx context.Context, exp *domain.Experiment) error

	// SaveEvaluation añade una evaluación al historial del experimento.
	SaveEvaluation(ctx context.Context, ev domain.Evaluation) error

	// GetEvaluations devuelve las evaluaciones desde since, las más recientes primero.
	GetEvaluations(ctx context.Context, experimentID string, since time.Time) ([]domain.Evaluation, error)

	Close() error
}
