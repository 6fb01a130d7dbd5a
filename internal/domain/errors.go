package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound lo devuelve el storage cuando el experimento no existe.
	ErrNotFound = errors.New("not found")

	// ErrNotProvisioned: el experimento aún no tiene id remoto.
	ErrNotProvisioned = errors.New("experiment is not provisioned")

	// ErrNoWinner: se pidió apply antes de confirmar un ganador.
	ErrNoWinner = errors.New("no winner variant set")

	// ErrWinnerNotFound: el id ganador no corresponde a ninguna variante del experimento.
	ErrWinnerNotFound = errors.New("winner variant not found")

	// ErrUnsupportedVariantCount lo devuelve el analyzer si no hay exactamente dos variantes.
	ErrUnsupportedVariantCount = errors.New("analysis requires exactly 2 variants")

	// ErrUnsupportedExperimentType: el tipo no tiene mapping para un colaborador.
	ErrUnsupportedExperimentType = errors.New("unsupported experiment type")

	// ErrConcurrentModification lo devuelve el storage si la versión guardada cambió.
	ErrConcurrentModification = errors.New("experiment was modified concurrently")
)

// ValidationError reporta una configuración de experimento inválida.
type ValidationError struct {
	Field   string
	Message string
	Value   any // valor rechazado, nil si el campo falta
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ProvisioningError envuelve un fallo al crear el experimento en remoto.
// El experimento queda sin provisionar.
type ProvisioningError struct {
	ExperimentID string
	Err          error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning experiment %s: %v", e.ExperimentID, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// MetricsUnavailableError envuelve un fetch de métricas fallido.
type MetricsUnavailableError struct {
	ExperimentID string
	Err          error
}

func (e *MetricsUnavailableError) Error() string {
	return fmt.Sprintf("metrics unavailable for experiment %s: %v", e.ExperimentID, e.Err)
}

func (e *MetricsUnavailableError) Unwrap() error { return e.Err }

// StateError se devuelve cuando la operación no está permitida en el status actual.
type StateError struct {
	Op     string
	Status ExperimentStatus
	Reason string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not allowed in status %s: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s not allowed in status %s", e.Op, e.Status)
}
