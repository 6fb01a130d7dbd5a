// Package engine es el motor de decisión de experimentos: valida
// experimentos, gestiona su ciclo de vida contra el marketplace, ingiere
// métricas y decide ganadores con un z-test de dos proporciones.
//
// El engine no usa locks. Los callers deben serializar las operaciones sobre
// un mismo experimento (el monitor usa una goroutine por experimento y el
// storage versionado optimista).
package engine

import (
	"time"

	"github.com/alejandrodnm/listinglab/internal/ports"
)

// Constantes de política que aplica el engine.
const (
	DefaultMinimumSampleSize       = 1000
	DefaultMinimumConversionEvents = 50
	DefaultMaximumDurationDays     = 90
	DefaultEarlyStoppingThreshold  = 0.95

	// trafficTolerance es la desviación permitida del reparto de tráfico respecto a 100%.
	trafficTolerance = 0.1
)

// Options contiene los umbrales configurables del engine.
type Options struct {
	MinimumSampleSize       int64   // clicks entre ambas variantes antes de permitir early stopping
	MinimumConversionEvents int64   // conversiones entre ambas variantes antes de ejecutar el z-test
	MaximumDurationDays     int     // máximo para Experiment.DurationDays
	EarlyStoppingThreshold  float64 // fracción; 0.95 = 95% de significancia
	// SimulateMetrics sustituye los fetch fallidos por contadores sintéticos.
	// Solo fuera de producción.
	SimulateMetrics bool
}

// DefaultOptions devuelve los umbrales de producción.
func DefaultOptions() Options {
	return Options{
		MinimumSampleSize:       DefaultMinimumSampleSize,
		MinimumConversionEvents: DefaultMinimumConversionEvents,
		MaximumDurationDays:     DefaultMaximumDurationDays,
		EarlyStoppingThreshold:  DefaultEarlyStoppingThreshold,
	}
}

// Engine orquesta los experimentos contra los colaboradores del marketplace.
type Engine struct {
	provider  ports.ExperimentProvider
	publisher ports.ListingPublisher
	opts      Options
	simulator *MetricsSimulator
	now       func() time.Time
}

// New crea un Engine. Los umbrales a cero en opts usan los defaults.
func New(provider ports.ExperimentProvider, publisher ports.ListingPublisher, opts Options) *Engine {
	def := DefaultOptions()
	if opts.MinimumSampleSize <= 0 {
		opts.MinimumSampleSize = def.MinimumSampleSize
	}
	if opts.MinimumConversionEvents <= 0 {
		opts.MinimumConversionEvents = def.MinimumConversionEvents
	}
	if opts.MaximumDurationDays <= 0 {
		opts.MaximumDurationDays = def.MaximumDurationDays
	}
	if opts.EarlyStoppingThreshold <= 0 {
		opts.EarlyStoppingThreshold = def.EarlyStoppingThreshold
	}

	e := &Engine{
		provider:  provider,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if opts.SimulateMetrics {
		e.simulator = NewMetricsSimulator(uint64(time.Now().UnixNano()))
	}
	return e
}

// Options devuelve los umbrales efectivos.
func (e *Engine) Options() Options {
	return e.opts
}

// Now devuelve la hora actual del engine.
func (e *Engine) Now() time.Time {
	return e.now()
}

// SetClock reemplaza la fuente de tiempo del engine.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetSimulator instala un simulador y activa el fallback de métricas fuera de producción.
func (e *Engine) SetSimulator(s *MetricsSimulator) {
	e.simulator = s
	e.opts.SimulateMetrics = s != nil
}
