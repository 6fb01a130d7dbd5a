// Package monitor gestiona periódicamente los experimentos en marcha: recoge
// métricas, las evalúa, aplica ganadores antes de tiempo si se permite y
// cierra los experimentos cuya duración terminó.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/listinglab/internal/application/engine"
	"github.com/alejandrodnm/listinglab/internal/domain"
	"github.com/alejandrodnm/listinglab/internal/ports"
)

// Acciones que se registran en la evaluación cuando el monitor cambia el status.
const (
	ActionEarlyStop    = "winner applied (early stop)"
	ActionExpiredApply = "winner applied (duration elapsed)"
	ActionExpiredStop  = "stopped (duration elapsed)"
)

// ExpiryReason es el motivo de stop que se envía para experimentos expirados.
const ExpiryReason = "duration elapsed"

// Config contiene la configuración del monitor.
type Config struct {
	Interval time.Duration
	Workers  int  // experimentos procesados en paralelo (0 = NumCPU)
	Once     bool // ejecutar un solo ciclo y volver
}

// Monitor ejecuta el engine de forma periódica.
type Monitor struct {
	cfg      Config
	engine   *engine.Engine
	storage  ports.ExperimentStorage
	notifier ports.Notifier
}

// New crea un Monitor con sus dependencias inyectadas.
func New(cfg Config, eng *engine.Engine, storage ports.ExperimentStorage, notifier ports.Notifier) *Monitor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Monitor{cfg: cfg, engine: eng, storage: storage, notifier: notifier}
}

// Run ejecuta ciclos hasta que se cancele ctx. Con cfg.Once ejecuta uno solo.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("monitor starting",
		"interval", m.cfg.Interval,
		"workers", m.cfg.Workers,
		"once", m.cfg.Once,
	)

	if err := m.runCycle(ctx); err != nil {
		slog.Error("monitor cycle failed", "err", err)
		if m.cfg.Once {
			return err
		}
	}
	if m.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return nil
		case <-ticker.C:
			if err := m.runCycle(ctx); err != nil {
				slog.Error("monitor cycle failed", "err", err)
			}
		}
	}
}

// RunOnce procesa una vez cada experimento RUNNING y devuelve las evaluaciones.
func (m *Monitor) RunOnce(ctx context.Context) ([]domain.Evaluation, error) {
	return m.cycle(ctx)
}

func (m *Monitor) runCycle(ctx context.Context) error {
	start := time.Now()

	evaluations, err := m.cycle(ctx)
	if err != nil {
		return err
	}

	if err := m.notifier.Notify(ctx, evaluations); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	transitions := 0
	for _, ev := range evaluations {
		if ev.Action != "" {
			transitions++
		}
	}
	slog.Info("monitor cycle complete",
		"experiments", len(evaluations),
		"transitions", transitions,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// cycle carga los experimentos en marcha y los procesa en paralelo.
// Cada experimento pertenece a una sola goroutine durante todo el ciclo.
func (m *Monitor) cycle(ctx context.Context) ([]domain.Evaluation, error) {
	cyclesTotal.Inc()

	running, err := m.storage.ListExperiments(ctx, domain.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("monitor.cycle: list running: %w", err)
	}

	results := make([]*domain.Evaluation, len(running))
	var g errgroup.Group
	g.SetLimit(m.cfg.Workers)
	for i, exp := range running {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ev, ok := m.process(ctx, exp)
			if ok {
				results[i] = &ev
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("monitor.cycle: %w", err)
	}

	evaluations := make([]domain.Evaluation, 0, len(running))
	for _, ev := range results {
		if ev != nil {
			evaluations = append(evaluations, *ev)
		}
	}
	return evaluations, nil
}

// process ejecuta collect → evaluate → early stop → expiry → persist para un
// experimento. Devuelve false si no se pudo persistir nada.
func (m *Monitor) process(ctx context.Context, exp *domain.Experiment) (domain.Evaluation, bool) {
	log := slog.With("experiment_id", exp.ID)

	var collection *domain.CollectionSummary
	summary, err := m.engine.CollectMetrics(ctx, exp)
	if err != nil {
		experimentErrors.WithLabelValues("collect").Inc()
		log.Warn("metrics collection failed, evaluating last known counters", "err", err)
	} else {
		collection = &summary
	}

	ev, err := m.engine.Evaluate(exp)
	if err != nil {
		experimentErrors.WithLabelValues("evaluate").Inc()
		log.Warn("evaluation failed", "err", err)
		ev = domain.Evaluation{
			ExperimentID:   exp.ID,
			ExperimentName: exp.Name,
			Decision:       domain.Decision{Reason: domain.ReasonInsufficientData},
			Recommendation: "Analysis unavailable: " + err.Error(),
			EvaluatedAt:    m.engine.Now(),
		}
	}
	ev.Collection = collection

	if m.shouldStopEarly(exp, ev) {
		if err := m.engine.ApplyWinner(ctx, exp); err != nil {
			experimentErrors.WithLabelValues("apply").Inc()
			log.Error("early stop failed", "err", err)
		} else {
			ev.Action = ActionEarlyStop
		}
	}

	if exp.Expired(m.engine.Now()) {
		ev.Action = m.expire(ctx, exp)
	}

	if ev.Action != "" {
		actionsTotal.WithLabelValues(ev.Action).Inc()
	}
	ev.Status = exp.Status

	published := ev.Action == ActionEarlyStop || ev.Action == ActionExpiredApply
	if err := m.persist(ctx, exp, published); err != nil {
		experimentErrors.WithLabelValues("persist").Inc()
		switch {
		case published:
			// El listing ya lleva el ganador: se guarda el registro para que el
			// operador lo vea aunque el status guardado esté desfasado.
			log.Error("winner published but experiment could not be saved",
				"winner_variant_id", exp.WinnerVariantID,
				"err", err,
			)
			if err := m.storage.SaveEvaluation(ctx, ev); err != nil {
				log.Warn("failed to record evaluation", "err", err)
			}
			return ev, true
		case errors.Is(err, domain.ErrConcurrentModification):
			log.Warn("experiment modified concurrently, results of this cycle discarded")
		default:
			log.Error("failed to persist experiment", "err", err)
		}
		return domain.Evaluation{}, false
	}

	if err := m.storage.SaveEvaluation(ctx, ev); err != nil {
		log.Warn("failed to record evaluation", "err", err)
	}
	return ev, true
}

// persist guarda exp. Si se acaba de publicar un ganador y otro writer movió
// la versión guardada, la finalización se repite sobre la copia más reciente
// para que el siguiente ciclo no vuelva a publicar.
func (m *Monitor) persist(ctx context.Context, exp *domain.Experiment, published bool) error {
	err := m.storage.UpdateExperiment(ctx, exp)
	if err == nil || !published || !errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}

	latest, gerr := m.storage.GetExperiment(ctx, exp.ID)
	if gerr != nil {
		return fmt.Errorf("monitor.persist %s: reload: %w", exp.ID, gerr)
	}
	if latest.Status.Terminal() {
		return fmt.Errorf("monitor.persist %s: %w: closed concurrently as %s", exp.ID, err, latest.Status)
	}
	latest.Status = exp.Status
	latest.WinnerVariantID = exp.WinnerVariantID
	latest.StatisticalSignificance = exp.StatisticalSignificance
	latest.CompletedAt = exp.CompletedAt
	latest.UpdatedAt = exp.UpdatedAt
	if err := m.storage.UpdateExperiment(ctx, latest); err != nil {
		return fmt.Errorf("monitor.persist %s: replay completion: %w", exp.ID, err)
	}
	*exp = *latest

	slog.Warn("experiment modified concurrently, completion replayed on latest version",
		"experiment_id", exp.ID,
		"version", exp.Version,
	)
	return nil
}

// shouldStopEarly indica si el ganador es lo bastante claro para terminar el
// experimento antes de su fecha de fin.
func (m *Monitor) shouldStopEarly(exp *domain.Experiment, ev domain.Evaluation) bool {
	threshold := m.engine.Options().EarlyStoppingThreshold * 100
	return ev.Decision.HasWinner &&
		exp.AutoApplyWinner &&
		ev.Analysis.SampleSizeReached &&
		ev.Analysis.Significance >= threshold
}

// expire cierra un experimento cuya duración terminó: con auto-apply se
// aplica el ganador confirmado; en otro caso se para.
func (m *Monitor) expire(ctx context.Context, exp *domain.Experiment) string {
	log := slog.With("experiment_id", exp.ID)

	if exp.WinnerVariantID != "" && exp.AutoApplyWinner {
		err := m.engine.ApplyWinner(ctx, exp)
		if err == nil {
			return ActionExpiredApply
		}
		experimentErrors.WithLabelValues("apply").Inc()
		log.Error("applying winner at expiry failed, stopping instead", "err", err)
	}

	if err := m.engine.Stop(ctx, exp, ExpiryReason); err != nil {
		experimentErrors.WithLabelValues("stop").Inc()
		log.Error("failed to stop expired experiment", "err", err)
		return ""
	}
	return ActionExpiredStop
}
