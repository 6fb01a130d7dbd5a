package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

const (
	simImpressionsPerDay = 3000.0 // con 100% del tráfico
	simBaseCTR           = 0.08
	simBaseCR            = 0.10
	simAvgOrderValue     = 24.99
)

// MetricsSimulator genera contadores acumulados sintéticos para pruebas locales.
// Nunca baja un contador por debajo del valor actual de la variante.
type MetricsSimulator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMetricsSimulator crea un simulador con semilla determinista.
func NewMetricsSimulator(seed uint64) *MetricsSimulator {
	return &MetricsSimulator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate devuelve contadores para cada variante de exp a fecha now.
func (s *MetricsSimulator) Generate(exp *domain.Experiment, now time.Time) []domain.VariantMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := exp.CreatedAt
	if exp.StartDate != nil {
		start = *exp.StartDate
	}
	days := now.Sub(start).Hours() / 24
	if days < 1.0/24 {
		days = 1.0 / 24
	}

	out := make([]domain.VariantMetrics, 0, len(exp.Variants))
	for i, v := range exp.Variants {
		share := v.TrafficPercentage / 100
		impressions := int64(simImpressionsPerDay * share * days * s.jitter(0.1))
		// Cada variante posterior lleva una pequeña ventaja para que la simulación llegue a decidir.
		ctr := simBaseCTR * s.jitter(0.05)
		cr := simBaseCR * (1 + 0.08*float64(i)) * s.jitter(0.05)
		clicks := int64(float64(impressions) * ctr)
		conversions := int64(float64(clicks) * cr)
		revenue := float64(conversions) * simAvgOrderValue

		out = append(out, domain.VariantMetrics{
			VariantID:   v.ID,
			Impressions: max(impressions, v.Impressions),
			Clicks:      max(clicks, v.Clicks),
			Conversions: max(conversions, v.Conversions),
			Revenue:     max(revenue, v.Revenue),
		})
	}
	return out
}

// jitter devuelve un multiplicador uniforme en [1-spread, 1+spread].
func (s *MetricsSimulator) jitter(spread float64) float64 {
	return 1 + spread*(2*s.rnd.Float64()-1)
}
