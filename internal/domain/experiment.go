package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentType es el elemento del listing que varía el experimento.
type ExperimentType string

const (
	TypeTitle        ExperimentType = "TITLE"
	TypeMainImage    ExperimentType = "MAIN_IMAGE"
	TypeBulletPoints ExperimentType = "BULLET_POINTS"
	TypeAPlusContent ExperimentType = "A_PLUS_CONTENT"
	TypeMultivariate ExperimentType = "MULTIVARIATE"
)

// Valid indica si t es un tipo de experimento conocido.
func (t ExperimentType) Valid() bool {
	switch t {
	case TypeTitle, TypeMainImage, TypeBulletPoints, TypeAPlusContent, TypeMultivariate:
		return true
	}
	return false
}

// Metric es la métrica principal que optimiza el experimento.
type Metric string

const (
	MetricCTR              Metric = "ctr"
	MetricConversionRate   Metric = "conversion_rate"
	MetricRevenuePerClick  Metric = "revenue_per_click"
	MetricBuyBoxPercentage Metric = "buy_box_percentage"
	MetricSessionPct       Metric = "session_percentage"
)

// SupportedMetrics lista las métricas que el engine acepta como principales.
var SupportedMetrics = []Metric{
	MetricCTR,
	MetricConversionRate,
	MetricRevenuePerClick,
	MetricBuyBoxPercentage,
	MetricSessionPct,
}

// Supported indica si m está en SupportedMetrics.
func (m Metric) Supported() bool {
	for _, s := range SupportedMetrics {
		if s == m {
			return true
		}
	}
	return false
}

// SupportedConfidenceLevels son los únicos niveles de confianza admitidos.
var SupportedConfidenceLevels = []float64{90.0, 95.0, 99.0}

// ExperimentStatus es el estado del ciclo de vida de un experimento.
type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "DRAFT"
	StatusRunning   ExperimentStatus = "RUNNING"
	StatusCompleted ExperimentStatus = "COMPLETED"
	StatusCancelled ExperimentStatus = "CANCELLED"
)

// Terminal indica si desde s ya no se permite ninguna transición.
func (s ExperimentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Experiment es un test A/B entre variantes de contenido de un listing.
// Variants[0] es el control; Variants[1] el treatment.
type Experiment struct {
	ID          string
	UserID      string
	SKU         string
	Marketplace string
	ProductRef  string // product id del marketplace (ASIN), resuelto al provisionar

	Name        string
	Description string
	Type        ExperimentType

	PrimaryMetric   Metric
	ConfidenceLevel float64 // 90, 95 or 99
	DurationDays    int
	AutoApplyWinner bool

	Status    ExperimentStatus
	StartDate *time.Time
	EndDate   *time.Time

	RemoteExperimentID      string  // vacío hasta provisionar
	StatisticalSignificance float64 // último porcentaje de confianza calculado
	WinnerVariantID         string

	Variants []Variant

	Version     int64 // token de concurrencia optimista, lo gestiona el storage
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewExperiment crea un experimento DRAFT con ids nuevos para él y sus variantes.
func NewExperiment(name string, typ ExperimentType, variants []Variant) Experiment {
	now := time.Now().UTC()
	for i := range variants {
		if variants[i].ID == "" {
			variants[i].ID = uuid.NewString()
		}
	}
	return Experiment{
		ID:              uuid.NewString(),
		Name:            name,
		Type:            typ,
		PrimaryMetric:   MetricConversionRate,
		ConfidenceLevel: 95.0,
		DurationDays:    14,
		Status:          StatusDraft,
		Variants:        variants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Provisioned indica si el provider remoto ya asignó un id.
func (e *Experiment) Provisioned() bool {
	return e.RemoteExperimentID != ""
}

// Variant devuelve un puntero a la variante con ese id, o nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// Winner devuelve la variante ganadora confirmada, o nil si no hay ninguna
// o no pertenece a este experimento.
func (e *Experiment) Winner() *Variant {
	if e.WinnerVariantID == "" {
		return nil
	}
	return e.Variant(e.WinnerVariantID)
}

// TrafficTotal es la suma de los porcentajes de tráfico de las variantes.
func (e *Experiment) TrafficTotal() float64 {
	total := 0.0
	for _, v := range e.Variants {
		total += v.TrafficPercentage
	}
	return total
}

// Totals suma los contadores de todas las variantes.
func (e *Experiment) Totals() CollectionSummary {
	var s CollectionSummary
	for _, v := range e.Variants {
		s.Impressions += v.Impressions
		s.Clicks += v.Clicks
		s.Conversions += v.Conversions
		s.Revenue += v.Revenue
	}
	return s
}

// Expired indica si un experimento en marcha llegó a su fecha de fin.
func (e *Experiment) Expired(now time.Time) bool {
	return e.Status == StatusRunning && e.EndDate != nil && !now.Before(*e.EndDate)
}

// Variant es un brazo del experimento con sus contadores acumulados.
type Variant struct {
	ID                string
	Name              string
	Content           Content
	TrafficPercentage float64

	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
}

// NewVariant crea una variante con un id nuevo.
func NewVariant(name string, content Content, traffic float64) Variant {
	return Variant{
		ID:                uuid.NewString(),
		Name:              name,
		Content:           content,
		TrafficPercentage: traffic,
	}
}

// CTR es clicks / impressions.
func (v Variant) CTR() float64 {
	return ratio(float64(v.Clicks), float64(v.Impressions))
}

// ConversionRate es conversions / clicks.
func (v Variant) ConversionRate() float64 {
	return ratio(float64(v.Conversions), float64(v.Clicks))
}

// RevenuePerClick es revenue / clicks.
func (v Variant) RevenuePerClick() float64 {
	return ratio(v.Revenue, float64(v.Clicks))
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// TruncateName recorta s a maxLen caracteres para las tablas.
func TruncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
