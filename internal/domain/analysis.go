package domain

import "time"

// AnalysisStatus indica si el analyzer tuvo datos suficientes para el test.
type AnalysisStatus string

const (
	AnalysisComplete         AnalysisStatus = "complete"
	AnalysisInsufficientData AnalysisStatus = "insufficient_data"
)

// Analysis es el resultado del z-test de dos proporciones entre control y treatment.
type Analysis struct {
	Status             AnalysisStatus
	CurrentConversions int64 // conversions across both variants

	ControlID     string
	TreatmentID   string
	ControlRate   float64 // p1 = conversions / clicks
	TreatmentRate float64 // p2

	ZScore       float64
	PValue       float64
	Significance float64 // (1 - p) * 100

	ConfidenceLevel float64 // level the interval was computed at
	CILower         float64 // bounds for p2 - p1
	CIUpper         float64

	LiftPercent float64 // (p2 - p1) / p1 * 100

	SampleSize        int64 // clicks across both variants
	SampleSizeReached bool
}

// Sufficient indica si el z-test llegó a calcularse.
func (a Analysis) Sufficient() bool {
	return a.Status == AnalysisComplete
}

// DecisionReason explica el resultado de la decisión de ganador.
type DecisionReason string

const (
	ReasonWinner                   DecisionReason = "winner"
	ReasonInsufficientSignificance DecisionReason = "insufficient_significance"
	ReasonInsufficientLift         DecisionReason = "insufficient_lift"
	ReasonInsufficientData         DecisionReason = "insufficient_data"
)

// Decision es el veredicto de negocio sobre un Analysis.
type Decision struct {
	HasWinner    bool
	WinnerID     string
	WinnerName   string
	LiftPercent  float64 // absolute value when a winner exists
	Significance float64
	Reason       DecisionReason
}

// Evaluation agrupa una pasada de análisis sobre un experimento.
type Evaluation struct {
	ExperimentID   string
	ExperimentName string
	Status         ExperimentStatus
	Analysis       Analysis
	Decision       Decision
	Recommendation string
	Collection     *CollectionSummary // nil when metrics were not collected in this pass
	Action         string             // transition triggered by the monitor, if any
	EvaluatedAt    time.Time
}

// CollectionSummary agrega los contadores tras una recolección de métricas.
type CollectionSummary struct {
	Impressions     int64
	Clicks          int64
	Conversions     int64
	Revenue         float64
	VariantsUpdated int
	Simulated       bool
}

// VariantMetrics son los contadores acumulados que reporta el marketplace para una variante.
type VariantMetrics struct {
	VariantID   string
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
}

// ProvisionRequest es lo que el engine pasa al provider para crear el experimento remoto.
type ProvisionRequest struct {
	ExperimentID  string
	Name          string
	Description   string
	Type          ExperimentType
	ProductRef    string
	Marketplace   string
	PrimaryMetric Metric
	DurationDays  int
	Variants      []ProvisionVariant
}

// ProvisionVariant es un treatment dentro de un ProvisionRequest.
type ProvisionVariant struct {
	ID                string
	Name              string
	TrafficPercentage float64
	Content           Content
}

// ContentUpdate es lo que el engine pasa al publisher para aplicar un ganador.
type ContentUpdate struct {
	ProductRef  string
	SKU         string
	Marketplace string
	Type        ExperimentType
	Content     Content
}
