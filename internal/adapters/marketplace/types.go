package marketplace

// DTOs crudos de las APIs del marketplace. Solo se usan en este paquete;
// la conversión desde y hacia el dominio está en mapping.go.

// --- Experiments API ---

// createExperimentRequest es el body de POST /experiments.
type createExperimentRequest struct {
	ClientReference string             `json:"client_reference"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	ProductID       string             `json:"product_id"`
	MarketplaceID   string             `json:"marketplace_id"`
	ExperimentType  string             `json:"experiment_type"`
	PrimaryMetric   string             `json:"primary_metric"`
	DurationDays    int                `json:"duration_days"`
	Treatments      []treatmentRequest `json:"treatments"`
}

// treatmentRequest es un brazo del experimento. ClientReference lleva el id
// local de la variante y vuelve en los reportes de métricas.
type treatmentRequest struct {
	ClientReference   string         `json:"client_reference"`
	Name              string         `json:"name"`
	TrafficPercentage float64        `json:"traffic_percentage"`
	Content           contentPayload `json:"content"`
}

// contentPayload lleva un solo campo relleno en experimentos de un elemento
// y varios en MULTI_ATTRIBUTE.
type contentPayload struct {
	Title           string   `json:"title,omitempty"`
	MainImageURL    string   `json:"main_image_url,omitempty"`
	BulletPoints    []string `json:"bullet_points,omitempty"`
	APlusContentRef string   `json:"a_plus_content_reference,omitempty"`
}

type createExperimentResponse struct {
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
}

type stopExperimentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// metricsResponse es la respuesta de GET /experiments/{id}/metrics.
// Los contadores son acumulados en el intervalo pedido.
type metricsResponse struct {
	ExperimentID string          `json:"experiment_id"`
	Treatments   []treatmentStat `json:"treatments"`
}

type treatmentStat struct {
	ClientReference string  `json:"client_reference"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	Orders          int64   `json:"orders"`
	Sales           float64 `json:"sales"`
}

// --- Catalog API ---

type catalogSearchResponse struct {
	Items []catalogItem `json:"items"`
}

type catalogItem struct {
	ASIN string `json:"asin"`
	SKU  string `json:"sku"`
}

// --- Listings API ---

// listingPatchRequest es el body de PATCH /listings/{sku}.
type listingPatchRequest struct {
	ProductID string       `json:"product_id"`
	Patches   []patchEntry `json:"patches"`
}

type patchEntry struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type listingPatchResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Issues       []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"issues"`
}
