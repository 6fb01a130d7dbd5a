package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// ExperimentFile es la definición YAML que acepta `listinglab create`.
// El content se decodifica según Type una vez parseado el archivo.
type ExperimentFile struct {
	Name            string           `yaml:"name" validate:"required"`
	Description     string           `yaml:"description"`
	UserID          string           `yaml:"user_id"`
	SKU             string           `yaml:"sku" validate:"required"`
	Marketplace     string           `yaml:"marketplace" validate:"required"`
	Type            string           `yaml:"type" validate:"required"`
	PrimaryMetric   string           `yaml:"primary_metric"`
	ConfidenceLevel float64          `yaml:"confidence_level"`
	DurationDays    int              `yaml:"duration_days" validate:"gte=0"`
	AutoApplyWinner bool             `yaml:"auto_apply_winner"`
	Variants        []VariantSection `yaml:"variants" validate:"required,min=1,dive"`
}

// VariantSection es una variante dentro de un ExperimentFile.
type VariantSection struct {
	Name              string    `yaml:"name" validate:"required"`
	TrafficPercentage float64   `yaml:"traffic_percentage" validate:"gte=0,lte=100"`
	Content           yaml.Node `yaml:"content" validate:"-"`
}

// LoadExperiment lee una definición y construye un experimento DRAFT.
// Las reglas de negocio (reparto de tráfico, métrica, duración) quedan para el engine.
func LoadExperiment(path string) (*domain.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadExperiment: read %q: %w", path, err)
	}
	exp, err := ParseExperiment(data)
	if err != nil {
		return nil, fmt.Errorf("config.LoadExperiment %q: %w", path, err)
	}
	return exp, nil
}

// ParseExperiment construye un experimento DRAFT desde YAML.
func ParseExperiment(data []byte) (*domain.Experiment, error) {
	var f ExperimentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid experiment definition: %w", err)
	}

	typ := domain.ExperimentType(strings.ToUpper(strings.TrimSpace(f.Type)))
	variants := make([]domain.Variant, 0, len(f.Variants))
	for i, v := range f.Variants {
		if v.Content.Kind == 0 {
			return nil, fmt.Errorf("variant %d (%s): missing content", i, v.Name)
		}
		content, err := domain.DecodeContent(typ, v.Content.Decode)
		if err != nil {
			return nil, fmt.Errorf("variant %d (%s): %w", i, v.Name, err)
		}
		variants = append(variants, domain.NewVariant(v.Name, content, v.TrafficPercentage))
	}

	exp := domain.NewExperiment(f.Name, typ, variants)
	exp.Description = f.Description
	exp.UserID = f.UserID
	exp.SKU = f.SKU
	exp.Marketplace = f.Marketplace
	exp.AutoApplyWinner = f.AutoApplyWinner
	if f.PrimaryMetric != "" {
		exp.PrimaryMetric = domain.Metric(strings.ToLower(f.PrimaryMetric))
	}
	if f.ConfidenceLevel != 0 {
		exp.ConfidenceLevel = f.ConfidenceLevel
	}
	if f.DurationDays != 0 {
		exp.DurationDays = f.DurationDays
	}
	return &exp, nil
}
