package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// validate se comparte entre la config y las definiciones de experimentos.
var validate = validator.New()

// Config contiene la configuración completa de listinglab.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig contiene los umbrales del motor de decisión.
type EngineConfig struct {
	MinimumSampleSize       int64   `yaml:"minimum_sample_size" validate:"gte=1"`
	MinimumConversionEvents int64   `yaml:"minimum_conversion_events" validate:"gte=1"`
	MaximumDurationDays     int     `yaml:"maximum_duration_days" validate:"gte=1,lte=365"`
	EarlyStoppingThreshold  float64 `yaml:"early_stopping_threshold" validate:"gt=0,lt=1"`
	SimulateMetrics         bool    `yaml:"simulate_metrics"` // solo fuera de producción
}

// APIConfig apunta a las APIs del marketplace.
type APIConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Token   string `yaml:"token"` // normalmente vía LISTINGLAB_API_TOKEN
}

// StorageConfig controla dónde se persisten los experimentos.
type StorageConfig struct {
	DSN string `yaml:"dsn" validate:"required"` // ruta al archivo SQLite, o ":memory:"
}

// MonitorConfig controla el loop de evaluación periódica.
type MonitorConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" validate:"gte=1"`
	Workers         int `yaml:"workers" validate:"gte=0,lte=64"`
}

// LogConfig controla el formato y el nivel de log.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Load carga la configuración desde el archivo YAML (se omite si path está
// vacío) tras cargar .env si existe. Las variables de entorno sobreescriben
// los valores del archivo, los defaults rellenan el resto y se valida.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate comprueba los struct tags de cada sección.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MonitorInterval devuelve el intervalo del monitor como time.Duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si existen.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LISTINGLAB_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LISTINGLAB_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("LISTINGLAB_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LISTINGLAB_SIMULATE_METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LISTINGLAB_SIMULATE_METRICS: %w", err)
		}
		cfg.Engine.SimulateMetrics = b
	}
	return nil
}

// setDefaults rellena los valores vacíos con los defaults de producción.
func setDefaults(cfg *Config) {
	if cfg.Engine.MinimumSampleSize <= 0 {
		cfg.Engine.MinimumSampleSize = 1000
	}
	if cfg.Engine.MinimumConversionEvents <= 0 {
		cfg.Engine.MinimumConversionEvents = 50
	}
	if cfg.Engine.MaximumDurationDays <= 0 {
		cfg.Engine.MaximumDurationDays = 90
	}
	if cfg.Engine.EarlyStoppingThreshold <= 0 {
		cfg.Engine.EarlyStoppingThreshold = 0.95
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://sellingpartnerapi-na.amazon.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "listinglab.db"
	}
	if cfg.Monitor.IntervalMinutes <= 0 {
		cfg.Monitor.IntervalMinutes = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
