package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Fez API modes.
const (
	ModeSandbox    = "sandbox"
	ModeProduction = "production"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Fez
	FezEnabled               bool          `envconfig:"FEZ_ENABLED" default:"true"`
	FezMode                  string        `envconfig:"FEZ_MODE" default:"sandbox"`
	FezSandboxURL            string        `envconfig:"FEZ_SANDBOX_URL" default:"https://apisandbox.fezdelivery.co/"`
	FezProductionURL         string        `envconfig:"FEZ_PRODUCTION_URL" default:"https://api.fezdelivery.co/"`
	FezUserID                string        `envconfig:"FEZ_USER_ID"`
	FezPassword              string        `envconfig:"FEZ_PASSWORD"`
	FezUseMock               bool          `envconfig:"FEZ_USE_MOCK" default:"false"`
	FezTimeout               time.Duration `envconfig:"FEZ_TIMEOUT" default:"30s"`
	FezRequestsPerSecond     float64       `envconfig:"FEZ_REQUESTS_PER_SECOND" default:"5"`
	FezPickupState           string        `envconfig:"FEZ_PICKUP_STATE" default:"LA"`
	FezHomeCountry           string        `envconfig:"FEZ_HOME_COUNTRY" default:"NG"`
	FezTrigger               string        `envconfig:"FEZ_TRIGGER" default:"created"`
	FezCODMethods            []string      `envconfig:"FEZ_COD_METHODS" default:"cod"`
	FezUniqueIDPrefix        string        `envconfig:"FEZ_UNIQUE_ID_PREFIX" default:"fez-wc"`
	FezDefaultItemWeight     float64       `envconfig:"FEZ_DEFAULT_ITEM_WEIGHT" default:"0.1"`
	FezSandboxTrackingURL    string        `envconfig:"FEZ_SANDBOX_TRACKING_URL" default:"https://d2pqv4mo6dthx7.cloudfront.net/track-delivery/"`
	FezProductionTrackingURL string        `envconfig:"FEZ_PRODUCTION_TRACKING_URL" default:"https://web.fezdelivery.co/track-delivery/"`

	// Sessions
	SessionStore string        `envconfig:"SESSION_STORE" default:"memory"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"48h"`

	// Orders
	OrderStore        string `envconfig:"ORDER_STORE" default:"memory"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	WooCommerceURL    string `envconfig:"WOOCOMMERCE_URL"`
	WooCommerceKey    string `envconfig:"WOOCOMMERCE_KEY"`
	WooCommerceSecret string `envconfig:"WOOCOMMERCE_SECRET"`

	// Labels
	LabelTempDir    string `envconfig:"LABEL_TEMP_DIR"`
	LabelBarcodeURL string `envconfig:"LABEL_BARCODE_URL" default:"https://barcode.tec-it.com/barcode.ashx?data=%s&code=Code128"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"fez-delivery"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.LabelTempDir == "" {
		cfg.LabelTempDir = filepath.Join(os.TempDir(), "fez-delivery", "label")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the enumerated settings and the settings each backend needs.
func (c *Config) Validate() error {
	switch c.FezMode {
	case ModeSandbox, ModeProduction:
	default:
		return fmt.Errorf("FEZ_MODE must be %q or %q, got %q", ModeSandbox, ModeProduction, c.FezMode)
	}

	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.OrderStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ORDER_STORE=postgres")
		}
	case "woocommerce":
		if c.WooCommerceURL == "" || c.WooCommerceKey == "" || c.WooCommerceSecret == "" {
			return fmt.Errorf("WOOCOMMERCE_URL, WOOCOMMERCE_KEY and WOOCOMMERCE_SECRET are required when ORDER_STORE=woocommerce")
		}
	default:
		return fmt.Errorf("unknown ORDER_STORE %q", c.OrderStore)
	}

	if !c.FezUseMock && c.FezEnabled && (c.FezUserID == "" || c.FezPassword == "") {
		return fmt.Errorf("FEZ_USER_ID and FEZ_PASSWORD are required unless FEZ_USE_MOCK is set")
	}
	return nil
}

// APIBaseURL returns the Fez API base URL for the configured mode.
func (c *Config) APIBaseURL() string {
	if strings.EqualFold(c.FezMode, ModeProduction) {
		return c.FezProductionURL
	}
	return c.FezSandboxURL
}

// TrackingBaseURL returns the Fez tracking page base URL for the configured mode.
func (c *Config) TrackingBaseURL() string {
	if strings.EqualFold(c.FezMode, ModeProduction) {
		return c.FezProductionTrackingURL
	}
	return c.FezSandboxTrackingURL
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("fez.enabled", c.FezEnabled),
		attribute.String("fez.mode", c.FezMode),
		attribute.Bool("fez.use_mock", c.FezUseMock),
		attribute.String("session.store", c.SessionStore),
		attribute.String("order.store", c.OrderStore),
	}
}
