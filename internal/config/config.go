package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone     = "Europe/London"
	configPathEnv       = "EVENT_SCANNER_CONFIG"
	dotenvPathEnv       = "EVENT_SCANNER_DOTENV"
	logLevelEnv         = "LOG_LEVEL"
	geocodingAPIKeyEnv  = "GEOCODING_API_KEY"
	classifierKeysEnv   = "CLASSIFIER_API_KEYS"
	classifierModelEnv  = "CLASSIFIER_MODEL"
	warehouseDriverEnv  = "WAREHOUSE_DRIVER"
	warehouseDSNEnv     = "WAREHOUSE_DSN"
	metricsAddrEnv      = "METRICS_ADDR"
	defaultDotenvPath   = ".env"
	artistPlaceholder   = "{artist}"
	defaultGenrePrompt  = "quelle est le genre musicale de {artist} ? Donne moi juste le genre musical sans phrase (exemple : Blues, Rap...). Si le genre musical est inconnue mettre Inconnu."
	defaultSystemPrompt = "Tu réponds uniquement par un genre musical."
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_3) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/35.0.1916.47 Safari/537.36"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Source     SourceConfig     `yaml:"source"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines when and over which horizon the pipeline runs.
type SchedulerConfig struct {
	Interval    time.Duration  `yaml:"interval"`
	HorizonDays int            `yaml:"horizonDays"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceConfig describes the listing API and crawl pacing.
type SourceConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	UserAgent    string        `yaml:"userAgent"`
	CityID       string        `yaml:"cityId"`
	Longitude    float64       `yaml:"longitude"`
	Latitude     float64       `yaml:"latitude"`
	GenreQuery   string        `yaml:"genreQuery"`
	RequestDelay time.Duration `yaml:"requestDelay"`
	MaxPages     int           `yaml:"maxPages"`
	Timeout      time.Duration `yaml:"timeout"`
}

// GeocodingConfig wires the OpenRouteService-compatible geocoder.
type GeocodingConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Endpoint         string        `yaml:"endpoint"`
	APIKey           string        `yaml:"apiKey"`
	Timeout          time.Duration `yaml:"timeout"`
	RequestDelay     time.Duration `yaml:"requestDelay"`
	RateLimitBackoff time.Duration `yaml:"rateLimitBackoff"`
}

// ClassifierConfig defines the chat-completions endpoint and the credential pool.
type ClassifierConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	APIKeys        []string      `yaml:"apiKeys"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	PromptTemplate string        `yaml:"promptTemplate"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	JitterMin      time.Duration `yaml:"jitterMin"`
	JitterMax      time.Duration `yaml:"jitterMax"`
}

// Prompt renders the classification prompt for one artist.
func (c ClassifierConfig) Prompt(artist string) string {
	tmpl := c.PromptTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultGenrePrompt
	}
	if !strings.Contains(tmpl, artistPlaceholder) {
		return tmpl + " " + artist
	}
	return strings.ReplaceAll(tmpl, artistPlaceholder, artist)
}

// WarehouseConfig selects the SQL driver (sqlite3 or pgx) and its DSN.
type WarehouseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An empty path falls back to EVENT_SCANNER_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	loadDotenv()
	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports settings that make a pipeline run impossible.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		errs = append(errs, errors.New("source.baseUrl is required"))
	}
	if c.Source.MaxPages < 0 {
		errs = append(errs, errors.New("source.maxPages must not be negative"))
	}
	if c.Geocoding.Enabled && c.Geocoding.Endpoint == "" {
		errs = append(errs, errors.New("geocoding.endpoint is required when geocoding is enabled"))
	}
	if c.Classifier.Enabled && c.Classifier.Endpoint == "" {
		errs = append(errs, errors.New("classifier.endpoint is required when classification is enabled"))
	}
	if c.Classifier.MaxAttempts < 1 {
		errs = append(errs, errors.New("classifier.maxAttempts must be at least 1"))
	}
	if c.Classifier.JitterMax < c.Classifier.JitterMin {
		errs = append(errs, errors.New("classifier.jitterMax must not be below jitterMin"))
	}
	switch c.Warehouse.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("warehouse.driver %q is not supported", c.Warehouse.Driver))
	}
	return errors.Join(errs...)
}

func loadDotenv() {
	path := os.Getenv(dotenvPathEnv)
	if path == "" {
		path = defaultDotenvPath
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(geocodingAPIKeyEnv); v != "" {
		c.Geocoding.APIKey = v
	}

	if v := os.Getenv(classifierKeysEnv); v != "" {
		c.Classifier.APIKeys = splitKeys(v)
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}

	if v := os.Getenv(warehouseDriverEnv); v != "" {
		c.Warehouse.Driver = v
	}

	if v := os.Getenv(warehouseDSNEnv); v != "" {
		c.Warehouse.DSN = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func splitKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			Interval:    24 * time.Hour,
			HorizonDays: 7,
			Timezone:    defaultTimezone,
		},
		Source: SourceConfig{
			BaseURL:      "https://www.bandsintown.com/choose-dates/fetch-next/upcomingEvents",
			UserAgent:    defaultUserAgent,
			CityID:       "2643743",
			Longitude:    -0.12574,
			Latitude:     51.50853,
			GenreQuery:   "all-genres",
			RequestDelay: 5 * time.Second,
			MaxPages:     200,
			Timeout:      20 * time.Second,
		},
		Geocoding: GeocodingConfig{
			Enabled:          true,
			Endpoint:         "https://api.openrouteservice.org/geocode/search",
			Timeout:          15 * time.Second,
			RequestDelay:     time.Second,
			RateLimitBackoff: 30 * time.Second,
		},
		Classifier: ClassifierConfig{
			Enabled:        true,
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
			Model:          "gemini-1.5-flash",
			SystemPrompt:   defaultSystemPrompt,
			PromptTemplate: defaultGenrePrompt,
			Timeout:        20 * time.Second,
			MaxAttempts:    3,
			RetryDelay:     3 * time.Second,
			JitterMin:      time.Second,
			JitterMax:      3 * time.Second,
		},
		Warehouse: WarehouseConfig{Driver: "sqlite3", DSN: "events.db"},
	}
}
