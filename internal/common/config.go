package common

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Extractor ExtractorConfig
	Ledger    LedgerConfig
	Raster    RasterConfig
}

// ServerConfig holds HTTP-serving configuration.
type ServerConfig struct {
	HTTPAddr string
}

// ExtractorConfig holds the vision extraction service configuration.
type ExtractorConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// LedgerConfig holds the external ledger API configuration. These fields
// may change at runtime through the admin surface; always read them
// through the Store.
type LedgerConfig struct {
	BaseURL     string
	Identifier  string
	Secret      string
	DossierCode string
	FolderID    int
	Timeout     time.Duration
}

// RasterConfig holds the page-to-image converter configuration.
type RasterConfig struct {
	Tool string // pdftoppm | magick
	DPI  int
}

// LoadConfig loads configuration from environment variables, reading a
// .env file first when one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Extractor: ExtractorConfig{
			BaseURL:     getEnv("EXTRACTOR_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("EXTRACTOR_API_KEY", ""),
			Model:       getEnv("EXTRACTOR_MODEL", "gpt-4o-mini"),
			Temperature: 0.0,
			Timeout:     getEnvAsDuration("EXTRACTOR_TIMEOUT", 45*time.Second),
		},
		Ledger: LedgerConfig{
			BaseURL:     getEnv("LEDGER_BASE_URL", ""),
			Identifier:  getEnv("LEDGER_IDENTIFIER", ""),
			Secret:      getEnv("LEDGER_SECRET", ""),
			DossierCode: getEnv("LEDGER_DOSSIER_CODE", ""),
			FolderID:    getEnvAsInt("LEDGER_FOLDER_ID", 0),
			Timeout:     getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Raster: RasterConfig{
			Tool: getEnv("RASTER_TOOL", "pdftoppm"),
			DPI:  getEnvAsInt("RASTER_DPI", 200),
		},
	}
}

// Require checks the presence of every field a ledger call needs. It runs
// at the point of use, not at startup, so a half-configured process can
// still serve the extraction side.
func (c LedgerConfig) Require() error {
	switch {
	case c.BaseURL == "":
		return NewValidationError("ledger.base_url", "missing")
	case c.Identifier == "":
		return NewValidationError("ledger.identifier", "missing")
	case c.Secret == "":
		return NewValidationError("ledger.secret", "missing")
	case c.DossierCode == "":
		return NewValidationError("ledger.dossier_code", "missing")
	}
	return nil
}

// Require checks the fields an extractor call needs.
func (c ExtractorConfig) Require() error {
	switch {
	case c.BaseURL == "":
		return NewValidationError("extractor.base_url", "missing")
	case c.APIKey == "":
		return NewValidationError("extractor.api_key", "missing")
	}
	return nil
}

// Store guards the runtime-mutable ledger configuration. Updating it
// bumps a generation counter and fires the registered hooks, so holders
// of cached session state can invalidate synchronously.
type Store struct {
	mu     sync.RWMutex
	ledger LedgerConfig
	gen    uint64
	hooks  []func()
}

func NewStore(initial LedgerConfig) *Store {
	return &Store{ledger: initial, gen: 1}
}

// Ledger returns the current ledger configuration and its generation.
func (s *Store) Ledger() (LedgerConfig, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger, s.gen
}

// Update replaces the ledger configuration. Hooks run before Update
// returns, so a credential change can never race a stale cached token.
func (s *Store) Update(c LedgerConfig) {
	s.mu.Lock()
	s.ledger = c
	s.gen++
	hooks := make([]func(), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}

// OnUpdate registers a hook fired after every configuration update.
func (s *Store) OnUpdate(h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
