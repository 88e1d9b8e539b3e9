// Package config reads the command configuration from the environment and
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// Store backends selectable with BOOKKEEPER_STORE.
const (
	StoreFile     = "file"
	StoreGCS      = "gcs"
	StorePostgres = "postgres"
)

type Config struct {
	DataDir      string
	DataFile     string
	SettingsFile string
	Store        string
	LogLevel     string
	LenientDates bool

	GCSBucket       string
	GCSObject       string
	CredentialsFile string

	DatabaseURI string

	BQProject string
	BQDataset string
	BQTable   string

	APIPort  string
	APIToken string
}

// Load reads .env files (missing files are fine) and then the environment.
func Load(files ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(files...)

	cfg := &Config{
		DataDir:         getEnvOrDefault("BOOKKEEPER_DATA_DIR", defaultDataDir()),
		DataFile:        getEnvOrDefault("BOOKKEEPER_DATA_FILE", "data.xml"),
		SettingsFile:    getEnvOrDefault("BOOKKEEPER_SETTINGS_FILE", "settings.xml"),
		Store:           strings.ToLower(getEnvOrDefault("BOOKKEEPER_STORE", StoreFile)),
		LogLevel:        getEnvOrDefault("BOOKKEEPER_LOG_LEVEL", "info"),
		LenientDates:    strings.EqualFold(os.Getenv("BOOKKEEPER_LENIENT_DATES"), "true"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		GCSObject:       getEnvOrDefault("GCS_OBJECT", "bookkeeper/data.xml"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		DatabaseURI:     os.Getenv("DATABASE_URI"),
		BQProject:       os.Getenv("BQ_PROJECT"),
		BQDataset:       getEnvOrDefault("BQ_DATASET", "finance"),
		BQTable:         getEnvOrDefault("BQ_TABLE", "transactions"),
		APIPort:         getEnvOrDefault("API_PORT", "8080"),
		APIToken:        os.Getenv("API_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected store has what it needs.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile:
	case StoreGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("config: BOOKKEEPER_STORE=gcs requires GCS_BUCKET")
		}
	case StorePostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("config: BOOKKEEPER_STORE=postgres requires DATABASE_URI")
		}
	default:
		return fmt.Errorf("config: unknown BOOKKEEPER_STORE %q", c.Store)
	}
	return nil
}

// ClientOptions returns the Google Cloud client options for the
// configured credentials file, if any.
func (c *Config) ClientOptions() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "GhostApps", "BoekhoudingApp")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
