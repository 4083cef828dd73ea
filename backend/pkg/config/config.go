package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "brainport/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	// Neo4j
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`

	// Export
	ExportDir     string `yaml:"export_dir"`     // Directory holding the per-file JSON exports
	SourcePattern string `yaml:"source_pattern"` // doublestar pattern, %s is the logical source name
	StreamBuffer  int    `yaml:"stream_buffer"`  // Channel capacity between pipeline steps

	// PlanPath, when set, records the write plan into a SQLite file instead of Neo4j
	PlanPath string `yaml:"plan_path"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Port:          "8080",
		Env:           "development",
		Neo4jURI:      "bolt://localhost:7687",
		Neo4jUser:     "neo4j",
		Neo4jPassword: "password",
		Neo4jDatabase: "neo4j",
		ExportDir:     ".",
		SourcePattern: "**/%s.json",
		StreamBuffer:  64,
	}
}

// Load reads configuration from an optional YAML file (BRAINPORT_CONFIG)
// and then from environment variables, which win.
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("BRAINPORT_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.Neo4jURI = getEnv("NEO4J_URI", cfg.Neo4jURI)
	cfg.Neo4jUser = getEnv("NEO4J_USER", cfg.Neo4jUser)
	cfg.Neo4jPassword = getEnv("NEO4J_PASSWORD", cfg.Neo4jPassword)
	cfg.Neo4jDatabase = getEnv("NEO4J_DATABASE", cfg.Neo4jDatabase)
	cfg.ExportDir = getEnv("EXPORT_DIR", cfg.ExportDir)
	cfg.SourcePattern = getEnv("SOURCE_PATTERN", cfg.SourcePattern)
	cfg.StreamBuffer = getEnvInt("STREAM_BUFFER", cfg.StreamBuffer)
	cfg.PlanPath = getEnv("PLAN_PATH", cfg.PlanPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.ExportDir == "" {
		return apperrors.NewConfigMissingRequired("EXPORT_DIR")
	}
	if c.SourcePattern == "" {
		return apperrors.NewConfigMissingRequired("SOURCE_PATTERN")
	}
	if c.StreamBuffer < 1 {
		return apperrors.NewConfigValidationFailed("STREAM_BUFFER", "must be at least 1")
	}
	// A plan file replaces the store, so Neo4j settings are only needed without one
	if c.PlanPath != "" {
		return nil
	}
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
