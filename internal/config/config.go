package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	DefaultEnvFile = ".env"

	defaultBaseDir     = "."
	defaultPgfRoot     = "/versuchung"
	defaultDatarefRoot = "/versuchung"
	defaultPrecision   = -1
)

// Config holds settings read from the environment. Command line flags
// take precedence over it.
type Config struct {
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	BaseDir     string
	PgfRoot     string
	DatarefRoot string
	Precision   int
}

func Load() (Config, error) {
	cfg := Config{
		Neo4jURI:      os.Getenv("NEO4J_URI"),
		Neo4jUser:     os.Getenv("NEO4J_USER"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),

		BaseDir:     getEnv("TEXPORT_BASE_DIR", defaultBaseDir),
		PgfRoot:     getEnv("TEXPORT_PGF_ROOT", defaultPgfRoot),
		DatarefRoot: getEnv("TEXPORT_DATAREF_ROOT", defaultDatarefRoot),
		Precision:   defaultPrecision,
	}

	if v := os.Getenv("TEXPORT_PRECISION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("TEXPORT_PRECISION: %w", err)
		}
		cfg.Precision = n
	}
	return cfg, nil
}

// Neo4jEnabled reports whether a neo4j connection is configured.
func (c Config) Neo4jEnabled() bool {
	return c.Neo4jURI != ""
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
