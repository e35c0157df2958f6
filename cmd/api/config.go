package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/transitguard/transitguard-kg/engine/domain"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	CSVPath    string
	CORSOrigin string

	Neo4jURI  string
	Neo4jUser string
	Neo4jPass string

	OllamaURL   string
	OllamaModel string

	TopK              int
	IntermediateSteps bool
	ReadOnly          bool
	RateLimitRPS      float64

	NATSURL    string
	NATSPrefix string

	OTLPEndpoint string
	LogLevel     slog.Level
}

func loadConfig() (Config, error) {
	cfg := Config{
		Port:         envOr("PORT", "8000"),
		CSVPath:      envOr("SAFETY_INDEX_CSV", "data/safety_index.csv"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		Neo4jURI:     envOr("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASSWORD", "password"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  envOr("OLLAMA_MODEL", "llama2"),
		NATSURL:      envOr("NATS_URL", ""),
		NATSPrefix:   envOr("NATS_SUBJECT_PREFIX", "transitguard"),
		OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var err error
	if cfg.TopK, err = envInt("CHAIN_TOP_K", 10); err != nil {
		return cfg, err
	}
	if cfg.IntermediateSteps, err = envBool("CHAIN_RETURN_INTERMEDIATE_STEPS", false); err != nil {
		return cfg, err
	}
	if cfg.ReadOnly, err = envBool("CYPHER_READ_ONLY", true); err != nil {
		return cfg, err
	}
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", 0); err != nil {
		return cfg, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		return cfg, domain.E(domain.KindConfig, "config: LOG_LEVEL", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.E(domain.KindConfig, "config: "+key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.E(domain.KindConfig, "config: "+key, err)
	}
	return b, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, domain.E(domain.KindConfig, "config: "+key, err)
	}
	return f, nil
}
