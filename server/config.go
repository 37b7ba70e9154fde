package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
	"kitten-arena/server/llm"
)

type Config struct {
	Port        string
	DatabaseURL string
	AutoMigrate bool
	CatalogFile string
	DeckSeed    int64
	LogLevel    string
	LogJSON     bool
	Origins     []string
	AuditBuffer int

	SelfPlayGames    int
	SelfPlayPlayers  int
	SelfPlayPolicies []string
	LLMModel         string // model for the "llm" policy; empty uses OPENAI_MODEL / OPENROUTER_MODEL
	MaxSeconds       int
	ShutdownGrace    time.Duration
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadConfig reads the environment. Call godotenv.Load first so .env values are visible.
func loadConfig() (Config, error) {
	cfg := Config{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AutoMigrate:      asBool(os.Getenv("AUTO_MIGRATE")),
		CatalogFile:      strings.TrimSpace(os.Getenv("CATALOG_FILE")),
		LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogJSON:          asBool(os.Getenv("LOG_JSON")),
		Origins:          splitList(getenv("ALLOW_ORIGINS", "localhost:*")),
		AuditBuffer:      atoiDef(os.Getenv("AUDIT_BUFFER"), 1024),
		SelfPlayGames:    atoiDef(os.Getenv("SELFPLAY_GAMES"), 100),
		SelfPlayPlayers:  atoiDef(os.Getenv("SELFPLAY_PLAYERS"), 4),
		SelfPlayPolicies: splitList(getenv("SELFPLAY_POLICIES", "random,cautious")),
		LLMModel:         strings.TrimSpace(os.Getenv("LLM_MODEL")),
		MaxSeconds:       atoiDef(os.Getenv("MAX_SECONDS"), 0),
		ShutdownGrace:    time.Duration(atoiDef(os.Getenv("SHUTDOWN_GRACE_SECONDS"), 10)) * time.Second,
	}
	if s := strings.TrimSpace(os.Getenv("DECK_SEED")); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("DECK_SEED: %w", err)
		}
		cfg.DeckSeed = seed
	}
	if cfg.SelfPlayPlayers < 2 {
		return cfg, fmt.Errorf("SELFPLAY_PLAYERS must be at least 2, got %d", cfg.SelfPlayPlayers)
	}
	for _, p := range cfg.SelfPlayPolicies {
		if p == llm.PolicyName {
			// registered at startup once the provider is resolved
			continue
		}
		if _, err := agent.LookupPolicy(p); err != nil {
			return cfg, fmt.Errorf("SELFPLAY_POLICIES: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func (c Config) wantsLLM() bool {
	for _, p := range c.SelfPlayPolicies {
		if p == llm.PolicyName {
			return true
		}
	}
	return false
}

// catalog returns the configured deck, or the built-in one when no file is set.
func (c Config) catalog() (engine.Catalog, error) {
	if c.CatalogFile == "" {
		return engine.DefaultCatalog(), nil
	}
	return engine.LoadCatalog(c.CatalogFile)
}

// seedSource yields DeckSeed for every game when set; 0 lets each session seed itself from the clock.
func (c Config) seedSource() func() int64 {
	if c.DeckSeed == 0 {
		return nil
	}
	return func() int64 { return c.DeckSeed }
}

func newLogger(c Config) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.LogJSON {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
