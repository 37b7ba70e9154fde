package llm

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type providerKind int

const (
	providerOpenAI providerKind = iota
	providerOpenRouter
)

func (k providerKind) String() string {
	if k == providerOpenRouter {
		return "openrouter"
	}
	return "openai"
}

// Config describes one chat/completions endpoint and the knobs sent with every request.
type Config struct {
	Kind         providerKind
	APIKey       string
	Model        string
	BaseURL      string
	HeaderName   string
	HeaderPrefix string
	Organization string
	ExtraHeaders map[string]string

	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// Configured reports whether enough environment is present to build a client.
func Configured() bool {
	return firstNonEmpty(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENROUTER_API_KEY")) != ""
}

// ResolveConfig reads the provider setup from the environment. model overrides
// OPENAI_MODEL / OPENROUTER_MODEL when non-empty.
func ResolveConfig(model string) (Config, error) {
	cfg := Config{
		Model:        strings.TrimSpace(model),
		ExtraHeaders: map[string]string{},
		Timeout:      45 * time.Second,
	}

	if preferOpenRouterEnv() {
		cfg.Kind = providerOpenRouter
	}

	manualOverride := false
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))) {
	case "openrouter":
		cfg.Kind = providerOpenRouter
		manualOverride = true
	case "openai":
		cfg.Kind = providerOpenAI
		manualOverride = true
	}

	if cfg.Model == "" {
		if cfg.Kind == providerOpenRouter {
			cfg.Model = strings.TrimSpace(os.Getenv("OPENROUTER_MODEL"))
		}
		if cfg.Model == "" {
			cfg.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
		}
	}
	if cfg.Model == "" {
		return Config{}, errors.New("model missing: set OPENAI_MODEL/OPENROUTER_MODEL or LLM_MODEL")
	}
	if !manualOverride && strings.Contains(strings.ToLower(cfg.Model), "openrouter/") {
		cfg.Kind = providerOpenRouter
	}

	base := firstNonEmpty(
		os.Getenv("OPENAI_API_BASE"),
		os.Getenv("OPENAI_BASE_URL"),
		os.Getenv("OPENROUTER_API_BASE"),
		os.Getenv("OPENROUTER_BASE_URL"),
	)
	if base == "" {
		if cfg.Kind == providerOpenRouter {
			base = "https://openrouter.ai/api/v1"
		} else {
			base = "https://api.openai.com/v1"
		}
	}
	cfg.BaseURL = strings.TrimRight(base, "/")
	if !manualOverride && strings.Contains(strings.ToLower(cfg.BaseURL), "openrouter") {
		cfg.Kind = providerOpenRouter
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	openRouterKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	if cfg.Kind == providerOpenRouter {
		cfg.APIKey = firstNonEmpty(openRouterKey, openAIKey)
	} else {
		cfg.APIKey = firstNonEmpty(openAIKey, openRouterKey)
	}
	if cfg.APIKey == "" {
		return Config{}, errors.New("API key missing: set OPENAI_API_KEY or OPENROUTER_API_KEY")
	}

	cfg.HeaderName = firstNonEmpty(os.Getenv("OPENAI_API_KEY_HEADER"), os.Getenv("OPENROUTER_API_KEY_HEADER"), "Authorization")
	prefix := os.Getenv("OPENAI_API_KEY_PREFIX")
	if prefix == "" {
		prefix = os.Getenv("OPENROUTER_API_KEY_PREFIX")
	}
	if cfg.HeaderName == "Authorization" && strings.TrimSpace(prefix) == "" {
		prefix = "Bearer "
	}
	cfg.HeaderPrefix = prefix
	cfg.Organization = strings.TrimSpace(os.Getenv("OPENAI_ORG"))

	if cfg.Kind == providerOpenRouter {
		if v := strings.TrimSpace(os.Getenv("OPENROUTER_SITE_URL")); v != "" {
			cfg.ExtraHeaders["HTTP-Referer"] = v
			cfg.ExtraHeaders["Referer"] = v
		}
		cfg.ExtraHeaders["X-Title"] = firstNonEmpty(os.Getenv("OPENROUTER_TITLE"), "Kitten Arena")
	}

	openRouter := cfg.Kind == providerOpenRouter
	if v := envWithFallback(openRouter, "OPENAI_TEMPERATURE", "OPENROUTER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	if v := envWithFallback(openRouter, "OPENAI_MAX_OUTPUT_TOKENS", "OPENROUTER_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	return cfg, nil
}

// setHeaderPreserveCase keeps non-canonical spellings such as HTTP-Referer,
// which some gateways match case-sensitively.
func setHeaderPreserveCase(h http.Header, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if http.CanonicalHeaderKey(key) == key {
		h.Set(key, value)
		return
	}
	h[key] = []string{value}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func envWithFallback(preferOpenRouter bool, openAIKey, openRouterKey string) string {
	keys := []string{openAIKey, openRouterKey}
	if preferOpenRouter {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func preferOpenRouterEnv() bool {
	if strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")) != "" && strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) == "" {
		return true
	}
	if strings.TrimSpace(os.Getenv("OPENROUTER_MODEL")) != "" && strings.TrimSpace(os.Getenv("OPENAI_MODEL")) == "" {
		return true
	}
	if firstNonEmpty(os.Getenv("OPENROUTER_API_BASE"), os.Getenv("OPENROUTER_BASE_URL")) != "" {
		return true
	}
	base := strings.ToLower(firstNonEmpty(os.Getenv("OPENAI_API_BASE"), os.Getenv("OPENAI_BASE_URL")))
	return strings.Contains(base, "openrouter")
}
