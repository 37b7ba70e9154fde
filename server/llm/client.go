package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
)

// Client talks to an OpenAI-compatible chat/completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete sends one system+user exchange and returns the first choice's text.
// A nil schema asks for a plain JSON object.
func (c *Client) Complete(ctx context.Context, system, user string, schemaName string, schema map[string]any) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	if c.cfg.MaxTokens > 0 {
		payload["max_tokens"] = c.cfg.MaxTokens
	}
	if c.cfg.Temperature != nil {
		payload["temperature"] = *c.cfg.Temperature
	}
	if schema != nil {
		payload["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   coalesce(schemaName, "structured"),
				"strict": false,
				"schema": schema,
			},
		}
	} else {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.cfg.HeaderName, c.cfg.HeaderPrefix+c.cfg.APIKey)
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}
	for k, v := range c.cfg.ExtraHeaders {
		setHeaderPreserveCase(req.Header, k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s http %d: %s", c.cfg.Kind, resp.StatusCode, truncate(string(body), 800))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &cc); err != nil {
		return "", err
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return cc.Choices[0].Message.Content, nil
}

// ChooseAction asks for one action out of legal. The raw reply text is
// returned even on error so callers can log it.
func (c *Client) ChooseAction(ctx context.Context, system, user string, legal []string) (agent.ActionOut, string, error) {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        legal,
				"description": "One of the legal actions",
			},
			"card":    map[string]any{"type": "string", "description": "Card kind for play and favor_response"},
			"cards":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Combo cards, or the new order for alter"},
			"target":  map[string]any{"type": "string", "description": "Opponent id for favor, targeted attack and cat steals"},
			"index":   map[string]any{"type": "integer", "minimum": 1, "description": "1-based card position for cat_steal_resolve"},
			"comment": map[string]any{"type": "string", "description": "Short table talk, optional"},
		},
		"required": []string{"action"},
	}
	text, err := c.Complete(ctx, system, user, "kitten_action", schema)
	if err != nil {
		return agent.ActionOut{}, text, err
	}

	raw := strings.TrimSpace(text)
	if raw == "" {
		return agent.ActionOut{}, raw, errors.New("empty response")
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		cleaned := extractJSONObject(raw)
		if cleaned == "" {
			return agent.ActionOut{}, raw, err
		}
		if err2 := json.Unmarshal([]byte(cleaned), &parsed); err2 != nil {
			return agent.ActionOut{}, raw, err
		}
	}
	a, ok := coerceAction(parsed, legal)
	if !ok {
		return agent.ActionOut{}, raw, errors.New("no valid action in response")
	}
	return a, raw, nil
}

// coerceAction tolerates the usual model sloppiness: case, stray whitespace,
// numbers sent as strings.
func coerceAction(parsed map[string]any, legal []string) (agent.ActionOut, bool) {
	var a agent.ActionOut
	if v, ok := parsed["action"].(string); ok {
		a.Action = strings.ToLower(strings.TrimSpace(v))
	}
	valid := false
	for _, k := range legal {
		if k == a.Action {
			valid = true
			break
		}
	}
	if !valid {
		return agent.ActionOut{}, false
	}

	if v, ok := parsed["card"].(string); ok {
		a.Card = cardKind(v)
	}
	if vs, ok := parsed["cards"].([]any); ok {
		for _, v := range vs {
			if s, ok := v.(string); ok {
				a.Cards = append(a.Cards, cardKind(s))
			}
		}
	}
	if v, ok := parsed["target"].(string); ok {
		a.Target = strings.TrimSpace(v)
	}
	switch t := parsed["index"].(type) {
	case float64:
		a.Index = int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			a.Index = n
		}
	}
	if v, ok := parsed["comment"].(string); ok {
		a.Comment = truncate(strings.TrimSpace(v), 200)
	}
	return a, true
}

func cardKind(s string) engine.CardKind {
	return engine.CardKind(strings.ToUpper(strings.TrimSpace(s)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func coalesce(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
