package llm

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
)

// fakeModel answers every chat/completions call with reply and records the last request.
func fakeModel(t *testing.T, status int, reply string) (*Client, *map[string]any, *http.Header) {
	t.Helper()
	var body map[string]any
	var hdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		hdr = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(reply))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		Model:        "test-model",
		BaseURL:      srv.URL,
		APIKey:       "k",
		HeaderName:   "Authorization",
		HeaderPrefix: "Bearer ",
		ExtraHeaders: map[string]string{"HTTP-Referer": "https://example.com"},
		Timeout:      5 * time.Second,
	})
	return c, &body, &hdr
}

func TestChooseActionSendsSchema(t *testing.T) {
	c, body, hdr := fakeModel(t, http.StatusOK, `{"action":"PLAY","card":"skip","comment":"not today"}`)
	a, raw, err := c.ChooseAction(context.Background(), "sys", "{}", []string{"draw", "play"})
	require.NoError(t, err)
	assert.Equal(t, agent.ActionOut{Action: "play", Card: engine.Skip, Comment: "not today"}, a)
	assert.Contains(t, raw, "not today")

	assert.Equal(t, "Bearer k", hdr.Get("Authorization"))
	assert.Equal(t, "https://example.com", hdr.Get("HTTP-Referer"))
	assert.Equal(t, "test-model", (*body)["model"])
	rf := (*body)["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	schema := rf["json_schema"].(map[string]any)["schema"].(map[string]any)
	enum := schema["properties"].(map[string]any)["action"].(map[string]any)["enum"]
	assert.Equal(t, []any{"draw", "play"}, enum)
}

func TestChooseActionCoercesSloppyReplies(t *testing.T) {
	c, _, _ := fakeModel(t, http.StatusOK, "Sure! ```{\"action\": \"cat_steal_resolve\", \"index\": \"2\"}```")
	a, _, err := c.ChooseAction(context.Background(), "sys", "{}", []string{"cat_steal_resolve"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Index)

	c, _, _ = fakeModel(t, http.StatusOK, `{"action":"combo","cards":["cat_taco"," CAT_FERAL "]}`)
	a, _, err = c.ChooseAction(context.Background(), "sys", "{}", []string{"draw", "combo"})
	require.NoError(t, err)
	assert.Equal(t, []engine.CardKind{engine.CatTaco, engine.CatFeral}, a.Cards)
}

func TestChooseActionRejects(t *testing.T) {
	c, _, _ := fakeModel(t, http.StatusOK, `{"action":"nope"}`)
	_, _, err := c.ChooseAction(context.Background(), "sys", "{}", []string{"draw"})
	assert.Error(t, err)

	c, _, _ = fakeModel(t, http.StatusOK, `no json here`)
	_, raw, err := c.ChooseAction(context.Background(), "sys", "{}", []string{"draw"})
	assert.Error(t, err)
	assert.Equal(t, "no json here", raw)

	c, _, _ = fakeModel(t, http.StatusTooManyRequests, `rate limited`)
	_, _, err = c.ChooseAction(context.Background(), "sys", "{}", []string{"draw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPolicyFallsBackOnIllegalMove(t *testing.T) {
	o := agent.Observation{
		PlayerID: "a",
		Hand:     []string{"SKIP", "CAT_TACO"},
		Playable: []engine.CardKind{engine.Skip},
		Legal:    []string{agent.ActDraw, agent.ActPlay},
	}
	fallback := func(agent.Observation, *rand.Rand) (agent.ActionOut, bool) {
		return agent.ActionOut{Action: agent.ActDraw}, true
	}

	c, _, _ := fakeModel(t, http.StatusOK, `{"action":"play","card":"SKIP"}`)
	p := NewPolicy(c, fallback, zap.NewNop())
	a, ok := p.Choose(o, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, agent.ActionOut{Action: agent.ActPlay, Card: engine.Skip}, a)

	c, _, _ = fakeModel(t, http.StatusOK, `{"action":"play","card":"CAT_TACO"}`)
	p = NewPolicy(c, fallback, zap.NewNop())
	a, ok = p.Choose(o, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, agent.ActDraw, a.Action)
	calls, fallbacks := p.Stats()
	assert.Equal(t, int64(1), calls)
	assert.Equal(t, int64(1), fallbacks)

	_, ok = p.Choose(agent.Observation{}, nil)
	assert.False(t, ok, "nothing legal, nothing to ask")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdefgh", 2))
}

func TestSystemPromptStealRules(t *testing.T) {
	assert.Contains(t, systemPrompt, "steal a DEFUSE")
	assert.NotContains(t, systemPrompt, "named card")
}
