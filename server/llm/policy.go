package llm

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync/atomic"

	"go.uber.org/zap"

	"kitten-arena/server/agent"
)

// PolicyName is the self-play name the model-backed policy registers under.
const PolicyName = "llm"

const systemPrompt = `You are a player in Exploding Kittens. You receive your observation as JSON and reply with one JSON object.

Rules you need:
- On your turn you may play any number of cards, then end the turn by drawing. "to_draw" is how many draws you still owe.
- Drawing EXPLODING_KITTEN eliminates you unless you hold DEFUSE, which puts the kitten back into the deck.
- SKIP ends one draw obligation without drawing. ATTACK ends your turn and gives the next player your obligation plus 2. TARGETED_ATTACK does the same to a chosen opponent.
- SEE_THE_FUTURE shows the top three cards. ALTER_THE_FUTURE lets you reorder them. SHUFFLE shuffles the deck. DRAW_FROM_BOTTOM draws the bottom card.
- FAVOR makes an opponent give you a card of their choice.
- Two matching cat cards steal a random card: you then pick a position 1..n in a shuffled copy of the target's hand. Three matching cat cards steal a DEFUSE from the target if they hold one, otherwise nothing. CAT_FERAL matches any cat.
- NOPE and DEFUSE cannot be played directly.

Reply format: {"action": one of legal_actions, "card": ..., "cards": [...], "target": ..., "index": ..., "comment": ...}
Only fill the fields the action needs. When "pending" is set, choose from pending.options.`

// Policy asks a model for each move and falls back to another policy when the
// call fails or the reply is not legal.
type Policy struct {
	client   *Client
	fallback agent.Policy
	lg       *zap.Logger

	calls     atomic.Int64
	fallbacks atomic.Int64
}

func NewPolicy(c *Client, fallback agent.Policy, lg *zap.Logger) *Policy {
	if fallback == nil {
		fallback = agent.RandomPolicy
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Policy{client: c, fallback: fallback, lg: lg.Named("llm")}
}

// Choose has the agent.Policy signature.
func (p *Policy) Choose(o agent.Observation, r *rand.Rand) (agent.ActionOut, bool) {
	if len(o.Legal) == 0 {
		return agent.ActionOut{}, false
	}
	p.calls.Add(1)

	user, err := json.Marshal(o)
	if err != nil {
		return p.fall(o, r, "", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.client.cfg.Timeout)
	defer cancel()
	a, raw, err := p.client.ChooseAction(ctx, systemPrompt, string(user), o.Legal)
	if err == nil {
		err = agent.Validate(o, a)
	}
	if err != nil {
		return p.fall(o, r, raw, err)
	}
	if a.Comment != "" {
		p.lg.Debug("table talk", zap.String("player", o.PlayerID), zap.String("comment", a.Comment))
	}
	return a, true
}

func (p *Policy) fall(o agent.Observation, r *rand.Rand, raw string, err error) (agent.ActionOut, bool) {
	p.fallbacks.Add(1)
	p.lg.Warn("model move rejected, using fallback",
		zap.String("model", p.client.Model()), zap.String("player", o.PlayerID),
		zap.String("raw", truncate(raw, 300)), zap.Error(err))
	return p.fallback(o, r)
}

// Stats returns how many moves were requested and how many fell back.
func (p *Policy) Stats() (calls, fallbacks int64) {
	return p.calls.Load(), p.fallbacks.Load()
}

// Register resolves the provider from the environment and makes the policy
// available to agent.LookupPolicy.
func Register(model string, lg *zap.Logger) (*Policy, error) {
	cfg, err := ResolveConfig(model)
	if err != nil {
		return nil, err
	}
	p := NewPolicy(NewClient(cfg), agent.RandomPolicy, lg)
	agent.RegisterPolicy(PolicyName, p.Choose)
	p.lg.Info("model policy registered", zap.String("provider", cfg.Kind.String()), zap.String("model", cfg.Model))
	return p, nil
}
