package agent

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"kitten-arena/server/engine"
)

// Policy picks the next action for the player an observation belongs to.
// ok is false when the player has nothing to do.
type Policy func(o Observation, r *rand.Rand) (a ActionOut, ok bool)

var (
	policyMu sync.RWMutex
	policies = map[string]Policy{
		"random":   RandomPolicy,
		"cautious": CautiousPolicy,
	}
)

// RegisterPolicy makes an external policy available to LookupPolicy.
// Registering an existing name replaces it.
func RegisterPolicy(name string, p Policy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	policies[name] = p
}

// LookupPolicy returns a registered policy by name.
func LookupPolicy(name string) (Policy, error) {
	policyMu.RLock()
	p, ok := policies[name]
	policyMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown policy %q (have %v)", name, PolicyNames())
	}
	return p, nil
}

func PolicyNames() []string {
	policyMu.RLock()
	defer policyMu.RUnlock()
	out := make([]string, 0, len(policies))
	for k := range policies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// giveOrder ranks cards from least to most worth keeping.
var giveOrder = map[engine.CardKind]int{
	engine.CatTaco: 0, engine.CatWatermelon: 0, engine.CatPotato: 0, engine.CatBeard: 0, engine.CatRainbow: 0,
	engine.CatFeral: 1, engine.Nope: 1,
	engine.Shuffle: 2, engine.SeeTheFuture: 2, engine.AlterTheFuture: 2, engine.DrawFromBottom: 2, engine.Favor: 2,
	engine.Skip: 3, engine.Attack: 3, engine.TargetedAttack: 3,
	engine.Defuse: 9,
}

// CautiousPolicy avoids drawing when the kitten odds are high and protects its defuses.
func CautiousPolicy(o Observation, r *rand.Rand) (ActionOut, bool) {
	if len(o.Legal) == 0 {
		return ActionOut{}, false
	}
	if o.Pending != nil {
		opts := o.Pending.Options
		switch o.Legal[0] {
		case ActAlter:
			// kittens sink to the bottom of the window
			order := make([]string, 0, len(opts))
			kittens := 0
			for _, c := range opts {
				if c == string(engine.ExplodingKitten) {
					kittens++
					continue
				}
				order = append(order, c)
			}
			for ; kittens > 0; kittens-- {
				order = append(order, string(engine.ExplodingKitten))
			}
			return ActionOut{Action: ActAlter, Cards: toKinds(order)}, true
		case ActFavorResponse:
			best := opts[0]
			for _, c := range opts[1:] {
				if giveOrder[engine.CardKind(c)] < giveOrder[engine.CardKind(best)] {
					best = c
				}
			}
			return ActionOut{Action: ActFavorResponse, Card: engine.CardKind(best)}, true
		case ActCatResolve:
			return ActionOut{Action: ActCatResolve, Index: 1 + r.Intn(len(opts))}, true
		case ActTargetedConfirm:
			return ActionOut{Action: ActTargetedConfirm, Target: o.pickOpponent(opts, false)}, true
		default:
			return ActionOut{Action: o.Legal[0], Target: o.pickOpponent(opts, true)}, true
		}
	}

	hasDefuse := false
	for _, c := range o.Hand {
		if c == string(engine.Defuse) {
			hasDefuse = true
			break
		}
	}
	if !hasDefuse {
		for _, cb := range o.Combos {
			if len(cb) == 3 {
				return ActionOut{Action: ActCombo, Cards: cb}, true
			}
		}
	}

	risk := 0.0
	if o.DeckSize > 0 {
		risk = float64(o.Kittens) / float64(o.DeckSize)
	}
	if risk >= 0.2 || (!hasDefuse && risk > 0.1) {
		for _, want := range []engine.CardKind{engine.Skip, engine.Attack, engine.TargetedAttack, engine.DrawFromBottom, engine.Shuffle} {
			if o.canPlay(want) {
				return ActionOut{Action: ActPlay, Card: want}, true
			}
		}
	}
	if o.canPlay(engine.Favor) && r.Intn(2) == 0 {
		return ActionOut{Action: ActPlay, Card: engine.Favor}, true
	}
	if len(o.Combos) > 0 && r.Intn(3) == 0 {
		return ActionOut{Action: ActCombo, Cards: o.Combos[0]}, true
	}
	return ActionOut{Action: ActDraw}, true
}

func (o Observation) canPlay(c engine.CardKind) bool {
	for _, p := range o.Playable {
		if p == c {
			return true
		}
	}
	return false
}

// pickOpponent chooses among ids by hand size, largest or smallest first.
func (o Observation) pickOpponent(ids []string, largest bool) string {
	cards := map[string]int{}
	for _, op := range o.Opponents {
		cards[op.ID] = op.Cards
	}
	best := ids[0]
	for _, id := range ids[1:] {
		if (largest && cards[id] > cards[best]) || (!largest && cards[id] < cards[best]) {
			best = id
		}
	}
	return best
}

// indexOptions numbers a steal window 1..n.
func indexOptions(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}
