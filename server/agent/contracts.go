package agent

import (
	"fmt"
	"math/rand"

	"kitten-arena/server/engine"
)

// Action names accepted by Dispatch.
const (
	ActDraw            = "draw"
	ActPlay            = "play"
	ActCombo           = "combo"
	ActAlter           = "alter"
	ActFavorRequest    = "favor_request"
	ActFavorResponse   = "favor_response"
	ActTargetedConfirm = "targeted_confirm"
	ActCatSteal        = "cat_steal"
	ActCatResolve      = "cat_steal_resolve"
)

type Opponent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards int    `json:"cards"`
}

// PendingView is the open interaction as one player may see it.
type PendingView struct {
	Kind    engine.PendingKind `json:"kind"`
	Actor   string             `json:"actor"`
	Options []string           `json:"options,omitempty"` // only for the actor
}

// Observation is a single player's view of a session: own hand, everyone else's card count.
type Observation struct {
	GameID     string              `json:"game_id"`
	PlayerID   string              `json:"player_id"`
	Seat       int                 `json:"seat"` // -1 once eliminated
	Hand       []string            `json:"hand"`
	Opponents  []Opponent          `json:"opponents"`
	Eliminated []string            `json:"eliminated"`
	DeckSize   int                 `json:"deck_size"`
	Kittens    int                 `json:"kittens_left"`
	Discard    int                 `json:"discard_size"`
	TopDiscard engine.CardKind     `json:"top_discard,omitempty"`
	Current    string              `json:"current"`
	ToDraw     int                 `json:"to_draw"`
	YourTurn   bool                `json:"your_turn"`
	Pending    *PendingView        `json:"pending,omitempty"`
	Playable   []engine.CardKind   `json:"playable_cards,omitempty"`
	Combos     [][]engine.CardKind `json:"combos,omitempty"`
	Legal      []string            `json:"legal_actions"`
	Winner     string              `json:"winner,omitempty"`
	Version    int                 `json:"version"`
}

type ActionOut struct {
	Action  string            `json:"action"`
	Card    engine.CardKind   `json:"card,omitempty"`
	Cards   []engine.CardKind `json:"cards,omitempty"` // combo, or new order for alter
	Target  string            `json:"target,omitempty"`
	Index   int               `json:"index,omitempty"` // 1-based steal pick
	Comment string            `json:"comment,omitempty"`
}

// BuildObservation converts a snapshot into what playerID is allowed to know.
func BuildObservation(s engine.Snapshot, playerID string) Observation {
	o := Observation{
		GameID:     s.GameID,
		PlayerID:   playerID,
		Seat:       -1,
		Hand:       []string{},
		Eliminated: append([]string{}, s.Eliminated...),
		DeckSize:   len(s.Deck),
		Kittens:    s.Deck.Count(engine.ExplodingKitten),
		Discard:    len(s.Discard),
		Current:    s.CurrentID(),
		ToDraw:     s.ToDraw,
		Winner:     s.Winner,
		Version:    s.Version,
		Legal:      []string{},
	}
	if n := len(s.Discard); n > 0 {
		o.TopDiscard = s.Discard[n-1]
	}
	var hand engine.Pile
	for i, p := range s.Players {
		if p.ID == playerID {
			o.Seat = i
			hand = p.Hand
			o.Hand = p.Hand.Strings()
			continue
		}
		o.Opponents = append(o.Opponents, Opponent{ID: p.ID, Name: p.Name, Cards: len(p.Hand)})
	}
	if s.Winner != "" || o.Seat < 0 {
		return o
	}

	if pd := s.Pending; pd.Open() {
		o.Pending = &PendingView{Kind: pd.Kind, Actor: pd.Actor}
		if pd.Actor != playerID {
			return o
		}
		o.Pending.Options = pendingOptions(s, pd, hand)
		switch pd.Kind {
		case engine.PendingFutureReorder:
			o.Legal = []string{ActAlter}
		case engine.PendingFavorTarget:
			o.Legal = []string{ActFavorRequest}
		case engine.PendingFavorResponse:
			o.Legal = []string{ActFavorResponse}
		case engine.PendingAttackTarget:
			o.Legal = []string{ActTargetedConfirm}
		case engine.PendingCatOpponent:
			o.Legal = []string{ActCatSteal}
		case engine.PendingCatCard:
			o.Legal = []string{ActCatResolve}
		}
		return o
	}

	if o.Current != playerID {
		return o
	}
	o.YourTurn = true
	o.Legal = append(o.Legal, ActDraw)
	for _, k := range hand.Kinds() {
		c := engine.CardKind(k)
		if playable(c) {
			o.Playable = append(o.Playable, c)
		}
	}
	if len(o.Playable) > 0 {
		o.Legal = append(o.Legal, ActPlay)
	}
	o.Combos = combos(hand)
	if len(o.Combos) > 0 {
		o.Legal = append(o.Legal, ActCombo)
	}
	return o
}

func playable(c engine.CardKind) bool {
	switch {
	case c == engine.Nope, c == engine.Defuse, c == engine.ExplodingKitten, c.IsCat():
		return false
	}
	return true
}

func pendingOptions(s engine.Snapshot, pd engine.Pending, hand engine.Pile) []string {
	switch pd.Kind {
	case engine.PendingFutureReorder:
		return pd.Cards.Strings()
	case engine.PendingFavorResponse:
		return hand.Kinds()
	case engine.PendingCatCard:
		return indexOptions(len(pd.Snapshot))
	}
	var out []string
	for _, p := range s.Players {
		if p.ID != pd.Actor {
			out = append(out, p.ID)
		}
	}
	return out
}

// combos lists one example of every distinct combo the hand can form, pairs first.
func combos(hand engine.Pile) [][]engine.CardKind {
	var out [][]engine.CardKind
	ferals := hand.Count(engine.CatFeral)
	for _, k := range hand.Kinds() {
		c := engine.CardKind(k)
		if !c.IsCat() || c == engine.CatFeral {
			continue
		}
		n := hand.Count(c)
		switch {
		case n >= 2:
			out = append(out, []engine.CardKind{c, c})
		case ferals >= 1:
			out = append(out, []engine.CardKind{c, engine.CatFeral})
		}
		switch {
		case n >= 3:
			out = append(out, []engine.CardKind{c, c, c})
		case n == 2 && ferals >= 1:
			out = append(out, []engine.CardKind{c, c, engine.CatFeral})
		case n == 1 && ferals >= 2:
			out = append(out, []engine.CardKind{c, engine.CatFeral, engine.CatFeral})
		}
	}
	if ferals >= 2 {
		out = append(out, []engine.CardKind{engine.CatFeral, engine.CatFeral})
	}
	return out
}

// Validate checks an action against what the observation allows.
func Validate(o Observation, a ActionOut) error {
	ok := false
	for _, la := range o.Legal {
		if la == a.Action {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: illegal action %q (legals: %v)", engine.ErrInvalidActor, a.Action, o.Legal)
	}

	switch a.Action {
	case ActPlay:
		for _, c := range o.Playable {
			if c == a.Card {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not playable (playable: %v)", engine.ErrInvalidCard, a.Card, o.Playable)
	case ActCombo:
		if engine.ValidateCombo(a.Cards) == engine.ComboInvalid {
			return fmt.Errorf("%w: %v is not a cat combo", engine.ErrInvalidCard, a.Cards)
		}
		if !holds(o.Hand, a.Cards) {
			return fmt.Errorf("%w: %v not in hand", engine.ErrInvalidCard, a.Cards)
		}
	case ActFavorResponse, ActAlter:
		if a.Action == ActFavorResponse && !contains(o.Pending.Options, string(a.Card)) {
			return fmt.Errorf("%w: %q not in hand", engine.ErrInvalidCard, a.Card)
		}
		if a.Action == ActAlter && !engine.SameCards(a.Cards, toKinds(o.Pending.Options)) {
			return fmt.Errorf("%w: order must use %v", engine.ErrInvalidCard, o.Pending.Options)
		}
	case ActFavorRequest, ActTargetedConfirm, ActCatSteal:
		if !contains(o.Pending.Options, a.Target) {
			return fmt.Errorf("%w: %q (choose from %v)", engine.ErrInvalidTarget, a.Target, o.Pending.Options)
		}
	case ActCatResolve:
		if a.Index < 1 || a.Index > len(o.Pending.Options) {
			return fmt.Errorf("%w: index %d out of bounds [1, %d]", engine.ErrInvalidTarget, a.Index, len(o.Pending.Options))
		}
	}
	return nil
}

// Dispatch routes one action to the matching session operation.
func Dispatch(s *engine.Session, playerID string, a ActionOut) (*engine.Result, error) {
	switch a.Action {
	case ActDraw:
		return s.Draw(playerID)
	case ActPlay:
		return s.Play(playerID, a.Card)
	case ActCombo:
		return s.PlayCombo(playerID, a.Cards)
	case ActAlter:
		return s.ReorderFuture(playerID, a.Cards)
	case ActFavorRequest:
		return s.RequestFavor(playerID, a.Target)
	case ActFavorResponse:
		return s.GiveFavor(playerID, a.Card)
	case ActTargetedConfirm:
		return s.TargetAttack(playerID, a.Target)
	case ActCatSteal:
		return s.SelectStealTarget(playerID, a.Target)
	case ActCatResolve:
		return s.ResolveSteal(playerID, a.Index)
	}
	return nil, fmt.Errorf("%w: unknown action %q", engine.ErrInvalidCard, a.Action)
}

// RandomPolicy picks a uniformly random legal move. Draws are weighted up so games finish.
func RandomPolicy(o Observation, r *rand.Rand) (ActionOut, bool) {
	if len(o.Legal) == 0 {
		return ActionOut{}, false
	}
	pick := func(xs []string) string { return xs[r.Intn(len(xs))] }
	if o.Pending != nil {
		opts := o.Pending.Options
		switch o.Legal[0] {
		case ActAlter:
			order := append([]string{}, opts...)
			r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			return ActionOut{Action: ActAlter, Cards: toKinds(order)}, true
		case ActFavorResponse:
			return ActionOut{Action: ActFavorResponse, Card: engine.CardKind(pick(opts))}, true
		case ActCatResolve:
			return ActionOut{Action: ActCatResolve, Index: 1 + r.Intn(len(opts))}, true
		default:
			return ActionOut{Action: o.Legal[0], Target: pick(opts)}, true
		}
	}
	roll := r.Intn(10)
	switch {
	case roll < 2 && len(o.Combos) > 0:
		return ActionOut{Action: ActCombo, Cards: o.Combos[r.Intn(len(o.Combos))]}, true
	case roll < 5 && len(o.Playable) > 0:
		return ActionOut{Action: ActPlay, Card: o.Playable[r.Intn(len(o.Playable))]}, true
	}
	return ActionOut{Action: ActDraw}, true
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// holds reports whether hand contains cards, counting duplicates.
func holds(hand []string, cards []engine.CardKind) bool {
	left := map[string]int{}
	for _, c := range hand {
		left[c]++
	}
	for _, c := range cards {
		if left[string(c)] == 0 {
			return false
		}
		left[string(c)]--
	}
	return true
}

func toKinds(xs []string) []engine.CardKind {
	out := make([]engine.CardKind, len(xs))
	for i, x := range xs {
		out[i] = engine.CardKind(x)
	}
	return out
}
