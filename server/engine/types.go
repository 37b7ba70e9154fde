package engine

import "fmt"

// CardKind is one of the closed set of card faces.
type CardKind string

const (
	Defuse          CardKind = "DEFUSE"
	Attack          CardKind = "ATTACK"
	TargetedAttack  CardKind = "TARGETED_ATTACK"
	Skip            CardKind = "SKIP"
	SeeTheFuture    CardKind = "SEE_THE_FUTURE"
	AlterTheFuture  CardKind = "ALTER_THE_FUTURE"
	Shuffle         CardKind = "SHUFFLE"
	DrawFromBottom  CardKind = "DRAW_FROM_BOTTOM"
	Favor           CardKind = "FAVOR"
	Nope            CardKind = "NOPE"
	ExplodingKitten CardKind = "EXPLODING_KITTEN"

	CatTaco       CardKind = "CAT_TACO"
	CatWatermelon CardKind = "CAT_WATERMELON"
	CatPotato     CardKind = "CAT_POTATO"
	CatBeard      CardKind = "CAT_BEARD"
	CatRainbow    CardKind = "CAT_RAINBOW"
	CatFeral      CardKind = "CAT_FERAL" // wildcard
)

// AllKinds lists every card kind in catalog order.
var AllKinds = []CardKind{
	Defuse, Attack, TargetedAttack, Skip, SeeTheFuture, AlterTheFuture, Shuffle,
	DrawFromBottom, Favor, Nope, ExplodingKitten,
	CatTaco, CatWatermelon, CatPotato, CatBeard, CatRainbow, CatFeral,
}

// IsCat reports whether the card can take part in a cat combo.
func (k CardKind) IsCat() bool {
	switch k {
	case CatTaco, CatWatermelon, CatPotato, CatBeard, CatRainbow, CatFeral:
		return true
	}
	return false
}

func (k CardKind) Valid() bool {
	for _, x := range AllKinds {
		if x == k {
			return true
		}
	}
	return false
}

func ParseCardKind(s string) (CardKind, error) {
	k := CardKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown card %q", ErrInvalidCard, s)
	}
	return k, nil
}

// PendingKind tags the interaction a session is waiting on.
type PendingKind string

const (
	PendingNone          PendingKind = ""
	PendingFutureReorder PendingKind = "future_reorder"
	PendingFavorTarget   PendingKind = "favor_target"
	PendingFavorResponse PendingKind = "favor_response"
	PendingAttackTarget  PendingKind = "targeted_attack_target"
	PendingCatOpponent   PendingKind = "cat_opponent"
	PendingCatCard       PendingKind = "cat_card"
)

// Pending is the single open multi-request interaction of a session.
// Actor is the only player allowed to resolve it.
type Pending struct {
	Kind      PendingKind `json:"kind"`
	Actor     string      `json:"actor,omitempty"`
	Requester string      `json:"requester,omitempty"` // favor asker
	Target    string      `json:"target,omitempty"`    // steal source
	Combo     ComboType   `json:"combo,omitempty"`
	Cards     Pile        `json:"cards,omitempty"` // combo cards, or peeked cards for a reorder
	Snapshot  Pile        `json:"-"`               // shuffled copy of the target hand; indices refer to it
}

func (p Pending) Open() bool { return p.Kind != PendingNone }

func (p Pending) clone() Pending {
	p.Cards = p.Cards.Clone()
	p.Snapshot = p.Snapshot.Clone()
	return p
}

// ActionKind names an entry of the action log.
type ActionKind string

const (
	ActGameStart       ActionKind = "GAME_START"
	ActDrawCard        ActionKind = "DRAW_CARD"
	ActPlayShuffle     ActionKind = "PLAY_SHUFFLE"
	ActPlaySkip        ActionKind = "PLAY_SKIP"
	ActPlaySeeFuture   ActionKind = "PLAY_SEE_THE_FUTURE"
	ActPlayAlterFuture ActionKind = "PLAY_ALTER_THE_FUTURE"
	ActAlterFuture     ActionKind = "ALTER_FUTURE"
	ActPlayDrawBottom  ActionKind = "PLAY_DRAW_FROM_BOTTOM"
	ActPlayFavor       ActionKind = "PLAY_FAVOR"
	ActFavorRequest    ActionKind = "FAVOR_REQUEST"
	ActFavorResponse   ActionKind = "FAVOR_RESPONSE"
	ActPlayAttack      ActionKind = "PLAY_ATTACK"
	ActPlayTargeted    ActionKind = "PLAY_TARGETED_ATTACK"
	ActTargetedConfirm ActionKind = "TARGETED_ATTACK_CONFIRM"
	ActCatCombo        ActionKind = "CAT_COMBO"
	ActCatSteal        ActionKind = "CAT_STEAL"
	ActDefused         ActionKind = "DEFUSED"
	ActEliminated      ActionKind = "ELIMINATED"
	ActGameEnd         ActionKind = "GAME_END"
)

// Level classifies a notice for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Action is one audit line. The core fills the facts; sequence numbers are assigned by the log.
type Action struct {
	Turn     int            `json:"turn"`
	Actor    string         `json:"actor,omitempty"`
	Receiver string         `json:"receiver,omitempty"`
	Kind     ActionKind     `json:"action"`
	Payload  map[string]any `json:"payload,omitempty"`
	Message  string         `json:"message"`
	Level    Level          `json:"level"`
}
