package engine

// Outcome discriminates what an operation did to the turn.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeTurnEnded Outcome = "turn_ended"
	OutcomeGameOver  Outcome = "game_over"
	OutcomePrompt    Outcome = "prompt"
)

// PromptKind is the input a player is asked for.
type PromptKind string

const (
	PromptReorderFuture PromptKind = "reorder_future"
	PromptFavorTarget   PromptKind = "favor_target"
	PromptFavorCard     PromptKind = "favor_card"
	PromptAttackTarget  PromptKind = "targeted_attack_target"
	PromptCatOpponent   PromptKind = "cat_opponent"
	PromptCatNumber     PromptKind = "cat_number"
)

// Prompt asks Recipient to choose among Options.
type Prompt struct {
	Kind      PromptKind `json:"kind"`
	Recipient string     `json:"recipient"`
	Options   []string   `json:"options"`
}

// Reveal is private information for one player only.
type Reveal struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	Cards     Pile   `json:"cards"`
}

// Result is what one operation hands back to the transport layer.
type Result struct {
	Outcome     Outcome  `json:"outcome"`
	Winner      string   `json:"winner,omitempty"`
	Turn        string   `json:"turn"`
	TurnChanged bool     `json:"turn_changed"`
	Prompt      *Prompt  `json:"prompt,omitempty"`
	Reveals     []Reveal `json:"reveals,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
	State       Snapshot `json:"state"`
}

func (r *Result) log(a Action) { r.Actions = append(r.Actions, a) }

func (r *Result) reveal(to, reason string, cards Pile) {
	r.Reveals = append(r.Reveals, Reveal{Recipient: to, Reason: reason, Cards: cards.Clone()})
}

// PlayerView is a seat as it appears in a snapshot.
type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Hand Pile   `json:"hand"`
}

// Snapshot is a deep copy of a session, safe to read after the lock is released.
type Snapshot struct {
	GameID     string       `json:"game_id"`
	LobbyID    string       `json:"lobby_id"`
	Seed       int64        `json:"seed"`
	Rules      string       `json:"rule_version"`
	Version    int          `json:"version"`
	TurnNumber int          `json:"turn_number"`
	Players    []PlayerView `json:"players"`
	Eliminated []string     `json:"eliminated"`
	Deck       Pile         `json:"deck"`
	Discard    Pile         `json:"discard"`
	Current    int          `json:"current"`
	ToDraw     int          `json:"to_draw"`
	Pending    Pending      `json:"pending"`
	Winner     string       `json:"winner,omitempty"`
	Total      int          `json:"total_cards"`
}

// CurrentID returns the id of the seat to act, or "" when nobody is seated.
func (s Snapshot) CurrentID() string {
	if s.Current < 0 || s.Current >= len(s.Players) {
		return ""
	}
	return s.Players[s.Current].ID
}

// Player looks a seat up by id.
func (s Snapshot) Player(id string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}

// CardsInPlay sums every zone. It equals Total at every observation point.
func (s Snapshot) CardsInPlay() int {
	n := len(s.Deck) + len(s.Discard)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	return n
}

// Standings is the final order once one seat remains.
type Standings struct {
	GameID     string   `json:"game_id"`
	LobbyID    string   `json:"lobby_id"`
	Winner     string   `json:"winner"`
	Eliminated []string `json:"eliminated"` // first out first
}
