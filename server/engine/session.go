package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Player is one occupied seat.
type Player struct {
	ID   string
	Name string
	Hand Pile
}

// Journal receives the audit trail of a session. It is called while the session lock is
// held, so implementations must not block.
type Journal interface {
	Started(s Snapshot)
	Recorded(gameID, lobbyID string, actions []Action)
	Finished(st Standings)
}

// Session is the mutable state of one running game. All exported operations take the
// session lock for their whole duration.
type Session struct {
	mu sync.RWMutex

	GameID  string
	LobbyID string
	Seed    int64
	Rules   string

	Players    []*Player // seating order; only ever shrinks
	Eliminated []string
	Deck       Pile // index 0 is the top
	Discard    Pile
	Current    int
	ToDraw     int
	Pending    Pending
	Winner     string
	History    []Action
	Version    int
	TurnNumber int // starts at 1, bumped whenever the turn passes

	total   int
	rng     *rand.Rand
	journal Journal
}

type SessionOptions struct {
	LobbyID     string
	PlayerIDs   []string
	PlayerNames []string
	Catalog     Catalog
	Seed        int64 // 0 = time seeded
	Journal     Journal
}

// NewSession deals a fresh game: one defuse plus a hand from the shuffled deck per seat,
// then the spare defuses and the kittens go into the deck and it is shuffled again.
func NewSession(opts SessionOptions) (*Session, error) {
	ids := opts.PlayerIDs
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players, got %d", ErrInvalidSetup, len(ids))
	}
	if len(opts.PlayerNames) != 0 && len(opts.PlayerNames) != len(ids) {
		return nil, fmt.Errorf("%w: %d names for %d players", ErrInvalidSetup, len(opts.PlayerNames), len(ids))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty player id", ErrInvalidSetup)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate player %q", ErrInvalidSetup, id)
		}
		seen[id] = true
	}
	cat := opts.Catalog
	if len(cat.Cards) == 0 {
		cat = DefaultCatalog()
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := NewRand(seed)

	deck := cat.DrawPile()
	if len(ids)*cat.HandSize > len(deck) {
		return nil, fmt.Errorf("%w: %d players need %d cards, deck has %d",
			ErrInvalidSetup, len(ids), len(ids)*cat.HandSize, len(deck))
	}
	ShuffleCards(rng, deck)

	s := &Session{
		GameID:     uuid.NewString(),
		LobbyID:    opts.LobbyID,
		Seed:       seed,
		Rules:      RuleVersion,
		Current:    0,
		ToDraw:     1,
		TurnNumber: 1,
		rng:        rng,
		journal:    opts.Journal,
	}
	for i, id := range ids {
		name := id
		if len(opts.PlayerNames) > 0 && opts.PlayerNames[i] != "" {
			name = opts.PlayerNames[i]
		}
		hand := Pile{Defuse}
		hand = append(hand, deck[:cat.HandSize]...)
		deck = deck[cat.HandSize:]
		s.Players = append(s.Players, &Player{ID: id, Name: name, Hand: hand})
	}
	// deck still aliases the original backing array; detach it before growing
	deck = deck.Clone()
	for i := cat.Count(Defuse) - len(ids); i > 0; i-- {
		deck = append(deck, Defuse)
	}
	for i := 0; i < cat.Kittens; i++ {
		deck = append(deck, ExplodingKitten)
	}
	ShuffleCards(rng, deck)
	s.Deck = deck
	s.total = s.countCards()

	start := Action{Turn: s.TurnNumber, Kind: ActGameStart, Message: "game started", Level: LevelInfo,
		Payload: map[string]any{"players": append([]string{}, ids...), "seed": seed}}
	s.History = append(s.History, start)
	if s.journal != nil {
		s.journal.Started(s.snapshot())
		s.journal.Recorded(s.GameID, s.LobbyID, []Action{start})
	}
	return s, nil
}

func (s *Session) countCards() int {
	n := len(s.Deck) + len(s.Discard)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	return n
}

// do runs one mutating operation under the session lock and fills in the common result fields.
// fn must validate everything before it mutates: an error means the session is untouched.
func (s *Session) do(fn func(r *Result) error) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Players) <= 1 {
		return nil, ErrGameOver
	}
	before := s.currentID()
	r := &Result{}
	if err := fn(r); err != nil {
		return nil, err
	}
	s.Version++
	r.Turn = s.currentID()
	r.TurnChanged = r.Turn != before

	finished := false
	switch {
	case len(s.Players) == 1:
		s.Current = 0
		s.ToDraw = 0
		s.Pending = Pending{}
		if s.Winner == "" {
			s.Winner = s.Players[0].ID
			finished = true
			r.log(Action{Actor: s.Winner, Kind: ActGameEnd, Level: LevelSuccess,
				Message: s.name(s.Winner) + " wins",
				Payload: map[string]any{"winner": s.Winner, "eliminated": append([]string{}, s.Eliminated...)}})
		}
		r.Outcome = OutcomeGameOver
		r.Winner = s.Winner
		r.Prompt = nil
	case r.Prompt != nil:
		r.Outcome = OutcomePrompt
	case r.TurnChanged:
		r.Outcome = OutcomeTurnEnded
	default:
		r.Outcome = OutcomeOK
	}

	for i := range r.Actions {
		r.Actions[i].Turn = s.TurnNumber
	}
	if r.TurnChanged {
		s.TurnNumber++
	}
	s.History = append(s.History, r.Actions...)
	if s.journal != nil {
		if len(r.Actions) > 0 {
			s.journal.Recorded(s.GameID, s.LobbyID, append([]Action{}, r.Actions...))
		}
		if finished {
			s.journal.Finished(s.standings())
		}
	}
	r.State = s.snapshot()
	return r, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		GameID:     s.GameID,
		LobbyID:    s.LobbyID,
		Seed:       s.Seed,
		Rules:      s.Rules,
		Version:    s.Version,
		TurnNumber: s.TurnNumber,
		Eliminated: append([]string{}, s.Eliminated...),
		Deck:       s.Deck.Clone(),
		Discard:    s.Discard.Clone(),
		Current:    s.Current,
		ToDraw:     s.ToDraw,
		Pending:    s.Pending.clone(),
		Winner:     s.Winner,
		Total:      s.total,
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, PlayerView{ID: p.ID, Name: p.Name, Hand: p.Hand.Clone()})
	}
	return snap
}

// WinnerID reports the sole remaining seat once the game is over.
func (s *Session) WinnerID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Players) != 1 {
		return "", false
	}
	return s.Players[0].ID, true
}

// Standings reports the final order once the game is over.
func (s *Session) Standings() (Standings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Players) != 1 {
		return Standings{}, false
	}
	return s.standings(), true
}

func (s *Session) standings() Standings {
	return Standings{
		GameID:     s.GameID,
		LobbyID:    s.LobbyID,
		Winner:     s.Players[0].ID,
		Eliminated: append([]string{}, s.Eliminated...),
	}
}

// Opponents lists the seated players other than actor, in seat order.
func (s *Session) Opponents(actor string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opponents(actor)
}

func (s *Session) opponents(actor string) []string {
	out := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		if p.ID != actor {
			out = append(out, p.ID)
		}
	}
	return out
}

func (s *Session) seat(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return NoSeat
}

func (s *Session) currentID() string {
	if s.Current < 0 || s.Current >= len(s.Players) {
		return ""
	}
	return s.Players[s.Current].ID
}

func (s *Session) name(id string) string {
	for _, p := range s.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func (s *Session) eliminated(id string) bool {
	for _, e := range s.Eliminated {
		if e == id {
			return true
		}
	}
	return false
}
