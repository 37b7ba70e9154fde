package engine

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type RegistryOptions struct {
	Catalog Catalog
	Seed    func() int64 // nil or 0 = time seeded
	Journal Journal
	Logger  *zap.Logger
}

// Registry owns every running session, keyed by lobby id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     RegistryOptions
	log      *zap.Logger
}

func NewRegistry(opts RegistryOptions) *Registry {
	if len(opts.Catalog.Cards) == 0 {
		opts.Catalog = DefaultCatalog()
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{sessions: map[string]*Session{}, opts: opts, log: lg}
}

// Start deals a new session for lobbyID. A lobby that already has one gets it back
// untouched and created is false.
func (r *Registry) Start(lobbyID string, ids, names []string) (s *Session, created bool, err error) {
	if lobbyID == "" {
		return nil, false, fmt.Errorf("%w: empty lobby id", ErrInvalidSetup)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[lobbyID]; ok {
		r.log.Debug("session already running", zap.String("lobby", lobbyID), zap.String("game", s.GameID))
		return s, false, nil
	}
	var seed int64
	if r.opts.Seed != nil {
		seed = r.opts.Seed()
	}
	s, err = NewSession(SessionOptions{
		LobbyID:     lobbyID,
		PlayerIDs:   ids,
		PlayerNames: names,
		Catalog:     r.opts.Catalog,
		Seed:        seed,
		Journal:     r.opts.Journal,
	})
	if err != nil {
		return nil, false, err
	}
	r.sessions[lobbyID] = s
	r.log.Info("session started",
		zap.String("lobby", lobbyID), zap.String("game", s.GameID),
		zap.Int("players", len(ids)), zap.Int64("seed", s.Seed))
	return s, true, nil
}

func (r *Registry) Get(lobbyID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[lobbyID]
	if !ok {
		return nil, fmt.Errorf("%w: lobby %q", ErrNotFound, lobbyID)
	}
	return s, nil
}

// Remove forgets a session. It reports whether one was registered.
func (r *Registry) Remove(lobbyID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[lobbyID]; !ok {
		return false
	}
	delete(r.sessions, lobbyID)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Lobbies lists the registered lobby ids in sorted order.
func (r *Registry) Lobbies() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
