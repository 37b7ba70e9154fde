package realtime

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
)

// Envelope types.
const (
	TypeNotice   = "notice"
	TypeTurn     = "turn"
	TypePrompt   = "prompt"
	TypeReveal   = "reveal"
	TypeView     = "view"
	TypeGameOver = "game_over"
)

type Envelope struct {
	T string `json:"t"`
	M any    `json:"m,omitempty"`
}

type TurnChange struct {
	Player string `json:"player"`
	ToDraw int    `json:"to_draw"`
	Number int    `json:"number"`
}

type GameOver struct {
	Winner     string   `json:"winner"`
	Eliminated []string `json:"eliminated"`
}

type client struct {
	id     string
	lobby  string
	player string
	send   chan Envelope
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.done) }) }

type Options struct {
	Origins []string      // accepted Origin host patterns; "*" disables the check
	Buffer  int           // per-client queue
	Ping    time.Duration // keepalive interval
	Logger  *zap.Logger
	// Lookup supplies the snapshot for the first view sent on connect.
	Lookup func(lobbyID string) (engine.Snapshot, error)
}

// Hub fans session results out to websocket subscribers grouped by lobby.
type Hub struct {
	opts    Options
	log     *zap.Logger
	mu      sync.RWMutex
	lobbies map[string]map[*client]struct{}
	dropped atomic.Int64
}

func NewHub(opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Ping <= 0 {
		opts.Ping = 15 * time.Second
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Hub{opts: opts, log: lg.Named("hub"), lobbies: map[string]map[*client]struct{}{}}
}

// ServeWS upgrades the request and streams envelopes for playerID until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, lobbyID, playerID string) {
	ao := &websocket.AcceptOptions{OriginPatterns: h.opts.Origins}
	for _, o := range h.opts.Origins {
		if o == "*" {
			ao = &websocket.AcceptOptions{InsecureSkipVerify: true}
			break
		}
	}
	conn, err := websocket.Accept(w, r, ao)
	if err != nil {
		h.log.Warn("websocket accept failed", zap.String("lobby", lobbyID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// subscribers only listen; CloseRead handles control frames and cancels on disconnect
	ctx := conn.CloseRead(r.Context())

	c := &client{
		id:     uuid.NewString()[:8],
		lobby:  lobbyID,
		player: playerID,
		send:   make(chan Envelope, h.opts.Buffer),
		done:   make(chan struct{}),
	}
	h.add(c)
	defer h.remove(c)
	h.log.Info("subscriber connected", zap.String("lobby", lobbyID), zap.String("player", playerID), zap.String("conn", c.id))

	if h.opts.Lookup != nil {
		if snap, err := h.opts.Lookup(lobbyID); err == nil {
			c.send <- Envelope{T: TypeView, M: agent.BuildObservation(snap, playerID)}
		}
	}

	ping := time.NewTicker(h.opts.Ping)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("subscriber left", zap.String("lobby", lobbyID), zap.String("conn", c.id))
			return
		case <-c.done:
			conn.Close(websocket.StatusNormalClosure, "lobby closed")
			return
		case env := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				h.log.Warn("websocket write failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.lobbies[c.lobby]
	if set == nil {
		set = map[*client]struct{}{}
		h.lobbies[c.lobby] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.lobbies[c.lobby]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.lobbies, c.lobby)
		}
	}
}

// Count returns the number of live subscribers in a lobby.
func (h *Hub) Count(lobbyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobbies[lobbyID])
}

// Dropped counts envelopes discarded because a subscriber fell behind.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// CloseLobby disconnects every subscriber of a lobby.
func (h *Hub) CloseLobby(lobbyID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.lobbies[lobbyID] {
		c.close()
	}
}

// Publish delivers one operation result. Public notices go to everyone, prompts and
// reveals only to their recipient, and every subscriber gets a fresh personal view.
// Must be called after the session lock is released; it never blocks on a slow peer.
func (h *Hub) Publish(lobbyID string, res *engine.Result) {
	if res == nil {
		return
	}
	notices := make([]Envelope, 0, len(res.Actions))
	for _, a := range res.Actions {
		notices = append(notices, Envelope{T: TypeNotice, M: agent.PublicNotice(a)})
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.lobbies[lobbyID] {
		for _, n := range notices {
			h.push(c, n)
		}
		for _, rv := range res.Reveals {
			if rv.Recipient == c.player {
				h.push(c, Envelope{T: TypeReveal, M: rv})
			}
		}
		if res.Prompt != nil && res.Prompt.Recipient == c.player {
			h.push(c, Envelope{T: TypePrompt, M: res.Prompt})
		}
		if res.TurnChanged {
			h.push(c, Envelope{T: TypeTurn, M: TurnChange{Player: res.Turn, ToDraw: res.State.ToDraw, Number: res.State.TurnNumber}})
		}
		h.push(c, Envelope{T: TypeView, M: agent.BuildObservation(res.State, c.player)})
		if res.Outcome == engine.OutcomeGameOver {
			h.push(c, Envelope{T: TypeGameOver, M: GameOver{Winner: res.Winner, Eliminated: res.State.Eliminated}})
		}
	}
}

func (h *Hub) push(c *client, env Envelope) {
	select {
	case c.send <- env:
	default:
		h.dropped.Add(1)
		h.log.Warn("subscriber queue full, dropping message",
			zap.String("lobby", c.lobby), zap.String("conn", c.id), zap.String("type", env.T))
	}
}
