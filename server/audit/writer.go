package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kitten-arena/server/engine"
	"kitten-arena/server/store"
)

type jobKind int

const (
	jobCreate jobKind = iota
	jobAction
	jobFinish
)

type job struct {
	kind   jobKind
	lobby  string
	game   store.Game
	action store.Action
	final  store.Final
}

// Writer forwards session events to a store.Recorder from a single goroutine.
// Enqueueing never blocks: when the buffer is full the event is dropped and logged.
type Writer struct {
	recorder store.Recorder
	jobs     chan job
	log      *zap.Logger
	timeout  time.Duration
	dropped  atomic.Int64
	failed   atomic.Int64
}

type Options struct {
	Recorder store.Recorder
	Buffer   int
	Timeout  time.Duration // per store call
	Logger   *zap.Logger
}

func New(opts Options) *Writer {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Writer{
		recorder: opts.Recorder,
		jobs:     make(chan job, opts.Buffer),
		log:      lg.Named("audit"),
		timeout:  opts.Timeout,
	}
}

var _ engine.Journal = (*Writer)(nil)

func (w *Writer) Started(s engine.Snapshot) {
	players := make([]string, len(s.Players))
	for i, p := range s.Players {
		players[i] = p.ID
	}
	w.enqueue(job{kind: jobCreate, lobby: s.LobbyID, game: store.Game{
		ID:          s.GameID,
		LobbyID:     s.LobbyID,
		Seed:        s.Seed,
		RuleVersion: s.Rules,
		Players:     players,
		StartedAt:   time.Now().UTC(),
	}})
}

func (w *Writer) Recorded(gameID, lobbyID string, actions []engine.Action) {
	now := time.Now().UTC()
	for _, a := range actions {
		w.enqueue(job{kind: jobAction, lobby: lobbyID, action: store.Action{
			GameID:     gameID,
			Turn:       a.Turn,
			Actor:      a.Actor,
			Receiver:   a.Receiver,
			ActionType: string(a.Kind),
			Payload:    payloadJSON(a),
			CreatedAt:  now,
		}})
	}
}

func (w *Writer) Finished(st engine.Standings) {
	w.enqueue(job{kind: jobFinish, lobby: st.LobbyID, final: store.Final{
		GameID:     st.GameID,
		Winner:     st.Winner,
		Eliminated: append([]string{}, st.Eliminated...),
		EndedAt:    time.Now().UTC(),
	}})
}

// Dropped counts events lost to a full buffer.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failed counts events the recorder rejected.
func (w *Writer) Failed() int64 { return w.failed.Load() }

func (w *Writer) enqueue(j job) {
	select {
	case w.jobs <- j:
	default:
		w.dropped.Add(1)
		w.log.Warn("audit buffer full, dropping event",
			zap.String("lobby", j.lobby), zap.Int("kind", int(j.kind)), zap.String("action", j.action.ActionType))
	}
}

// Start drains events until ctx is cancelled, then flushes whatever is still queued.
func (w *Writer) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case j := <-w.jobs:
			w.handle(ctx, j)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.jobs:
			w.handle(context.Background(), j)
		default:
			return
		}
	}
}

func (w *Writer) handle(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobCreate:
		err = w.recorder.CreateGame(ctx, j.game)
		if err == nil {
			w.log.Debug("game recorded", zap.String("lobby", j.lobby), zap.String("game", j.game.ID))
		}
	case jobAction:
		var seq int
		seq, err = w.recorder.AppendAction(ctx, j.action)
		if err == nil {
			w.log.Debug("action recorded", zap.String("game", j.action.GameID),
				zap.String("action", j.action.ActionType), zap.Int("seq", seq))
		}
	case jobFinish:
		err = w.recorder.CompleteGame(ctx, j.final)
		if err == nil {
			w.log.Info("game finished", zap.String("lobby", j.lobby), zap.String("game", j.final.GameID),
				zap.String("winner", j.final.Winner))
		}
	}
	if err != nil {
		w.failed.Add(1)
		w.log.Warn("failed to persist game event",
			zap.String("lobby", j.lobby), zap.Int("kind", int(j.kind)),
			zap.String("action", j.action.ActionType), zap.Error(err))
	}
}

// payloadJSON folds the notice text into the action payload.
func payloadJSON(a engine.Action) string {
	m := make(map[string]any, len(a.Payload)+2)
	for k, v := range a.Payload {
		m[k] = v
	}
	if a.Message != "" {
		m["message"] = a.Message
	}
	if a.Level != "" {
		m["level"] = a.Level
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
