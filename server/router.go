// server/router.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
	"kitten-arena/server/realtime"
	"kitten-arena/server/store"
)

// App is what the HTTP layer needs from the rest of the process.
type App struct {
	Registry *engine.Registry
	Recorder store.Recorder
	Hub      *realtime.Hub
	Log      *zap.Logger
}

type startReq struct {
	PlayerIDs   []string `json:"playerIds"`
	PlayerNames []string `json:"playerNames"`
}

// actionReq is the body of every game operation. Fields not used by an operation are ignored.
type actionReq struct {
	PlayerID string            `json:"playerId"`
	Card     engine.CardKind   `json:"card"`
	Cards    []engine.CardKind `json:"cards"`
	Target   string            `json:"targetPlayerId"`
	Index    int               `json:"index"`
}

func Router(app *App) http.Handler {
	if app.Log == nil {
		app.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(app.Log))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "sessions": app.Registry.Len()})
	})

	r.Get("/api/games", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"lobbies": app.Registry.Lobbies()})
	})

	r.Post("/api/game/start", func(w http.ResponseWriter, r *http.Request) {
		lobby := r.URL.Query().Get("lobbyId")
		var req startReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: bad body: %v", engine.ErrInvalidSetup, err))
			return
		}
		s, created, err := app.Registry.Start(lobby, req.PlayerIDs, req.PlayerNames)
		if err != nil {
			writeError(w, err)
			return
		}
		snap := s.Snapshot()
		code := http.StatusOK
		if created {
			code = http.StatusCreated
		}
		writeJSONCode(w, code, map[string]any{
			"gameId":  s.GameID,
			"lobbyId": lobby,
			"created": created,
			"players": snap.Players,
			"current": snap.CurrentID(),
		})
	})

	r.Route("/api/game/{lobbyId}", func(r chi.Router) {
		r.Get("/", app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
			writeJSON(w, s.Snapshot())
		}))
		r.Get("/winner", app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
			st, over := s.Standings()
			writeJSON(w, map[string]any{"over": over, "winner": st.Winner, "eliminated": st.Eliminated})
		}))
		r.Get("/view", app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
			pid := r.URL.Query().Get("playerId")
			if pid == "" {
				writeError(w, fmt.Errorf("%w: playerId required", engine.ErrInvalidActor))
				return
			}
			writeJSON(w, agent.BuildObservation(s.Snapshot(), pid))
		}))
		r.Get("/opponents", app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
			writeJSON(w, map[string]any{"opponents": s.Opponents(r.URL.Query().Get("playerId"))})
		}))
		r.Get("/actions", app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
			ctx, cancel := withTimeout(r.Context(), 5*time.Second)
			defer cancel()
			acts, err := app.Recorder.Actions(ctx, s.GameID)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, fmt.Errorf("%w: no persisted log for game %s", engine.ErrNotFound, s.GameID))
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, map[string]any{"gameId": s.GameID, "actions": acts})
		}))

		r.Post("/play", app.act(agent.ActPlay))
		r.Post("/draw", app.act(agent.ActDraw))
		r.Post("/combo", app.act(agent.ActCombo))
		r.Post("/alter", app.act(agent.ActAlter))
		r.Post("/favor/request", app.act(agent.ActFavorRequest))
		r.Post("/favor/response", app.act(agent.ActFavorResponse))
		r.Post("/targeted/confirm", app.act(agent.ActTargetedConfirm))
		r.Post("/cat/steal", app.act(agent.ActCatSteal))
		r.Post("/cat/steal/resolve", app.act(agent.ActCatResolve))
	})

	r.Get("/ws/{lobbyId}", func(w http.ResponseWriter, r *http.Request) {
		pid := r.URL.Query().Get("playerId")
		if pid == "" {
			writeError(w, fmt.Errorf("%w: playerId required", engine.ErrInvalidActor))
			return
		}
		app.Hub.ServeWS(w, r, chi.URLParam(r, "lobbyId"), pid)
	})

	return r
}

func (app *App) withSession(h func(http.ResponseWriter, *http.Request, *engine.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := app.Registry.Get(chi.URLParam(r, "lobbyId"))
		if err != nil {
			writeError(w, err)
			return
		}
		h(w, r, s)
	}
}

// act decodes an action body, runs it against the lobby's session and publishes the
// result to websocket subscribers once the session lock has been released. The caller
// gets only its own view of the result.
func (app *App) act(action string) http.HandlerFunc {
	return app.withSession(func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		var req actionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: bad body: %v", engine.ErrInvalidCard, err))
			return
		}
		res, err := agent.Dispatch(s, req.PlayerID, agent.ActionOut{
			Action: action,
			Card:   req.Card,
			Cards:  req.Cards,
			Target: req.Target,
			Index:  req.Index,
		})
		if err != nil {
			app.Log.Debug("action rejected", zap.String("lobby", s.LobbyID), zap.String("player", req.PlayerID),
				zap.String("action", action), zap.Error(err))
			writeError(w, err)
			return
		}
		if app.Hub != nil {
			app.Hub.Publish(s.LobbyID, res)
		}
		if res.Outcome == engine.OutcomeGameOver {
			app.Log.Info("game over", zap.String("lobby", s.LobbyID), zap.String("game", s.GameID),
				zap.String("winner", res.Winner))
		}
		writeJSON(w, agent.BuildReply(res, req.PlayerID))
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidActor):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidCard), errors.Is(err, engine.ErrInvalidTarget), errors.Is(err, engine.ErrInvalidSetup):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrGameOver):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONCode(w, statusFor(err), map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONCode(w, http.StatusOK, v) }

func writeJSONCode(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requestLogger(lg *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.Debug("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("req", middleware.GetReqID(r.Context())))
		})
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
