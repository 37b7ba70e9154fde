package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"kitten-arena/server/agent"
	"kitten-arena/server/engine"
)

//
// ===== pretty printing =====
//

var useColor bool

const (
	colReset  = "\033[0m"
	colBold   = "\033[1m"
	colDim    = "\033[2m"
	colGreen  = "\033[32m"
	colRed    = "\033[31m"
	colYellow = "\033[33m"
	colCyan   = "\033[36m"
)

func c(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + colReset
}
func bold(s string) string { return c(colBold, s) }
func dim(s string) string  { return c(colDim, s) }
func good(s string) string { return c(colGreen, s) }
func warn(s string) string { return c(colYellow, s) }
func bad(s string) string  { return c(colRed, s) }
func cyan(s string) string { return c(colCyan, s) }
func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }

const maxSelfPlaySteps = 20000

var errStopped = errors.New("self-play stopped")

// runSelfPlay plays policy bots through the registry, so every game is journaled
// exactly like a served one. Invariants are checked after every accepted operation.
// Bots rotate one seat per game so seat order and policy strength stay separable.
func runSelfPlay(ctx context.Context, cfg Config, reg *engine.Registry, rng *rand.Rand, lg *zap.Logger) (*SelfPlayStats, error) {
	n := cfg.SelfPlayPlayers
	names := cfg.SelfPlayPolicies
	if len(names) == 0 {
		names = []string{"random"}
	}
	pols := make([]agent.Policy, len(names))
	for i, name := range names {
		p, err := agent.LookupPolicy(name)
		if err != nil {
			return nil, err
		}
		pols[i] = p
	}

	st := newSelfPlayStats(n, names)
	for g := 0; g < cfg.SelfPlayGames; g++ {
		if ctx.Err() != nil {
			return st, errStopped
		}
		ids := make([]string, n)
		seatOf := make(map[string]int, n)
		policyOf := make(map[string]int, n)
		for seat := range ids {
			bot := (seat + g) % n
			ids[seat] = fmt.Sprintf("bot-%d", bot+1)
			seatOf[ids[seat]] = seat
			policyOf[ids[seat]] = bot % len(pols)
		}

		lobby := fmt.Sprintf("selfplay-%d", g+1)
		s, _, err := reg.Start(lobby, ids, nil)
		if err != nil {
			return st, err
		}
		steps, err := playOut(ctx, s, rng, func(id string) agent.Policy { return pols[policyOf[id]] })
		reg.Remove(lobby)
		if err != nil {
			return st, fmt.Errorf("game %d (%s, seed %d): %w", g+1, s.GameID, s.Seed, err)
		}
		standings, _ := s.Standings()
		st.addGame(seatOf, standings, s.History, steps)

		seatPolicy := make([]string, n)
		for id, seat := range seatOf {
			seatPolicy[seat] = names[policyOf[id]]
		}
		st.addRated(seatPolicy, seatOf, standings)
		lg.Debug("self-play game finished", zap.String("lobby", lobby), zap.String("game", s.GameID),
			zap.String("winner", standings.Winner), zap.String("policy", names[policyOf[standings.Winner]]),
			zap.Int("steps", steps))
	}
	return st, nil
}

func playOut(ctx context.Context, s *engine.Session, rng *rand.Rand, policyFor func(string) agent.Policy) (int, error) {
	for steps := 0; steps < maxSelfPlaySteps; steps++ {
		if _, over := s.WinnerID(); over {
			return steps, nil
		}
		if ctx.Err() != nil {
			return steps, errStopped
		}
		snap := s.Snapshot()
		actor := snap.CurrentID()
		if snap.Pending.Open() {
			actor = snap.Pending.Actor
		}
		obs := agent.BuildObservation(snap, actor)
		a, ok := policyFor(actor)(obs, rng)
		if !ok {
			return steps, fmt.Errorf("%s has no legal action", actor)
		}
		if err := agent.Validate(obs, a); err != nil {
			return steps, err
		}
		res, err := agent.Dispatch(s, actor, a)
		if err != nil {
			return steps, fmt.Errorf("%s %s: %w", actor, a.Action, err)
		}
		if err := checkState(res.State); err != nil {
			return steps, err
		}
	}
	return maxSelfPlaySteps, fmt.Errorf("no winner after %d steps", maxSelfPlaySteps)
}

// checkState verifies the observable session invariants.
func checkState(s engine.Snapshot) error {
	if got := s.CardsInPlay(); got != s.Total {
		return fmt.Errorf("card conservation: %d in play, %d dealt", got, s.Total)
	}
	if s.ToDraw < 0 {
		return fmt.Errorf("negative draw obligation %d", s.ToDraw)
	}
	if len(s.Players) > 0 && (s.Current < 0 || s.Current >= len(s.Players)) {
		return fmt.Errorf("current seat %d out of range [0,%d)", s.Current, len(s.Players))
	}
	if s.Winner != "" && len(s.Players) != 1 {
		return fmt.Errorf("winner %s declared with %d seats left", s.Winner, len(s.Players))
	}
	seen := map[string]bool{}
	for _, p := range s.Players {
		seen[p.ID] = true
	}
	for _, id := range s.Eliminated {
		if seen[id] {
			return fmt.Errorf("%s is both seated and eliminated", id)
		}
	}
	return nil
}

func printReport(st *SelfPlayStats, rng *rand.Rand) {
	games := len(st.Turns)
	section(fmt.Sprintf("SELF-PLAY  %d games  %d seats", games, len(st.Seats)))
	fair := 1.0 / float64(len(st.Seats))
	for i := range st.Seats {
		s := &st.Seats[i]
		lo, hi := WilsonCI95(s.Wins, 0, s.Games)
		rate := fmt.Sprintf("%5.1f%%", 100*s.WinRate())
		switch {
		case lo > fair:
			rate = good(rate)
		case hi < fair:
			rate = bad(rate)
		}
		fmt.Printf("%s seat %d  win %s  %s  place %.2f  first-out %d  defuses %d  steals %d  plays %d  draws %d\n",
			dim("•"), i+1, rate, dim(fmt.Sprintf("[%.1f%%, %.1f%%]", 100*lo, 100*hi)),
			s.MeanPlacement(), s.FirstOut, s.Defuses, s.Steals, s.CardsPlay, s.Draws)
	}

	lo, hi := BootstrapCI95(rng, st.Turns, 1000)
	fmt.Printf("%s turns/game  %s  %s\n", dim("•"), cyan(fmt.Sprintf("%.1f", mean(st.Turns))),
		dim(fmt.Sprintf("95%% CI [%.1f, %.1f]", lo, hi)))
	fmt.Printf("%s ops/game    %s\n", dim("•"), cyan(fmt.Sprintf("%.1f", mean(st.Steps))))

	if len(st.Policies) > 1 {
		section("POLICY RATINGS")
		for _, p := range st.Ratings.Table() {
			g := st.Ratings.Glicko[p]
			lo, hi := WilsonCI95(st.PolicyWins[p], 0, st.PolicySeats[p])
			fmt.Printf("%s %-10s glicko %s ±%.0f  elo %.0f  win %.1f%% %s\n", dim("•"), p,
				cyan(fmt.Sprintf("%.0f", g.Rating)), 2*g.RD, st.Ratings.Elo.Ratings[p],
				100*float64(st.PolicyWins[p])/math.Max(1, float64(st.PolicySeats[p])),
				dim(fmt.Sprintf("[%.1f%%, %.1f%%]", 100*lo, 100*hi)))
		}
	}

	kinds := make([]string, 0, len(st.Actions))
	for k := range st.Actions {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	section("ACTION MIX")
	for _, k := range kinds {
		label := k
		if engine.ActionKind(k) == engine.ActEliminated {
			label = warn(k)
		}
		fmt.Printf("  %-26s %d\n", label, st.Actions[engine.ActionKind(k)])
	}
}
