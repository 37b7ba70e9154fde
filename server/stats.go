package main

import (
	"math"
	"math/rand"
	"sort"

	"kitten-arena/server/engine"
)

// SeatStats aggregates self-play outcomes for one starting seat.
type SeatStats struct {
	Games      int
	Wins       int
	FirstOut   int // eliminated first
	Defuses    int
	Steals     int
	CardsPlay  int
	Draws      int
	Placements int // sum of placements, for the mean
}

func (s *SeatStats) WinRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games)
}

func (s *SeatStats) MeanPlacement() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Placements) / float64(s.Games)
}

type SelfPlayStats struct {
	Seats   []SeatStats
	Turns   []float64 // turn count per game
	Steps   []float64 // accepted operations per game
	Actions map[engine.ActionKind]int

	Policies    []string
	PolicyWins  map[string]int
	PolicySeats map[string]int // seats played, so a policy on two seats counts twice
	Ratings     *Ratings
}

func newSelfPlayStats(seats int, policies []string) *SelfPlayStats {
	return &SelfPlayStats{
		Seats:       make([]SeatStats, seats),
		Actions:     map[engine.ActionKind]int{},
		Policies:    policies,
		PolicyWins:  map[string]int{},
		PolicySeats: map[string]int{},
		Ratings:     NewRatings(policies),
	}
}

// addRated credits a finished game to the policies. seatPolicy[i] plays seat i.
func (st *SelfPlayStats) addRated(seatPolicy []string, seatOf map[string]int, standings engine.Standings) {
	n := len(seatPolicy)
	place := make([]int, n)
	if seat, ok := seatOf[standings.Winner]; ok {
		place[seat] = 1
		st.PolicyWins[seatPolicy[seat]]++
	}
	for i, id := range standings.Eliminated {
		place[seatOf[id]] = n - i
	}
	for _, p := range seatPolicy {
		st.PolicySeats[p]++
	}
	st.Ratings.AddGame(seatPolicy, place)
}

// addGame folds one finished game in. seatOf maps player id to starting seat.
func (st *SelfPlayStats) addGame(seatOf map[string]int, standings engine.Standings, history []engine.Action, steps int) {
	n := len(seatOf)
	for _, seat := range seatOf {
		st.Seats[seat].Games++
	}
	if seat, ok := seatOf[standings.Winner]; ok {
		st.Seats[seat].Wins++
		st.Seats[seat].Placements++
	}
	for i, id := range standings.Eliminated {
		seat := seatOf[id]
		st.Seats[seat].Placements += n - i
		if i == 0 {
			st.Seats[seat].FirstOut++
		}
	}

	turns := 0
	for _, a := range history {
		st.Actions[a.Kind]++
		if a.Turn > turns {
			turns = a.Turn
		}
		seat, ok := seatOf[a.Actor]
		if !ok {
			continue
		}
		switch a.Kind {
		case engine.ActDefused:
			st.Seats[seat].Defuses++
		case engine.ActCatSteal:
			if stolen, _ := a.Payload["stolen"].(bool); stolen {
				st.Seats[seat].Steals++
			}
		case engine.ActDrawCard:
			st.Seats[seat].Draws++
		case engine.ActPlayShuffle, engine.ActPlaySkip, engine.ActPlaySeeFuture, engine.ActPlayAlterFuture,
			engine.ActPlayDrawBottom, engine.ActPlayFavor, engine.ActPlayAttack, engine.ActPlayTargeted, engine.ActCatCombo:
			st.Seats[seat].CardsPlay++
		}
	}
	st.Turns = append(st.Turns, float64(turns))
	st.Steps = append(st.Steps, float64(steps))
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// --------- CI helpers ---------

// WilsonCI95 for a Bernoulli win rate; ties count half.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 for the mean of values (e.g. game length in turns).
func BootstrapCI95(r *rand.Rand, vals []float64, B int) (low, hi float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[r.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
