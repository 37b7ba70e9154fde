package main

import (
	"math"
	"sort"
)

// Multiplayer games are rated as a round robin of pairwise results: for every pair
// of players, the one placed better scored 1 against the other.

// pairScores returns, for each player, the score against every opponent.
// placement maps player -> place (1 = winner).
func pairScores(placement map[string]int) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(placement))
	for a, pa := range placement {
		out[a] = map[string]float64{}
		for b, pb := range placement {
			if a == b {
				continue
			}
			switch {
			case pa < pb:
				out[a][b] = 1
			case pa > pb:
				out[a][b] = 0
			default:
				out[a][b] = 0.5
			}
		}
	}
	return out
}

// ===== Elo =====

type Elo struct {
	Ratings map[string]float64
	K       float64
	Games   int
}

func NewElo(start, k float64, players []string) *Elo {
	e := &Elo{Ratings: map[string]float64{}, K: k}
	for _, p := range players {
		e.Ratings[p] = start
	}
	return e
}

func (e *Elo) expect(a, b string) float64 {
	return 1.0 / (1.0 + math.Pow(10, (e.Ratings[b]-e.Ratings[a])/400.0))
}

// UpdateGame applies one game. K is split across the n-1 pairings so a game moves a
// rating about as much as a single heads-up result, then annealed over games.
func (e *Elo) UpdateGame(placement map[string]int) map[string]float64 {
	scores := pairScores(placement)
	n := len(placement)
	if n < 2 {
		return nil
	}
	k := e.K / float64(n-1) * decay(e.Games)
	deltas := make(map[string]float64, n)
	for a, row := range scores {
		for b, s := range row {
			deltas[a] += k * (s - e.expect(a, b))
		}
	}
	for p, d := range deltas {
		e.Ratings[p] += d
	}
	e.Games++
	return deltas
}

func decay(games int) float64 {
	return 1.0 / (1.0 + 0.01*float64(games))
}

// ===== Glicko-2 =====

const (
	g2Scale = 173.7178
	g2Tau   = 0.5
)

// Glicko2 holds public 1500-scale values.
type Glicko2 struct {
	Rating     float64
	RD         float64
	Volatility float64
	Games      int
}

func NewGlicko2() *Glicko2 {
	return &Glicko2{Rating: 1500, RD: 350, Volatility: 0.06}
}

func (p Glicko2) muPhi() (mu, phi float64) { return (p.Rating - 1500) / g2Scale, p.RD / g2Scale }

func gPhi(phi float64) float64 { return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi)) }

type glickoResult struct {
	opp Glicko2 // as of the start of the period
	s   float64
}

// update runs one rating period. Each self-play game is one period.
func (p *Glicko2) update(results []glickoResult) {
	mu, phi := p.muPhi()
	if len(results) == 0 {
		phi = math.Sqrt(phi*phi + p.Volatility*p.Volatility)
		p.RD = phi * g2Scale
		return
	}

	var invV, sum float64
	for _, r := range results {
		muj, phij := r.opp.muPhi()
		gj := gPhi(phij)
		e := 1 / (1 + math.Exp(-gj*(mu-muj)))
		invV += gj * gj * e * (1 - e)
		sum += gj * (r.s - e)
	}
	v := 1 / invV
	delta := v * sum
	sigma := p.newVolatility(phi, v, delta)

	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	muNew := mu + phiNew*phiNew*sum

	p.Rating = muNew*g2Scale + 1500
	p.RD = phiNew * g2Scale
	p.Volatility = sigma
	p.Games++
}

// newVolatility solves the Glicko-2 volatility equation with the Illinois method.
func (p *Glicko2) newVolatility(phi, v, delta float64) float64 {
	a := math.Log(p.Volatility * p.Volatility)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		d := phi*phi + v + ex
		return ex*(delta*delta-phi*phi-v-ex)/(2*d*d) - (x-a)/(g2Tau*g2Tau)
	}
	lo := a
	var hi float64
	if delta*delta > phi*phi+v {
		hi = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*g2Tau) < 0 && k < 1e6 {
			k++
		}
		hi = a - k*g2Tau
	}
	fLo, fHi := f(lo), f(hi)
	for i := 0; i < 100 && math.Abs(hi-lo) > 1e-6; i++ {
		mid := lo + (lo-hi)*fLo/(fHi-fLo)
		fMid := f(mid)
		if math.IsNaN(fMid) || math.IsInf(fMid, 0) {
			break
		}
		if fMid*fHi <= 0 {
			lo, fLo = hi, fHi
		} else {
			fLo /= 2
		}
		hi, fHi = mid, fMid
	}
	return math.Exp(lo / 2)
}

// Ratings tracks both systems per policy name across self-play games.
type Ratings struct {
	Elo    *Elo
	Glicko map[string]*Glicko2
}

func NewRatings(players []string) *Ratings {
	r := &Ratings{Elo: NewElo(1500, 24, players), Glicko: map[string]*Glicko2{}}
	for _, p := range players {
		r.Glicko[p] = NewGlicko2()
	}
	return r
}

// AddGame rates one finished game. seats[i] is the policy at seat i. Seats sharing a
// policy collapse to that policy's best placement.
func (r *Ratings) AddGame(seats []string, placeBySeat []int) {
	placement := map[string]int{}
	for i, p := range seats {
		if prev, ok := placement[p]; !ok || placeBySeat[i] < prev {
			placement[p] = placeBySeat[i]
		}
	}
	if len(placement) < 2 {
		return
	}
	r.Elo.UpdateGame(placement)

	start := make(map[string]Glicko2, len(r.Glicko))
	for p, g := range r.Glicko {
		start[p] = *g
	}
	scores := pairScores(placement)
	for p, row := range scores {
		results := make([]glickoResult, 0, len(row))
		for opp, s := range row {
			results = append(results, glickoResult{opp: start[opp], s: s})
		}
		r.Glicko[p].update(results)
	}
}

// Table returns policy names ordered by Glicko rating, best first.
func (r *Ratings) Table() []string {
	out := make([]string, 0, len(r.Glicko))
	for p := range r.Glicko {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return r.Glicko[out[i]].Rating > r.Glicko[out[j]].Rating })
	return out
}
