// Package rating implements the Glicko-2 skill model used by the balancer
// and the match lifecycle. Variable names follow the conventions of Mark
// Glickman's paper (mu, phi, sigma, tau, g, E).
//
// See https://www.glicko.net/glicko/glicko2.pdf.
package rating

import (
	"fmt"
	"math"

	"github.com/dom/inhouse-league/internal/domain"
)

const (
	scale   = 173.7178
	tau     = 0.5
	epsilon = 1e-6

	volatilityMin = 1e-4
	volatilityMax = 0.5
)

// Skill is a player's strength estimate on the public 1500 scale.
type Skill struct {
	Rating     float64
	RD         float64
	Volatility float64
}

// DefaultSkill returns the standard starting estimate for an unrated player.
func DefaultSkill() Skill {
	return Skill{
		Rating:     domain.DefaultRating,
		RD:         domain.DefaultRD,
		Volatility: domain.DefaultVolatility,
	}
}

// SkillOf extracts a usable skill estimate from a player, falling back to
// legacy MMR and then to the defaults.
func SkillOf(p *domain.Player) Skill {
	if p.HasRating() {
		return Skill{Rating: p.Rating, RD: p.RD, Volatility: p.Volatility}
	}
	s := DefaultSkill()
	if p.LegacyMMR != nil {
		s.Rating = *p.LegacyMMR
	}
	return s
}

// Value returns the player's strength scalar used for balancing.
func Value(p *domain.Player) float64 {
	return SkillOf(p).Rating
}

// EffectiveValue applies the off-role multiplier when the assigned role is
// outside the player's preferred set.
func EffectiveValue(p *domain.Player, role domain.Role, offRoleMultiplier float64) float64 {
	v := Value(p)
	if p.RoleSet().Has(role) {
		return v
	}
	return v * offRoleMultiplier
}

// ToDisplay maps a raw rating to its UI representation. Internal reasoning
// always uses the raw rating.
func ToDisplay(rating float64) float64 {
	return math.Round(rating)
}

// Outcome is one opponent's result within a rating period: score 1 for a
// win over them, 0 for a loss.
type Outcome struct {
	OpponentRating float64
	OpponentRD     float64
	Score          float64
}

// Participant pairs a player id with the skill snapshot the update reads.
type Participant struct {
	PlayerID int64
	Skill    Skill
	Won      bool
}

func toMu(rating float64) float64 { return (rating - 1500.0) / scale }
func toPhi(rd float64) float64    { return rd / scale }

func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

func e(mu, muJ, phiJ float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phiJ)*(mu-muJ)))
}

// Update applies a single Glicko-2 rating period to one player given their
// outcomes, returning the new skill with deviation and volatility clamped.
func Update(s Skill, outcomes []Outcome) (Skill, error) {
	if math.IsNaN(s.Rating) || math.IsNaN(s.RD) || s.RD <= 0 {
		return Skill{}, fmt.Errorf("%w: bad skill input (rating=%v rd=%v)", domain.ErrInvariantViolation, s.Rating, s.RD)
	}

	mu := toMu(s.Rating)
	phi := toPhi(s.RD)
	sigma := s.Volatility
	if sigma <= 0 {
		sigma = domain.DefaultVolatility
	}

	if len(outcomes) == 0 {
		// No games: deviation grows, rating unchanged.
		phiStar := math.Sqrt(phi*phi + sigma*sigma)
		out := Skill{Rating: s.Rating, RD: phiStar * scale, Volatility: sigma}
		clampSkill(&out)
		return out, nil
	}

	var v, deltaSum float64
	for _, o := range outcomes {
		muJ := toMu(o.OpponentRating)
		phiJ := toPhi(o.OpponentRD)
		gj := g(phiJ)
		ej := e(mu, muJ, phiJ)
		v += gj * gj * ej * (1 - ej)
		deltaSum += gj * (o.Score - ej)
	}
	v = 1.0 / v
	delta := v * deltaSum

	sigmaPrime := solveVolatility(sigma, delta, phi, v)

	phiStar := math.Sqrt(phi*phi + sigmaPrime*sigmaPrime)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := mu + phiPrime*phiPrime*deltaSum

	out := Skill{
		Rating:     muPrime*scale + 1500.0,
		RD:         phiPrime * scale,
		Volatility: sigmaPrime,
	}
	if math.IsNaN(out.Rating) || math.IsInf(out.Rating, 0) {
		return Skill{}, fmt.Errorf("%w: rating update diverged", domain.ErrInvariantViolation)
	}
	clampSkill(&out)
	return out, nil
}

// solveVolatility runs the iterative root finder of step 5 of the paper.
func solveVolatility(sigma, delta, phi, v float64) float64 {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		B = a - k*tau
	}

	fA, fB := f(A), f(B)
	for math.Abs(B-A) > epsilon {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(A / 2.0)
}

func clampSkill(s *Skill) {
	if s.Rating < domain.RatingMin {
		s.Rating = domain.RatingMin
	}
	if s.Rating > domain.RatingMax {
		s.Rating = domain.RatingMax
	}
	if s.RD < domain.RDMin {
		s.RD = domain.RDMin
	}
	if s.RD > domain.RDMax {
		s.RD = domain.RDMax
	}
	if s.Volatility < volatilityMin {
		s.Volatility = volatilityMin
	}
	if s.Volatility > volatilityMax {
		s.Volatility = volatilityMax
	}
}

// TeamWinProbability estimates the chance that team A beats team B from the
// per-team aggregates: summed effective values with RD propagated in
// quadrature.
func TeamWinProbability(teamAValues, teamBValues, teamARDs, teamBRDs []float64) (float64, error) {
	if len(teamAValues) == 0 || len(teamBValues) == 0 {
		return 0, fmt.Errorf("%w: empty team", domain.ErrInvalidInput)
	}
	var sumA, sumB, varA, varB float64
	for _, v := range teamAValues {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: NaN team value", domain.ErrInvariantViolation)
		}
		sumA += v
	}
	for _, v := range teamBValues {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: NaN team value", domain.ErrInvariantViolation)
		}
		sumB += v
	}
	for _, rd := range teamARDs {
		varA += rd * rd
	}
	for _, rd := range teamBRDs {
		varB += rd * rd
	}

	// Average the team aggregates back onto the player scale so the usual
	// glicko expectation applies.
	n := float64(len(teamAValues))
	muA := toMu(sumA / n)
	muB := toMu(sumB / float64(len(teamBValues)))
	phi := toPhi(math.Sqrt(varA+varB) / n)
	return 1.0 / (1.0 + math.Exp(-g(phi)*(muA-muB))), nil
}

// UpdateAfterMatch applies one rating period covering a single match. Every
// winner faces the five losers with score 1 and vice versa. Returned skills
// are in participant order; inputs are not mutated.
func UpdateAfterMatch(participants []Participant) ([]Skill, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", domain.ErrInvalidInput)
	}
	var winners, losers []Participant
	for _, p := range participants {
		if p.Won {
			winners = append(winners, p)
		} else {
			losers = append(losers, p)
		}
	}
	if len(winners) == 0 || len(losers) == 0 {
		return nil, fmt.Errorf("%w: one-sided participant list", domain.ErrInvalidInput)
	}

	out := make([]Skill, len(participants))
	for i, p := range participants {
		opponents := losers
		score := 1.0
		if !p.Won {
			opponents = winners
			score = 0.0
		}
		outcomes := make([]Outcome, len(opponents))
		for j, o := range opponents {
			outcomes[j] = Outcome{
				OpponentRating: o.Skill.Rating,
				OpponentRD:     o.Skill.RD,
				Score:          score,
			}
		}
		updated, err := Update(p.Skill, outcomes)
		if err != nil {
			return nil, err
		}
		out[i] = updated
	}
	return out, nil
}
