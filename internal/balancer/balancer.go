// Package balancer jointly chooses included players, the 5v5 team
// partition, and per-player role assignment to minimize a composite cost.
// It is pure: independent calls are safe from multiple goroutines.
package balancer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/dom/inhouse-league/internal/domain"
)

// Player is the snapshot the balancer operates on. Value is the strength
// scalar selected by the caller's rating source.
type Player struct {
	ID    int64
	Name  string
	Value float64
	RD    float64
	Roles domain.RoleSet
}

// Weights is the full tuning surface of the composite cost.
type Weights struct {
	OffRoleMultiplier  float64
	OffRoleFlatPenalty float64
	RoleMatchupWeight  float64
	ExclusionWeight    float64
	RecentWeight       float64
	RDPriorityWeight   float64
	SoftAvoidPenalty   float64
	PackageDealPenalty float64
	SampleCap          int
	TopK               int
}

// DefaultWeights returns the production defaults.
func DefaultWeights() Weights {
	return Weights{
		OffRoleMultiplier:  0.9,
		OffRoleFlatPenalty: 350,
		RoleMatchupWeight:  1.0,
		ExclusionWeight:    5.0,
		RecentWeight:       25.0,
		RDPriorityWeight:   0.2,
		SoftAvoidPenalty:   500,
		PackageDealPenalty: 500,
		SampleCap:          2500,
		TopK:               5,
	}
}

// Input carries one balancing request.
type Input struct {
	Players         []Player
	ExclusionCounts map[int64]int
	RecentPlayerIDs map[int64]struct{}
	SoftAvoids      [][2]int64
	PackageDeals    [][2]int64
	Weights         Weights
	// Cache may be shared across calls; a private one is created when nil.
	Cache *RoleCache
	// Rand seeds selection sampling for oversized pools. Nil means the
	// deterministic seed 0.
	Rand *rand.Rand
}

// TeamResult is one balanced team. Slot i holds the player assigned
// position i+1.
type TeamResult struct {
	Players [5]Player
	Roles   [5]domain.Role
	Value   float64
	OffRole int
}

// Names returns the team's player names sorted lexicographically.
func (t *TeamResult) Names() []string {
	names := make([]string, 5)
	for i, p := range t.Players {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

// PlayerIDs returns the team's player ids in slot (position) order.
func (t *TeamResult) PlayerIDs() []int64 {
	ids := make([]int64, 5)
	for i, p := range t.Players {
		ids[i] = p.ID
	}
	return ids
}

// MatchupSummary is a diagnostic record of one high-ranking matchup.
type MatchupSummary struct {
	Cost      float64
	ValueDiff float64
	OffRole   int
	Radiant   []string
	Dire      []string
}

// Result is the best configuration found.
type Result struct {
	Radiant   TeamResult
	Dire      TeamResult
	Excluded  []Player
	ValueDiff float64
	Cost      float64
	FirstPick domain.Side
	WinProb   float64
	Top       []MatchupSummary
}

const (
	poolExact       = 10
	branchBoundSize = 14
	maxPermsPerTeam = 3
)

// Balance runs the optimizer over a pool of 10 or more players.
func Balance(in Input) (*Result, error) {
	n := len(in.Players)
	if n < poolExact {
		return nil, fmt.Errorf("%w: pool has %d players", domain.ErrInsufficientPlayers, n)
	}
	seen := make(map[int64]struct{}, n)
	for _, p := range in.Players {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: player %d", domain.ErrDuplicatePlayers, p.ID)
		}
		seen[p.ID] = struct{}{}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w: non-finite value for player %d", domain.ErrInvariantViolation, p.ID)
		}
	}

	w := in.Weights
	if w.OffRoleMultiplier <= 0 {
		w.OffRoleMultiplier = DefaultWeights().OffRoleMultiplier
	}
	if w.SampleCap <= 0 {
		w.SampleCap = DefaultWeights().SampleCap
	}
	if w.TopK <= 0 {
		w.TopK = DefaultWeights().TopK
	}

	cache := in.Cache
	if cache == nil {
		cache = NewRoleCache(DefaultRoleCacheSize)
	}

	s := &search{
		players: in.Players,
		w:       w,
		cache:   cache,
		excl:    in.ExclusionCounts,
		recent:  in.RecentPlayerIDs,
		avoids:  in.SoftAvoids,
		deals:   in.PackageDeals,
		top:     newMatchupHeap(w.TopK),
		rng:     in.Rand,
		floor:   costFloor(in.Players, w),
	}

	switch {
	case n == poolExact:
		s.evalSelection(identity(n))
	case n < branchBoundSize:
		s.exhaustiveSelections(n)
	case n == branchBoundSize:
		s.branchAndBound()
	default:
		s.sampledSelections(n)
	}

	if s.best == nil {
		return nil, fmt.Errorf("%w: no feasible configuration", domain.ErrInvariantViolation)
	}
	return s.buildResult()
}

// effectiveValue applies the off-role multiplier for the assigned position.
func (s *search) effectiveValue(p Player, role domain.Role) float64 {
	if p.Roles.Has(role) {
		return p.Value
	}
	return p.Value * s.w.OffRoleMultiplier
}

// laneMatchupDelta is the lane parity term: carry against enemy offlane on
// both sides, mid against mid, all on effective values.
func laneMatchupDelta(effA, effB [6]float64) float64 {
	return math.Abs(effA[domain.RoleCarry]-effB[domain.RoleOfflane]) +
		math.Abs(effB[domain.RoleCarry]-effA[domain.RoleOfflane]) +
		math.Abs(effA[domain.RoleMid]-effB[domain.RoleMid])
}

// nameKey canonicalizes a matchup for deterministic tie-breaking: both
// teams' name tuples sorted, the lexicographically smaller tuple first.
func nameKey(namesA, namesB []string) string {
	a := strings.Join(namesA, ",")
	b := strings.Join(namesB, ",")
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
