package balancer

import (
	"container/heap"
	"math/rand"
	"sort"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/rating"
)

// candidate is one fully scored configuration.
type candidate struct {
	teamA, teamB   [5]int
	permA, permB   [5]domain.Role
	valueA, valueB float64
	offA, offB     int
	excluded       []int
	cost           float64
	valueDiff      float64
	key            string
}

// search carries the state of one Balance call.
type search struct {
	players []Player
	w       Weights
	cache   *RoleCache
	excl    map[int64]int
	recent  map[int64]struct{}
	avoids  [][2]int64
	deals   [][2]int64
	rng     *rand.Rand

	best    *candidate
	top     *matchupHeap
	seq     int
	floor   float64
	pruning bool
	done    bool
}

// costFloor is the lowest cost any configuration can reach: every additive
// term at zero and the RD bonus maxed by the ten highest deviations. A
// candidate hitting it cannot be beaten.
func costFloor(players []Player, w Weights) float64 {
	rds := make([]float64, len(players))
	for i, p := range players {
		rds[i] = p.RD
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rds)))
	var sum float64
	for i := 0; i < poolExact && i < len(rds); i++ {
		sum += rds[i]
	}
	return -w.RDPriorityWeight * sum
}

// selectionBase computes the split-independent cost terms for a selection:
// exclusion fairness, rotation penalty, and the RD uncertainty bonus. All
// remaining terms are non-negative, so this is a valid lower bound.
func (s *search) selectionBase(sel []int) float64 {
	inSel := make(map[int]struct{}, len(sel))
	for _, i := range sel {
		inSel[i] = struct{}{}
	}

	var exclPen, recentPen, rdBonus float64
	for i, p := range s.players {
		if _, ok := inSel[i]; !ok {
			exclPen += float64(s.excl[p.ID])
			continue
		}
		if _, recent := s.recent[p.ID]; recent {
			recentPen++
		}
		rdBonus += p.RD
	}
	return s.w.ExclusionWeight*exclPen +
		s.w.RecentWeight*recentPen -
		s.w.RDPriorityWeight*rdBonus
}

// evalSelection scores every canonical 5/5 split of a 10-player selection.
func (s *search) evalSelection(sel []int) {
	base := s.selectionBase(sel)
	if s.pruning && s.best != nil && base >= s.best.cost {
		return
	}
	s.forEachSplit(sel, base)
}

// forEachSplit enumerates the 126 canonical splits: sel[0] is pinned to
// team A so each unordered pair of teams appears once.
func (s *search) forEachSplit(sel []int, base float64) {
	rest := sel[1:]
	combinations(len(rest), 4, func(pick []int) bool {
		var teamA, teamB [5]int
		teamA[0] = sel[0]
		inA := make(map[int]bool, 4)
		for i, j := range pick {
			teamA[i+1] = rest[j]
			inA[j] = true
		}
		bi := 0
		for j := range rest {
			if !inA[j] {
				teamB[bi] = rest[j]
				bi++
			}
		}
		s.evalSplit(sel, teamA, teamB, base)
		return !s.done
	})
}

// evalSplit optimizes roles for a fixed split and challenges the incumbent.
func (s *search) evalSplit(sel []int, teamA, teamB [5]int, base float64) {
	if s.pruning && s.best != nil {
		var sumA, sumB float64
		for i := 0; i < 5; i++ {
			sumA += s.players[teamA[i]].Value
			sumB += s.players[teamB[i]].Value
		}
		lb := sumA - sumB
		if lb < 0 {
			lb = -lb
		}
		if base+lb >= s.best.cost {
			return
		}
	}

	splitBase := base + s.pairPenalties(teamA, teamB)

	var prefsA, prefsB [5]domain.RoleSet
	for i := 0; i < 5; i++ {
		prefsA[i] = s.players[teamA[i]].Roles
		prefsB[i] = s.players[teamB[i]].Roles
	}
	permsA := s.cache.OptimalPermutations(prefsA)
	permsB := s.cache.OptimalPermutations(prefsB)
	offA := offRoleCount(prefsA, permsA[0])
	offB := offRoleCount(prefsB, permsB[0])
	splitBase += s.w.OffRoleFlatPenalty * float64(offA+offB)

	if len(permsA) > maxPermsPerTeam {
		permsA = permsA[:maxPermsPerTeam]
	}
	if len(permsB) > maxPermsPerTeam {
		permsB = permsB[:maxPermsPerTeam]
	}

	var splitBest *candidate
	for _, pa := range permsA {
		var effA [6]float64
		var valueA float64
		for i := 0; i < 5; i++ {
			ev := s.effectiveValue(s.players[teamA[i]], pa[i])
			effA[pa[i]] = ev
			valueA += ev
		}
		for _, pb := range permsB {
			var effB [6]float64
			var valueB float64
			for i := 0; i < 5; i++ {
				ev := s.effectiveValue(s.players[teamB[i]], pb[i])
				effB[pb[i]] = ev
				valueB += ev
			}

			diff := valueA - valueB
			if diff < 0 {
				diff = -diff
			}
			cost := splitBase + diff + s.w.RoleMatchupWeight*laneMatchupDelta(effA, effB)

			c := &candidate{
				teamA: teamA, teamB: teamB,
				permA: pa, permB: pb,
				valueA: valueA, valueB: valueB,
				offA: offA, offB: offB,
				cost:      cost,
				valueDiff: diff,
			}
			if splitBest == nil || s.better(c, splitBest) {
				splitBest = c
			}
		}
	}
	if splitBest == nil {
		return
	}

	splitBest.excluded = s.excludedIndices(sel)
	s.offer(splitBest)
}

// pairPenalties sums the soft-avoid and package-deal terms for a split.
func (s *search) pairPenalties(teamA, teamB [5]int) float64 {
	if len(s.avoids) == 0 && len(s.deals) == 0 {
		return 0
	}
	side := make(map[int64]int, 10)
	for i := 0; i < 5; i++ {
		side[s.players[teamA[i]].ID] = 1
		side[s.players[teamB[i]].ID] = 2
	}
	var pen float64
	for _, pair := range s.avoids {
		sa, oka := side[pair[0]]
		sb, okb := side[pair[1]]
		if oka && okb && sa == sb {
			pen += s.w.SoftAvoidPenalty
		}
	}
	for _, pair := range s.deals {
		sa, oka := side[pair[0]]
		sb, okb := side[pair[1]]
		if oka && okb && sa != sb {
			pen += s.w.PackageDealPenalty
		}
	}
	return pen
}

func (s *search) excludedIndices(sel []int) []int {
	if len(sel) == len(s.players) {
		return nil
	}
	inSel := make(map[int]struct{}, len(sel))
	for _, i := range sel {
		inSel[i] = struct{}{}
	}
	var out []int
	for i := range s.players {
		if _, ok := inSel[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// offer challenges the incumbent with a scored candidate and feeds the
// diagnostics heap.
func (s *search) offer(c *candidate) {
	s.seq++
	s.top.push(s.summarize(c), c.cost, s.seq)

	if s.best == nil || s.better(c, s.best) {
		s.best = c
		if c.cost <= s.floor {
			s.done = true
		}
	}
}

// better applies the deterministic tie-break chain: cost, then value diff,
// then total off-role count, then the canonical name key.
func (s *search) better(a, b *candidate) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.valueDiff != b.valueDiff {
		return a.valueDiff < b.valueDiff
	}
	if a.offA+a.offB != b.offA+b.offB {
		return a.offA+a.offB < b.offA+b.offB
	}
	return s.candidateKey(a) < s.candidateKey(b)
}

func (s *search) candidateKey(c *candidate) string {
	if c.key == "" {
		c.key = nameKey(s.teamNames(c.teamA), s.teamNames(c.teamB))
	}
	return c.key
}

func (s *search) teamNames(team [5]int) []string {
	names := make([]string, 5)
	for i, idx := range team {
		names[i] = s.players[idx].Name
	}
	sort.Strings(names)
	return names
}

func (s *search) summarize(c *candidate) MatchupSummary {
	return MatchupSummary{
		Cost:      c.cost,
		ValueDiff: c.valueDiff,
		OffRole:   c.offA + c.offB,
		Radiant:   s.teamNames(c.teamA),
		Dire:      s.teamNames(c.teamB),
	}
}

// exhaustiveSelections walks every C(n,10) selection (pools of 11-13).
func (s *search) exhaustiveSelections(n int) {
	combinations(n, poolExact, func(sel []int) bool {
		s.evalSelection(sel)
		return !s.done
	})
}

// branchAndBound handles the 14-player pool: a snake-draft greedy seed
// establishes the upper bound, then selections and splits are pruned by
// the selection-level bound and the raw value-diff bound.
func (s *search) branchAndBound() {
	s.greedySeed()
	s.pruning = true
	combinations(len(s.players), poolExact, func(sel []int) bool {
		s.evalSelection(sel)
		return !s.done
	})
	s.pruning = false
}

// greedySeed evaluates the snake-draft split of the ten strongest players.
func (s *search) greedySeed() {
	order := identity(len(s.players))
	sort.Slice(order, func(i, j int) bool {
		pi, pj := s.players[order[i]], s.players[order[j]]
		if pi.Value != pj.Value {
			return pi.Value > pj.Value
		}
		if pi.Name != pj.Name {
			return pi.Name < pj.Name
		}
		return pi.ID < pj.ID
	})

	sel := make([]int, poolExact)
	copy(sel, order[:poolExact])
	sort.Ints(sel)

	// 1-2-2-1 snake over the value-sorted ten.
	var teamA, teamB [5]int
	snake := [poolExact]int{1, 2, 2, 1, 1, 2, 2, 1, 1, 2}
	ai, bi := 0, 0
	for i, team := range snake {
		if team == 1 {
			teamA[ai] = order[i]
			ai++
		} else {
			teamB[bi] = order[i]
			bi++
		}
	}
	s.evalSplit(sel, teamA, teamB, s.selectionBase(sel))
}

// sampledSelections bounds runtime for oversized pools by drawing unique
// selections with a deterministic RNG.
func (s *search) sampledSelections(n int) {
	total := binomial(n, poolExact)
	if total <= int64(s.w.SampleCap) {
		s.exhaustiveSelections(n)
		return
	}

	rng := s.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	seen := make(map[string]struct{}, s.w.SampleCap)
	idx := identity(n)
	sel := make([]int, poolExact)
	for len(seen) < s.w.SampleCap && !s.done {
		// Partial Fisher-Yates: the first ten entries become the draw.
		for i := 0; i < poolExact; i++ {
			j := i + rng.Intn(n-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		copy(sel, idx[:poolExact])
		sort.Ints(sel)

		key := selectionKey(sel)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.evalSelection(sel)
	}
}

func selectionKey(sel []int) string {
	buf := make([]byte, 0, len(sel)*2)
	for _, v := range sel {
		buf = append(buf, byte(v), ',')
	}
	return string(buf)
}

// buildResult converts the winning candidate to the public result with
// canonical team labels.
func (s *search) buildResult() (*Result, error) {
	c := s.best

	radiant := s.buildTeam(c.teamA, c.permA, c.valueA, c.offA)
	dire := s.buildTeam(c.teamB, c.permB, c.valueB, c.offB)

	// Canonical labeling: the lexicographically smaller name tuple plays
	// Radiant, so equal inputs always produce identical output.
	if nameTuple(dire.Names()) < nameTuple(radiant.Names()) {
		radiant, dire = dire, radiant
	}

	firstPick := domain.SideRadiant
	if dire.Value < radiant.Value {
		firstPick = domain.SideDire
	}

	winProb, err := rating.TeamWinProbability(
		s.teamEffValues(radiant), s.teamEffValues(dire),
		teamRDs(radiant), teamRDs(dire),
	)
	if err != nil {
		return nil, err
	}

	excluded := make([]Player, len(c.excluded))
	for i, idx := range c.excluded {
		excluded[i] = s.players[idx]
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })

	return &Result{
		Radiant:   radiant,
		Dire:      dire,
		Excluded:  excluded,
		ValueDiff: c.valueDiff,
		Cost:      c.cost,
		FirstPick: firstPick,
		WinProb:   winProb,
		Top:       s.top.sorted(),
	}, nil
}

// buildTeam orders slots by assigned position: slot i holds position i+1.
func (s *search) buildTeam(team [5]int, perm [5]domain.Role, value float64, offRole int) TeamResult {
	var t TeamResult
	for i := 0; i < 5; i++ {
		slot := int(perm[i]) - 1
		t.Players[slot] = s.players[team[i]]
		t.Roles[slot] = perm[i]
	}
	t.Value = value
	t.OffRole = offRole
	return t
}

func (s *search) teamEffValues(t TeamResult) []float64 {
	vals := make([]float64, 5)
	for i := range t.Players {
		vals[i] = s.effectiveValue(t.Players[i], t.Roles[i])
	}
	return vals
}

func teamRDs(t TeamResult) []float64 {
	rds := make([]float64, 5)
	for i, p := range t.Players {
		rds[i] = p.RD
	}
	return rds
}

func nameTuple(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

// combinations invokes fn with each k-subset of [0,n) in lexicographic
// order. fn returns false to stop early. The slice is reused; fn must not
// retain it.
func combinations(n, k int, fn func([]int) bool) {
	if k > n || k < 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		// Advance to the next combination.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func binomial(n, k int) int64 {
	if k > n-k {
		k = n - k
	}
	result := int64(1)
	for i := int64(0); i < int64(k); i++ {
		result = result * (int64(n) - i) / (i + 1)
		if result > 1<<40 {
			return result
		}
	}
	return result
}

// matchupHeap keeps the K lowest-cost matchups seen. Ordering uses only the
// numeric cost and an insertion sequence number.
type matchupHeap struct {
	cap     int
	entries []heapEntry
}

type heapEntry struct {
	summary MatchupSummary
	cost    float64
	seq     int
}

func newMatchupHeap(capacity int) *matchupHeap {
	return &matchupHeap{cap: capacity}
}

func (h *matchupHeap) Len() int { return len(h.entries) }

// Less makes this a max-heap on (cost, seq) so the worst kept matchup sits
// at the root.
func (h *matchupHeap) Less(i, j int) bool {
	if h.entries[i].cost != h.entries[j].cost {
		return h.entries[i].cost > h.entries[j].cost
	}
	return h.entries[i].seq > h.entries[j].seq
}

func (h *matchupHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *matchupHeap) Push(x any) { h.entries = append(h.entries, x.(heapEntry)) }

func (h *matchupHeap) Pop() any {
	old := h.entries
	n := len(old)
	x := old[n-1]
	h.entries = old[:n-1]
	return x
}

func (h *matchupHeap) push(summary MatchupSummary, cost float64, seq int) {
	if h.cap <= 0 {
		return
	}
	entry := heapEntry{summary: summary, cost: cost, seq: seq}
	if len(h.entries) < h.cap {
		heap.Push(h, entry)
		return
	}
	if cost < h.entries[0].cost {
		h.entries[0] = entry
		heap.Fix(h, 0)
	}
}

func (h *matchupHeap) sorted() []MatchupSummary {
	out := make([]MatchupSummary, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.summary
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].ValueDiff < out[j].ValueDiff
	})
	return out
}
