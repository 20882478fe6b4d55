package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dom/inhouse-league/internal/balancer"
	"github.com/dom/inhouse-league/internal/config"
	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/lock"
	"github.com/dom/inhouse-league/internal/logger"
	"github.com/dom/inhouse-league/internal/rating"
	"github.com/dom/inhouse-league/internal/repository"
)

// RatingSource selects which scalar the balancer's value function reads.
type RatingSource string

const (
	SourceGlicko    RatingSource = "glicko"
	SourceOpenskill RatingSource = "openskill"
	SourceBalance   RatingSource = "balance"
)

// IsValid checks if a rating source token is valid.
func (s RatingSource) IsValid() bool {
	return s == SourceGlicko || s == SourceOpenskill || s == SourceBalance
}

// MatchService owns per-guild pending-match state and drives it from
// shuffle through record or abort.
type MatchService struct {
	playerRepo repository.PlayerRepository
	matchRepo  repository.MatchRepository
	cfg        *config.Config

	shuffleLocks *lock.Coordinator
	recordLocks  *lock.Coordinator
	roleCache    *balancer.RoleCache

	mu      sync.Mutex
	pending map[int64][]*domain.PendingMatch
	nextID  map[int64]int64
}

func NewMatchService(
	playerRepo repository.PlayerRepository,
	matchRepo repository.MatchRepository,
	cfg *config.Config,
	shuffleLocks, recordLocks *lock.Coordinator,
) *MatchService {
	return &MatchService{
		playerRepo:   playerRepo,
		matchRepo:    matchRepo,
		cfg:          cfg,
		shuffleLocks: shuffleLocks,
		recordLocks:  recordLocks,
		roleCache:    balancer.NewRoleCache(balancer.DefaultRoleCacheSize),
		pending:      make(map[int64][]*domain.PendingMatch),
		nextID:       make(map[int64]int64),
	}
}

// ShuffleInput is one shuffle request.
type ShuffleInput struct {
	GuildID                int64
	PlayerIDs              []int64
	ExcludedConditionalIDs []int64
	Source                 RatingSource
	SoftAvoids             [][2]int64
	PackageDeals           [][2]int64
}

// Shuffle balances the pool and creates a pending match. Only one shuffle
// may be in flight per guild.
func (s *MatchService) Shuffle(ctx context.Context, input ShuffleInput) (*domain.PendingMatch, error) {
	guildID := lock.Normalize(input.GuildID)
	source := input.Source
	if source == "" {
		source = SourceGlicko
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: unknown rating source %q", domain.ErrInvalidInput, source)
	}

	if !s.shuffleLocks.TryAcquire(guildID) {
		if !s.shuffleLocks.CheckStale(guildID) || !s.shuffleLocks.TryAcquire(guildID) {
			return nil, domain.ErrShuffleInProgress
		}
		logger.Warn("recovered stale shuffle lock", "guild", guildID)
	}
	defer s.shuffleLocks.Release(guildID)

	players, err := s.playerRepo.List(ctx, input.PlayerIDs, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if len(players) < 10 {
		return nil, fmt.Errorf("%w: %d registered of %d requested", domain.ErrInsufficientPlayers, len(players), len(input.PlayerIDs))
	}

	s.mu.Lock()
	for _, pm := range s.pending[guildID] {
		for _, p := range players {
			if pm.HasPlayer(p.PlayerID) {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: player %d is already in pending match %d", domain.ErrInvalidInput, p.PlayerID, pm.ID)
			}
		}
	}
	s.mu.Unlock()

	exclusionCounts, err := s.playerRepo.GetExclusionCounts(ctx, input.PlayerIDs, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	recent, err := s.matchRepo.GetLastMatchParticipantIDs(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	pool := make([]balancer.Player, len(players))
	for i, p := range players {
		pool[i] = balancer.Player{
			ID:    p.PlayerID,
			Name:  p.Name,
			Value: valueFor(p, source),
			RD:    rating.SkillOf(p).RD,
			Roles: p.RoleSet(),
		}
	}

	result, err := balancer.Balance(balancer.Input{
		Players:         pool,
		ExclusionCounts: exclusionCounts,
		RecentPlayerIDs: recent,
		SoftAvoids:      input.SoftAvoids,
		PackageDeals:    input.PackageDeals,
		Weights:         s.weights(),
		Cache:           s.roleCache,
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Player, len(players))
	for _, p := range players {
		byID[p.PlayerID] = p
	}

	s.mu.Lock()
	s.nextID[guildID]++
	pm := &domain.PendingMatch{
		ID:                     s.nextID[guildID],
		GuildID:                guildID,
		Phase:                  domain.PhasePending,
		RadiantIDs:             result.Radiant.PlayerIDs(),
		DireIDs:                result.Dire.PlayerIDs(),
		ExcludedConditionalIDs: input.ExcludedConditionalIDs,
		Radiant:                buildTeam(result.Radiant, byID, s.cfg.OffRoleMultiplier),
		Dire:                   buildTeam(result.Dire, byID, s.cfg.OffRoleMultiplier),
		FirstPick:              result.FirstPick,
		ValueDiff:              result.ValueDiff,
		Goodness:               result.Cost,
		WinProb:                result.WinProb,
		BetLockUntil:           time.Now().Add(s.cfg.BetWindow),
		CreatedAt:              time.Now(),
		Submissions:            make(map[int64]domain.Submission),
	}
	for _, p := range result.Excluded {
		pm.ExcludedIDs = append(pm.ExcludedIDs, p.ID)
	}
	s.pending[guildID] = append(s.pending[guildID], pm)
	s.mu.Unlock()

	// Fairness memory: excluded players accrue credit, included players
	// pay half of theirs back.
	for _, p := range result.Excluded {
		if err := s.playerRepo.IncrementExclusionCount(ctx, p.ID, guildID); err != nil {
			logger.Error("exclusion count increment failed", "guild", guildID, "player", p.ID, "err", err)
		}
	}
	for _, id := range append(pm.RadiantIDs, pm.DireIDs...) {
		if err := s.playerRepo.DecayExclusionCount(ctx, id, guildID); err != nil {
			logger.Error("exclusion count decay failed", "guild", guildID, "player", id, "err", err)
		}
	}

	logger.Info("shuffle complete",
		"guild", guildID,
		"pendingMatch", pm.ID,
		"valueDiff", result.ValueDiff,
		"cost", result.Cost,
		"winProb", result.WinProb,
		"excluded", len(result.Excluded),
	)
	for i, m := range result.Top {
		logger.Debug("matchup candidate", "rank", i+1, "cost", m.Cost, "valueDiff", m.ValueDiff, "offRole", m.OffRole)
	}

	return pm, nil
}

// SubmissionStatus reports the aggregate state after one submission.
type SubmissionStatus struct {
	PendingMatchID int64
	Submissions    int
	Decided        bool
	Result         domain.SubmissionResult
	MatchID        int64
}

// SubmitRecord registers one user's reported outcome, idempotently, and
// finalizes the match once the declaration threshold is met.
func (s *MatchService) SubmitRecord(ctx context.Context, guildID, userID int64, result domain.SubmissionResult, isAdmin bool) (*SubmissionStatus, error) {
	if !result.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWinner, result)
	}
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	pm := s.latestPendingLocked(guildID)
	if pm == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoPendingMatch
	}
	pm.Submit(domain.Submission{
		UserID:      userID,
		Result:      result,
		IsAdmin:     isAdmin,
		SubmittedAt: time.Now(),
	})
	decided, ok := pm.Decide(s.cfg.MinNonAdminSubmissions)
	status := &SubmissionStatus{
		PendingMatchID: pm.ID,
		Submissions:    len(pm.Submissions),
	}
	s.mu.Unlock()

	if !ok {
		return status, nil
	}

	status.Decided = true
	status.Result = decided
	if decided == domain.ResultAbort {
		return status, s.abortPending(guildID, status.PendingMatchID)
	}

	// Finalize the exact match the votes were cast on. A shuffle landing
	// between the decision and the record must not inherit the verdict.
	rec, err := s.record(ctx, guildID, status.PendingMatchID, decided.Side(), nil)
	if err != nil {
		return nil, err
	}
	status.MatchID = rec.MatchID
	return status, nil
}

// RecordResult is the outcome of finalizing a match.
type RecordResult struct {
	MatchID int64
	Winner  domain.Side
	Entries []*domain.RatingHistoryEntry
}

// Record finalizes the guild's latest pending match: ratings update,
// persistence, then removal. On a persistence failure the pending match
// stays intact.
func (s *MatchService) Record(ctx context.Context, guildID int64, winner domain.Side, externalID *int64) (*RecordResult, error) {
	return s.record(ctx, lock.Normalize(guildID), 0, winner, externalID)
}

// record finalizes one pending match. pendingID selects it; zero means the
// guild's latest.
func (s *MatchService) record(ctx context.Context, guildID, pendingID int64, winner domain.Side, externalID *int64) (*RecordResult, error) {
	if !winner.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWinner, winner)
	}

	if !s.recordLocks.TryAcquire(guildID) {
		if !s.recordLocks.CheckStale(guildID) || !s.recordLocks.TryAcquire(guildID) {
			return nil, domain.ErrConcurrencyConflict
		}
		logger.Warn("recovered stale record lock", "guild", guildID)
	}
	defer s.recordLocks.Release(guildID)

	s.mu.Lock()
	pm := s.resolvePendingLocked(guildID, pendingID)
	if pm == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoPendingMatch
	}
	if pm.Phase != domain.PhasePending {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: pending match %d is %s", domain.ErrIllegalPhase, pm.ID, pm.Phase)
	}
	pm.Phase = domain.PhaseFinalizing
	s.mu.Unlock()

	result, err := s.finalize(ctx, pm, winner, externalID)
	if err != nil {
		s.mu.Lock()
		pm.Phase = domain.PhasePending
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	pm.Phase = domain.PhaseClosed
	s.removePendingLocked(guildID, pm.ID)
	s.mu.Unlock()

	logger.Info("match recorded", "guild", guildID, "match", result.MatchID, "winner", winner)
	return result, nil
}

func (s *MatchService) finalize(ctx context.Context, pm *domain.PendingMatch, winner domain.Side, externalID *int64) (*RecordResult, error) {
	allIDs := append(append([]int64{}, pm.RadiantIDs...), pm.DireIDs...)
	players, err := s.playerRepo.List(ctx, allIDs, pm.GuildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if len(players) != 10 {
		return nil, fmt.Errorf("%w: pending match %d has %d registered players", domain.ErrInvariantViolation, pm.ID, len(players))
	}
	byID := make(map[int64]*domain.Player, 10)
	for _, p := range players {
		byID[p.PlayerID] = p
	}

	radiantWon := winner == domain.SideRadiant
	participants := make([]rating.Participant, 0, 10)
	teamOf := make(map[int64]domain.Side, 10)
	for _, id := range pm.RadiantIDs {
		participants = append(participants, rating.Participant{PlayerID: id, Skill: rating.SkillOf(byID[id]), Won: radiantWon})
		teamOf[id] = domain.SideRadiant
	}
	for _, id := range pm.DireIDs {
		participants = append(participants, rating.Participant{PlayerID: id, Skill: rating.SkillOf(byID[id]), Won: !radiantWon})
		teamOf[id] = domain.SideDire
	}

	updated, err := rating.UpdateAfterMatch(participants)
	if err != nil {
		return nil, err
	}

	match := &domain.Match{
		GuildID:     pm.GuildID,
		WinningTeam: winner.TeamNumber(),
		ExternalID:  externalID,
		PlayedAt:    time.Now(),
	}
	entries := make([]*domain.RatingHistoryEntry, 0, 10)
	for i, part := range participants {
		side := teamOf[part.PlayerID]
		winProb := pm.WinProb
		if side == domain.SideDire {
			winProb = 1 - pm.WinProb
		}
		match.Participants = append(match.Participants, domain.MatchParticipant{
			PlayerID:   part.PlayerID,
			TeamNumber: side.TeamNumber(),
			Won:        part.Won,
		})
		entries = append(entries, &domain.RatingHistoryEntry{
			PlayerID:            part.PlayerID,
			TeamNumber:          side.TeamNumber(),
			Won:                 part.Won,
			RatingBefore:        part.Skill.Rating,
			RatingAfter:         updated[i].Rating,
			RDBefore:            part.Skill.RD,
			RDAfter:             updated[i].RD,
			ExpectedTeamWinProb: winProb,
		})

		p := byID[part.PlayerID]
		p.Rating = updated[i].Rating
		p.RD = updated[i].RD
		p.Volatility = updated[i].Volatility
		p.ClampRating()
		if part.Won {
			p.Wins++
		} else {
			p.Losses++
		}
		p.PlayedRecently = true
	}

	matchID, err := s.matchRepo.RecordMatch(ctx, match, entries, players)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	return &RecordResult{MatchID: matchID, Winner: winner, Entries: entries}, nil
}

// Abort removes the guild's latest pending match without recording a
// result. Idempotent: aborting with nothing pending is a no-op.
func (s *MatchService) Abort(ctx context.Context, guildID int64) error {
	return s.abortPending(lock.Normalize(guildID), 0)
}

func (s *MatchService) abortPending(guildID, pendingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm := s.resolvePendingLocked(guildID, pendingID)
	if pm == nil {
		return nil
	}
	if pm.Phase == domain.PhaseFinalizing {
		return fmt.Errorf("%w: pending match %d is finalizing", domain.ErrIllegalPhase, pm.ID)
	}
	pm.Phase = domain.PhaseAborted
	s.removePendingLocked(guildID, pm.ID)
	logger.Info("pending match aborted", "guild", guildID, "pendingMatch", pm.ID)
	return nil
}

// GetMatch fetches a recorded match with its participants.
func (s *MatchService) GetMatch(ctx context.Context, matchID int64) (*domain.Match, error) {
	return s.matchRepo.GetByID(ctx, matchID)
}

// ListMatches pages through a guild's recorded matches, newest first.
func (s *MatchService) ListMatches(ctx context.Context, guildID int64, limit, offset int) ([]*domain.Match, error) {
	return s.matchRepo.ListByGuild(ctx, lock.Normalize(guildID), limit, offset)
}

// PendingMatches returns the guild's pending matches, oldest first.
func (s *MatchService) PendingMatches(guildID int64) []*domain.PendingMatch {
	guildID = lock.Normalize(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.PendingMatch, len(s.pending[guildID]))
	copy(out, s.pending[guildID])
	return out
}

func (s *MatchService) latestPendingLocked(guildID int64) *domain.PendingMatch {
	list := s.pending[guildID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// resolvePendingLocked finds the pending match with the given id, or the
// guild's latest when id is zero.
func (s *MatchService) resolvePendingLocked(guildID, pendingID int64) *domain.PendingMatch {
	if pendingID == 0 {
		return s.latestPendingLocked(guildID)
	}
	for _, pm := range s.pending[guildID] {
		if pm.ID == pendingID {
			return pm
		}
	}
	return nil
}

func (s *MatchService) removePendingLocked(guildID, pendingID int64) {
	list := s.pending[guildID]
	for i, pm := range list {
		if pm.ID == pendingID {
			s.pending[guildID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (s *MatchService) weights() balancer.Weights {
	return balancer.Weights{
		OffRoleMultiplier:  s.cfg.OffRoleMultiplier,
		OffRoleFlatPenalty: s.cfg.OffRoleFlatPenalty,
		RoleMatchupWeight:  s.cfg.RoleMatchupWeight,
		ExclusionWeight:    s.cfg.ExclusionWeight,
		RecentWeight:       s.cfg.RecentWeight,
		RDPriorityWeight:   s.cfg.RDPriorityWeight,
		SoftAvoidPenalty:   s.cfg.SoftAvoidPenalty,
		PackageDealPenalty: s.cfg.PackageDealPenalty,
		SampleCap:          s.cfg.SampleCap,
		TopK:               s.cfg.LogTopKMatchups,
	}
}

// valueFor reads the strength scalar for the selected rating source.
// Openskill ratings were retired in favor of Glicko; the token remains and
// reads the legacy MMR column.
func valueFor(p *domain.Player, source RatingSource) float64 {
	switch source {
	case SourceBalance:
		return float64(p.Balance)
	case SourceOpenskill:
		if p.LegacyMMR != nil {
			return *p.LegacyMMR
		}
		return domain.DefaultRating
	default:
		return rating.Value(p)
	}
}

func buildTeam(tr balancer.TeamResult, byID map[int64]*domain.Player, offRoleMultiplier float64) *domain.Team {
	team := &domain.Team{Value: tr.Value, OffRoleCount: tr.OffRole}
	for i := range tr.Players {
		p := byID[tr.Players[i].ID]
		role := tr.Roles[i]
		onRole := tr.Players[i].Roles.Has(role)
		eff := tr.Players[i].Value
		if !onRole {
			eff *= offRoleMultiplier
		}
		team.Slots[i] = domain.TeamSlot{
			PlayerID:       tr.Players[i].ID,
			Name:           p.Name,
			AssignedRole:   role,
			OnRole:         onRole,
			Value:          tr.Players[i].Value,
			EffectiveValue: eff,
		}
	}
	return team
}
