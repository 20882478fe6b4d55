package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dom/inhouse-league/internal/config"
	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/lock"
	"github.com/dom/inhouse-league/internal/logger"
	"github.com/dom/inhouse-league/internal/rating"
	"github.com/dom/inhouse-league/internal/repository"
)

// LobbyService tracks the open lobby of each guild: two disjoint queues
// with join-time bookkeeping, persisted so a restart can restore them.
type LobbyService struct {
	lobbyRepo  repository.LobbyRepository
	playerRepo repository.PlayerRepository
	cfg        *config.Config

	mu      sync.Mutex
	lobbies map[int64]*domain.Lobby
}

func NewLobbyService(lobbyRepo repository.LobbyRepository, playerRepo repository.PlayerRepository, cfg *config.Config) *LobbyService {
	return &LobbyService{
		lobbyRepo:  lobbyRepo,
		playerRepo: playerRepo,
		cfg:        cfg,
		lobbies:    make(map[int64]*domain.Lobby),
	}
}

// Open creates the guild's lobby if none is open and returns it.
func (s *LobbyService) Open(ctx context.Context, guildID, createdBy int64) (*domain.Lobby, error) {
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if lobby, ok := s.lobbies[guildID]; ok && lobby.Status == domain.LobbyStatusOpen {
		return lobby, nil
	}

	// A restart may have left a persisted lobby behind.
	if rec, err := s.lobbyRepo.Load(ctx, guildID); err == nil {
		lobby := domain.LobbyFromRecord(rec)
		if lobby.Status == domain.LobbyStatusOpen {
			s.lobbies[guildID] = lobby
			return lobby, nil
		}
	}

	lobby := domain.NewLobby(guildID, createdBy)
	s.lobbies[guildID] = lobby
	if err := s.lobbyRepo.Save(ctx, lobby.ToRecord()); err != nil {
		delete(s.lobbies, guildID)
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	logger.Info("lobby opened", "guild", guildID, "createdBy", createdBy)
	return lobby, nil
}

// Get returns the guild's open lobby.
func (s *LobbyService) Get(ctx context.Context, guildID int64) (*domain.Lobby, error) {
	guildID = lock.Normalize(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLobbyLocked(ctx, guildID)
}

func (s *LobbyService) openLobbyLocked(ctx context.Context, guildID int64) (*domain.Lobby, error) {
	if lobby, ok := s.lobbies[guildID]; ok && lobby.Status == domain.LobbyStatusOpen {
		return lobby, nil
	}
	rec, err := s.lobbyRepo.Load(ctx, guildID)
	if err != nil {
		return nil, domain.ErrLobbyNotFound
	}
	lobby := domain.LobbyFromRecord(rec)
	if lobby.Status != domain.LobbyStatusOpen {
		return nil, domain.ErrLobbyNotFound
	}
	s.lobbies[guildID] = lobby
	return lobby, nil
}

// Join adds a player to one of the two queues. Switching queues preserves
// the original join timestamp.
func (s *LobbyService) Join(ctx context.Context, guildID, playerID int64, queue domain.Queue) (*domain.Lobby, error) {
	if queue != domain.QueueRegular && queue != domain.QueueConditional {
		return nil, fmt.Errorf("%w: unknown queue %q", domain.ErrInvalidInput, queue)
	}
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, err := s.openLobbyLocked(ctx, guildID)
	if err != nil {
		return nil, err
	}

	current, queued := lobby.QueueOf(playerID)
	if queued && current == queue {
		return nil, domain.ErrAlreadyQueued
	}
	if !queued && lobby.Size() >= s.cfg.MaxPlayers {
		return nil, domain.ErrLobbyFull
	}

	delete(lobby.Regular, playerID)
	delete(lobby.Conditional, playerID)
	if queue == domain.QueueRegular {
		lobby.Regular[playerID] = struct{}{}
	} else {
		lobby.Conditional[playerID] = struct{}{}
	}
	if _, ok := lobby.JoinTimes[playerID]; !ok {
		lobby.JoinTimes[playerID] = time.Now()
	}

	if err := s.lobbyRepo.Save(ctx, lobby.ToRecord()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return lobby, nil
}

// Leave removes the player from whichever queue holds them.
func (s *LobbyService) Leave(ctx context.Context, guildID, playerID int64) (*domain.Lobby, error) {
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, err := s.openLobbyLocked(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if _, queued := lobby.QueueOf(playerID); !queued {
		return nil, domain.ErrNotQueued
	}

	delete(lobby.Regular, playerID)
	delete(lobby.Conditional, playerID)
	delete(lobby.JoinTimes, playerID)

	if err := s.lobbyRepo.Save(ctx, lobby.ToRecord()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return lobby, nil
}

// Reset closes and clears the guild's open lobby. Idempotent.
func (s *LobbyService) Reset(ctx context.Context, guildID int64) error {
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lobbies, guildID)
	if err := s.lobbyRepo.Clear(ctx, guildID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	logger.Info("lobby reset", "guild", guildID)
	return nil
}

// Ready reports whether the regular queue has reached the ready threshold.
func (s *LobbyService) Ready(ctx context.Context, guildID int64) (bool, error) {
	lobby, err := s.Get(ctx, guildID)
	if err != nil {
		return false, err
	}
	return len(lobby.Regular) >= s.cfg.LobbyReadyThreshold, nil
}

// Selection is the outcome of picking a shuffle pool from the lobby.
type Selection struct {
	PoolIDs                []int64
	ExcludedConditionalIDs []int64
}

// SelectForShuffle applies the deterministic pool-selection rule: regular
// players are always included while they fit; conditional players fill the
// remaining slots ordered by rating descending then RD ascending.
func (s *LobbyService) SelectForShuffle(ctx context.Context, guildID int64, poolTarget int) (*Selection, error) {
	guildID = lock.Normalize(guildID)

	s.mu.Lock()
	lobby, err := s.openLobbyLocked(ctx, guildID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	regular := lobby.RegularIDs()
	conditional := lobby.ConditionalIDs()
	s.mu.Unlock()

	sort.Slice(regular, func(i, j int) bool { return regular[i] < regular[j] })

	if len(regular) >= poolTarget {
		return &Selection{
			PoolIDs:                regular,
			ExcludedConditionalIDs: sortedIDs(conditional),
		}, nil
	}

	players, err := s.playerRepo.List(ctx, conditional, guildID)
	if err != nil {
		return nil, err
	}
	sort.Slice(players, func(i, j int) bool {
		a, b := rating.SkillOf(players[i]), rating.SkillOf(players[j])
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.RD != b.RD {
			return a.RD < b.RD
		}
		return players[i].PlayerID < players[j].PlayerID
	})

	slots := poolTarget - len(regular)
	pool := append([]int64{}, regular...)
	var excluded []int64
	for i, p := range players {
		if i < slots {
			pool = append(pool, p.PlayerID)
		} else {
			excluded = append(excluded, p.PlayerID)
		}
	}
	return &Selection{PoolIDs: pool, ExcludedConditionalIDs: sortedIDs(excluded)}, nil
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
