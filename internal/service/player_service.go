package service

import (
	"context"
	"fmt"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/lock"
	"github.com/dom/inhouse-league/internal/repository"
	"gorm.io/datatypes"
)

type PlayerService struct {
	playerRepo repository.PlayerRepository
	matchRepo  repository.MatchRepository
}

func NewPlayerService(playerRepo repository.PlayerRepository, matchRepo repository.MatchRepository) *PlayerService {
	return &PlayerService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
	}
}

type RegisterPlayerInput struct {
	PlayerID       int64
	GuildID        int64
	Name           string
	PreferredRoles []int
}

func (s *PlayerService) Register(ctx context.Context, input RegisterPlayerInput) (*domain.Player, error) {
	if input.PlayerID == 0 || input.Name == "" {
		return nil, fmt.Errorf("%w: player id and name are required", domain.ErrInvalidInput)
	}
	for _, r := range input.PreferredRoles {
		if !domain.Role(r).IsValid() {
			return nil, fmt.Errorf("%w: position %d", domain.ErrInvalidRole, r)
		}
	}

	guildID := lock.Normalize(input.GuildID)
	if existing, err := s.playerRepo.Get(ctx, input.PlayerID, guildID); err == nil && existing != nil {
		return nil, domain.ErrPlayerExists
	}

	player := &domain.Player{
		PlayerID:       input.PlayerID,
		GuildID:        guildID,
		Name:           input.Name,
		Rating:         domain.DefaultRating,
		RD:             domain.DefaultRD,
		Volatility:     domain.DefaultVolatility,
		PreferredRoles: datatypes.NewJSONSlice(input.PreferredRoles),
	}
	if err := s.playerRepo.Add(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

func (s *PlayerService) Get(ctx context.Context, playerID, guildID int64) (*domain.Player, error) {
	return s.playerRepo.Get(ctx, playerID, lock.Normalize(guildID))
}

func (s *PlayerService) UpdatePreferredRoles(ctx context.Context, playerID, guildID int64, roles []int) (*domain.Player, error) {
	for _, r := range roles {
		if !domain.Role(r).IsValid() {
			return nil, fmt.Errorf("%w: position %d", domain.ErrInvalidRole, r)
		}
	}
	player, err := s.playerRepo.Get(ctx, playerID, lock.Normalize(guildID))
	if err != nil {
		return nil, err
	}
	player.PreferredRoles = datatypes.NewJSONSlice(roles)
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// Leaderboard lists a guild's players ordered by wins or rating.
func (s *PlayerService) Leaderboard(ctx context.Context, guildID int64, sortBy string, limit int) ([]*domain.Player, error) {
	if sortBy == "" {
		sortBy = "wins"
	}
	if sortBy != "wins" && sortBy != "rating" {
		return nil, fmt.Errorf("%w: unknown leaderboard sort %q", domain.ErrInvalidInput, sortBy)
	}
	return s.playerRepo.Leaderboard(ctx, lock.Normalize(guildID), sortBy, limit)
}

// RatingHistory returns a player's recent rating movements.
func (s *PlayerService) RatingHistory(ctx context.Context, playerID, guildID int64, limit int) ([]*domain.RatingHistoryEntry, error) {
	return s.matchRepo.RatingHistoryForPlayer(ctx, playerID, lock.Normalize(guildID), limit)
}
