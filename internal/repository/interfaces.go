package repository

import (
	"context"

	"github.com/dom/inhouse-league/internal/domain"
)

type PlayerRepository interface {
	Get(ctx context.Context, playerID, guildID int64) (*domain.Player, error)
	List(ctx context.Context, playerIDs []int64, guildID int64) ([]*domain.Player, error)
	Add(ctx context.Context, player *domain.Player) error
	Update(ctx context.Context, player *domain.Player) error
	UpdateRating(ctx context.Context, playerID, guildID int64, rating, rd, volatility float64) error
	GetExclusionCounts(ctx context.Context, playerIDs []int64, guildID int64) (map[int64]int, error)
	IncrementExclusionCount(ctx context.Context, playerID, guildID int64) error
	DecayExclusionCount(ctx context.Context, playerID, guildID int64) error
	GetCaptainEligible(ctx context.Context, playerIDs []int64, guildID int64) ([]int64, error)
	Leaderboard(ctx context.Context, guildID int64, sortBy string, limit int) ([]*domain.Player, error)
}

type MatchRepository interface {
	// RecordMatch persists the match, its participants, the rating history
	// entries, and the updated player rows in one transaction, returning
	// the new match id.
	RecordMatch(ctx context.Context, match *domain.Match, entries []*domain.RatingHistoryEntry, players []*domain.Player) (int64, error)
	GetLastMatchParticipantIDs(ctx context.Context, guildID int64) (map[int64]struct{}, error)
	GetByID(ctx context.Context, matchID int64) (*domain.Match, error)
	ListByGuild(ctx context.Context, guildID int64, limit, offset int) ([]*domain.Match, error)
	RatingHistoryForPlayer(ctx context.Context, playerID, guildID int64, limit int) ([]*domain.RatingHistoryEntry, error)
}

type LobbyRepository interface {
	Save(ctx context.Context, record *domain.LobbyStateRecord) error
	Load(ctx context.Context, guildID int64) (*domain.LobbyStateRecord, error)
	Clear(ctx context.Context, guildID int64) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type Repositories struct {
	Player PlayerRepository
	Match  MatchRepository
	Lobby  LobbyRepository
	User   UserRepository
}
