package postgres

import (
	"context"
	"errors"

	"github.com/dom/inhouse-league/internal/domain"
	"gorm.io/gorm"
)

type playerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *playerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) Get(ctx context.Context, playerID, guildID int64) (*domain.Player, error) {
	var player domain.Player
	err := r.db.WithContext(ctx).
		First(&player, "player_id = ? AND guild_id = ?", playerID, guildID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (r *playerRepository) List(ctx context.Context, playerIDs []int64, guildID int64) ([]*domain.Player, error) {
	var players []*domain.Player
	err := r.db.WithContext(ctx).
		Where("player_id IN ? AND guild_id = ?", playerIDs, guildID).
		Order("player_id").
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (r *playerRepository) Add(ctx context.Context, player *domain.Player) error {
	return r.db.WithContext(ctx).Create(player).Error
}

func (r *playerRepository) Update(ctx context.Context, player *domain.Player) error {
	return r.db.WithContext(ctx).Save(player).Error
}

func (r *playerRepository) UpdateRating(ctx context.Context, playerID, guildID int64, rating, rd, volatility float64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("player_id = ? AND guild_id = ?", playerID, guildID).
		Updates(map[string]interface{}{
			"rating":     rating,
			"rd":         rd,
			"volatility": volatility,
		}).Error
}

func (r *playerRepository) GetExclusionCounts(ctx context.Context, playerIDs []int64, guildID int64) (map[int64]int, error) {
	var rows []struct {
		PlayerID       int64
		ExclusionCount int
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Select("player_id", "exclusion_count").
		Where("player_id IN ? AND guild_id = ?", playerIDs, guildID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.PlayerID] = row.ExclusionCount
	}
	return counts, nil
}

func (r *playerRepository) IncrementExclusionCount(ctx context.Context, playerID, guildID int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("player_id = ? AND guild_id = ?", playerID, guildID).
		UpdateColumn("exclusion_count", gorm.Expr("exclusion_count + 1")).Error
}

func (r *playerRepository) DecayExclusionCount(ctx context.Context, playerID, guildID int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("player_id = ? AND guild_id = ?", playerID, guildID).
		UpdateColumn("exclusion_count", gorm.Expr("exclusion_count / 2")).Error
}

// GetCaptainEligible filters the given ids down to players flagged as
// captain material, in id order.
func (r *playerRepository) GetCaptainEligible(ctx context.Context, playerIDs []int64, guildID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("player_id IN ? AND guild_id = ? AND captain_eligible = true", playerIDs, guildID).
		Order("player_id").
		Pluck("player_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *playerRepository) Leaderboard(ctx context.Context, guildID int64, sortBy string, limit int) ([]*domain.Player, error) {
	order := "wins DESC, losses ASC, rating DESC"
	if sortBy == "rating" {
		order = "rating DESC, wins DESC"
	}
	var players []*domain.Player
	q := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order(order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}
