package postgres

import (
	"context"
	"errors"

	"github.com/dom/inhouse-league/internal/domain"
	"gorm.io/gorm"
)

type matchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *matchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) RecordMatch(ctx context.Context, match *domain.Match, entries []*domain.RatingHistoryEntry, players []*domain.Player) (int64, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(match).Error; err != nil {
			return err
		}
		for _, e := range entries {
			e.MatchID = match.ID
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		for _, p := range players {
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return match.ID, nil
}

func (r *matchRepository) GetLastMatchParticipantIDs(ctx context.Context, guildID int64) (map[int64]struct{}, error) {
	var last domain.Match
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("id DESC").
		First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[int64]struct{}{}, nil
		}
		return nil, err
	}

	var ids []int64
	err = r.db.WithContext(ctx).
		Model(&domain.MatchParticipant{}).
		Where("match_id = ?", last.ID).
		Pluck("player_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *matchRepository) GetByID(ctx context.Context, matchID int64) (*domain.Match, error) {
	var match domain.Match
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&match, "id = ?", matchID).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) ListByGuild(ctx context.Context, guildID int64, limit, offset int) ([]*domain.Match, error) {
	var matches []*domain.Match
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("guild_id = ?", guildID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *matchRepository) RatingHistoryForPlayer(ctx context.Context, playerID, guildID int64, limit int) ([]*domain.RatingHistoryEntry, error) {
	var entries []*domain.RatingHistoryEntry
	q := r.db.WithContext(ctx).
		Joins("JOIN matches ON matches.id = rating_history.match_id").
		Where("rating_history.player_id = ? AND matches.guild_id = ?", playerID, guildID).
		Order("rating_history.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
