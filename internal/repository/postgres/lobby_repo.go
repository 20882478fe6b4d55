package postgres

import (
	"context"
	"errors"

	"github.com/dom/inhouse-league/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type lobbyRepository struct {
	db *gorm.DB
}

func NewLobbyRepository(db *gorm.DB) *lobbyRepository {
	return &lobbyRepository{db: db}
}

func (r *lobbyRepository) Save(ctx context.Context, record *domain.LobbyStateRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (r *lobbyRepository) Load(ctx context.Context, guildID int64) (*domain.LobbyStateRecord, error) {
	var record domain.LobbyStateRecord
	err := r.db.WithContext(ctx).
		First(&record, "guild_id = ?", guildID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLobbyNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *lobbyRepository) Clear(ctx context.Context, guildID int64) error {
	return r.db.WithContext(ctx).
		Delete(&domain.LobbyStateRecord{}, "guild_id = ?", guildID).Error
}
