package postgres

import (
	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate auto-migrates every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Player{},
		&domain.Match{},
		&domain.MatchParticipant{},
		&domain.RatingHistoryEntry{},
		&domain.LobbyStateRecord{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Player: NewPlayerRepository(db),
		Match:  NewMatchRepository(db),
		Lobby:  NewLobbyRepository(db),
		User:   NewUserRepository(db),
	}
}
