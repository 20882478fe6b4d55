package service

import (
	"github.com/dom/inhouse-league/internal/config"
	"github.com/dom/inhouse-league/internal/lock"
	"github.com/dom/inhouse-league/internal/repository"
)

type Services struct {
	Auth   *AuthService
	Player *PlayerService
	Lobby  *LobbyService
	Match  *MatchService
}

// NewServices wires the service layer. Shuffle and record use separate
// lock coordinators so a slow record cannot block the next shuffle attempt
// from reporting a clean conflict.
func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	shuffleLocks := lock.NewCoordinator(cfg.StaleLockThreshold)
	recordLocks := lock.NewCoordinator(cfg.StaleLockThreshold)

	return &Services{
		Auth:   NewAuthService(repos.User, cfg),
		Player: NewPlayerService(repos.Player, repos.Match),
		Lobby:  NewLobbyService(repos.Lobby, repos.Player, cfg),
		Match:  NewMatchService(repos.Player, repos.Match, cfg, shuffleLocks, recordLocks),
	}
}
