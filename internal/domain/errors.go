package domain

import "errors"

// Input validation errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicatePlayers = errors.New("duplicate player ids in pool")
	ErrInvalidWinner    = errors.New("invalid winning side")
	ErrInvalidRole      = errors.New("invalid role")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerExists     = errors.New("player already registered")
)

// Lifecycle errors
var (
	ErrIllegalPhase        = errors.New("operation not valid in current match phase")
	ErrNoPendingMatch      = errors.New("no pending match for this guild")
	ErrShuffleInProgress   = errors.New("a shuffle is already in flight for this guild")
	ErrInsufficientPlayers = errors.New("fewer than 10 usable players")
)

// Lobby errors
var (
	ErrLobbyNotFound = errors.New("no open lobby for this guild")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrAlreadyQueued = errors.New("player is already queued")
	ErrNotQueued     = errors.New("player is not queued")
	ErrLobbyClosed   = errors.New("lobby is closed")
)

// Concurrency and persistence errors
var (
	ErrConcurrencyConflict = errors.New("lock acquisition timed out")
	ErrPersistenceFailure  = errors.New("repository write failed")
	ErrInvariantViolation  = errors.New("invariant violation")
)
