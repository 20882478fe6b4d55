package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidWinner),
		errors.Is(err, domain.ErrDuplicatePlayers),
		errors.Is(err, domain.ErrInsufficientPlayers):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrNoPendingMatch),
		errors.Is(err, domain.ErrLobbyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPlayerExists),
		errors.Is(err, domain.ErrAlreadyQueued),
		errors.Is(err, domain.ErrNotQueued),
		errors.Is(err, domain.ErrLobbyFull),
		errors.Is(err, domain.ErrLobbyClosed),
		errors.Is(err, domain.ErrIllegalPhase),
		errors.Is(err, domain.ErrShuffleInProgress),
		errors.Is(err, domain.ErrConcurrencyConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
