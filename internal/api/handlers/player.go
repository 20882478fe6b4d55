package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/rating"
	"github.com/dom/inhouse-league/internal/service"
	"github.com/go-chi/chi/v5"
)

type PlayerHandler struct {
	playerService *service.PlayerService
}

func NewPlayerHandler(playerService *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{playerService: playerService}
}

type RegisterPlayerRequest struct {
	PlayerID       int64  `json:"playerId"`
	GuildID        int64  `json:"guildId"`
	Name           string `json:"name"`
	PreferredRoles []int  `json:"preferredRoles"`
}

type UpdateRolesRequest struct {
	GuildID        int64 `json:"guildId"`
	PreferredRoles []int `json:"preferredRoles"`
}

type PlayerResponse struct {
	PlayerID       int64   `json:"playerId"`
	GuildID        int64   `json:"guildId"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	RD             float64 `json:"rd"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	PreferredRoles []int   `json:"preferredRoles"`
	ExclusionCount int     `json:"exclusionCount"`
}

func playerResponse(p *domain.Player) PlayerResponse {
	return PlayerResponse{
		PlayerID:       p.PlayerID,
		GuildID:        p.GuildID,
		Name:           p.Name,
		Rating:         rating.ToDisplay(p.Rating),
		RD:             rating.ToDisplay(p.RD),
		Wins:           p.Wins,
		Losses:         p.Losses,
		PreferredRoles: p.RoleSet().Ints(),
		ExclusionCount: p.ExclusionCount,
	}
}

func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	player, err := h.playerService.Register(r.Context(), service.RegisterPlayerInput{
		PlayerID:       req.PlayerID,
		GuildID:        req.GuildID,
		Name:           req.Name,
		PreferredRoles: req.PreferredRoles,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, playerResponse(player))
}

func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid player id", http.StatusBadRequest)
		return
	}
	guildID := queryInt64(r, "guildId")

	player, err := h.playerService.Get(r.Context(), playerID, guildID)
	if err != nil {
		http.Error(w, "Player not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse(player))
}

func (h *PlayerHandler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid player id", http.StatusBadRequest)
		return
	}

	var req UpdateRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	player, err := h.playerService.UpdatePreferredRoles(r.Context(), playerID, req.GuildID, req.PreferredRoles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse(player))
}

func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := queryInt64(r, "guildId")
	sortBy := r.URL.Query().Get("sort")
	limit := queryIntDefault(r, "limit", 25)

	players, err := h.playerService.Leaderboard(r.Context(), guildID, sortBy, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]PlayerResponse, len(players))
	for i, p := range players {
		resp[i] = playerResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

type RatingHistoryResponse struct {
	MatchID             int64   `json:"matchId"`
	TeamNumber          int     `json:"teamNumber"`
	Won                 bool    `json:"won"`
	RatingBefore        float64 `json:"ratingBefore"`
	RatingAfter         float64 `json:"ratingAfter"`
	RDBefore            float64 `json:"rdBefore"`
	RDAfter             float64 `json:"rdAfter"`
	ExpectedTeamWinProb float64 `json:"expectedTeamWinProb"`
}

func (h *PlayerHandler) RatingHistory(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid player id", http.StatusBadRequest)
		return
	}
	guildID := queryInt64(r, "guildId")
	limit := queryIntDefault(r, "limit", 20)

	entries, err := h.playerService.RatingHistory(r.Context(), playerID, guildID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]RatingHistoryResponse, len(entries))
	for i, e := range entries {
		resp[i] = RatingHistoryResponse{
			MatchID:             e.MatchID,
			TeamNumber:          e.TeamNumber,
			Won:                 e.Won,
			RatingBefore:        rating.ToDisplay(e.RatingBefore),
			RatingAfter:         rating.ToDisplay(e.RatingAfter),
			RDBefore:            rating.ToDisplay(e.RDBefore),
			RDAfter:             rating.ToDisplay(e.RDAfter),
			ExpectedTeamWinProb: e.ExpectedTeamWinProb,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v
}

func queryIntDefault(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
