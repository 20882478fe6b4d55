package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dom/inhouse-league/internal/api/middleware"
	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/rating"
	"github.com/dom/inhouse-league/internal/service"
	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	matchService *service.MatchService
	lobbyService *service.LobbyService
}

func NewMatchHandler(matchService *service.MatchService, lobbyService *service.LobbyService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		lobbyService: lobbyService,
	}
}

type ShuffleRequest struct {
	GuildID      int64      `json:"guildId"`
	PlayerIDs    []int64    `json:"playerIds,omitempty"`
	Source       string     `json:"source,omitempty"`
	SoftAvoids   [][2]int64 `json:"softAvoids,omitempty"`
	PackageDeals [][2]int64 `json:"packageDeals,omitempty"`
	// FromLobby selects the pool from the guild's open lobby instead of an
	// explicit player list.
	FromLobby  bool `json:"fromLobby,omitempty"`
	PoolTarget int  `json:"poolTarget,omitempty"`
}

type TeamSlotResponse struct {
	PlayerID int64   `json:"playerId"`
	Name     string  `json:"name"`
	Position int     `json:"position"`
	OnRole   bool    `json:"onRole"`
	Value    float64 `json:"value"`
}

type TeamResponse struct {
	Slots   []TeamSlotResponse `json:"slots"`
	Value   float64            `json:"value"`
	OffRole int                `json:"offRole"`
}

type PendingMatchResponse struct {
	ID           int64        `json:"id"`
	GuildID      int64        `json:"guildId"`
	Phase        string       `json:"phase"`
	Radiant      TeamResponse `json:"radiant"`
	Dire         TeamResponse `json:"dire"`
	Excluded     []int64      `json:"excluded"`
	FirstPick    string       `json:"firstPick"`
	ValueDiff    float64      `json:"valueDiff"`
	WinProb      float64      `json:"winProb"`
	BetLockUntil time.Time    `json:"betLockUntil"`
	Submissions  int          `json:"submissions"`
}

func teamResponse(t *domain.Team) TeamResponse {
	resp := TeamResponse{Value: rating.ToDisplay(t.Value), OffRole: t.OffRoleCount}
	for _, slot := range t.Slots {
		resp.Slots = append(resp.Slots, TeamSlotResponse{
			PlayerID: slot.PlayerID,
			Name:     slot.Name,
			Position: int(slot.AssignedRole),
			OnRole:   slot.OnRole,
			Value:    rating.ToDisplay(slot.Value),
		})
	}
	return resp
}

func pendingMatchResponse(pm *domain.PendingMatch) PendingMatchResponse {
	return PendingMatchResponse{
		ID:           pm.ID,
		GuildID:      pm.GuildID,
		Phase:        string(pm.Phase),
		Radiant:      teamResponse(pm.Radiant),
		Dire:         teamResponse(pm.Dire),
		Excluded:     pm.ExcludedIDs,
		FirstPick:    string(pm.FirstPick),
		ValueDiff:    pm.ValueDiff,
		WinProb:      pm.WinProb,
		BetLockUntil: pm.BetLockUntil,
		Submissions:  len(pm.Submissions),
	}
}

func (h *MatchHandler) Shuffle(w http.ResponseWriter, r *http.Request) {
	var req ShuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input := service.ShuffleInput{
		GuildID:      req.GuildID,
		PlayerIDs:    req.PlayerIDs,
		Source:       service.RatingSource(req.Source),
		SoftAvoids:   req.SoftAvoids,
		PackageDeals: req.PackageDeals,
	}

	if req.FromLobby {
		target := req.PoolTarget
		if target <= 0 {
			target = 10
		}
		sel, err := h.lobbyService.SelectForShuffle(r.Context(), req.GuildID, target)
		if err != nil {
			writeError(w, err)
			return
		}
		input.PlayerIDs = sel.PoolIDs
		input.ExcludedConditionalIDs = sel.ExcludedConditionalIDs
	}

	pm, err := h.matchService.Shuffle(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingMatchResponse(pm))
}

type SubmitRequest struct {
	GuildID int64  `json:"guildId"`
	Result  string `json:"result"`
}

type SubmitResponse struct {
	PendingMatchID int64  `json:"pendingMatchId"`
	Submissions    int    `json:"submissions"`
	Decided        bool   `json:"decided"`
	Result         string `json:"result,omitempty"`
	MatchID        int64  `json:"matchId,omitempty"`
}

func (h *MatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	isAdmin := middleware.GetIsAdmin(r.Context())

	status, err := h.matchService.SubmitRecord(r.Context(), req.GuildID, userID, domain.SubmissionResult(req.Result), isAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{
		PendingMatchID: status.PendingMatchID,
		Submissions:    status.Submissions,
		Decided:        status.Decided,
		Result:         string(status.Result),
		MatchID:        status.MatchID,
	})
}

type RecordRequest struct {
	GuildID    int64  `json:"guildId"`
	Winner     string `json:"winner"`
	ExternalID *int64 `json:"externalId,omitempty"`
}

func (h *MatchHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.matchService.Record(r.Context(), req.GuildID, domain.Side(req.Winner), req.ExternalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matchId": result.MatchID,
		"winner":  string(result.Winner),
	})
}

type AbortRequest struct {
	GuildID int64 `json:"guildId"`
}

func (h *MatchHandler) Abort(w http.ResponseWriter, r *http.Request) {
	var req AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.matchService.Abort(r.Context(), req.GuildID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *MatchHandler) Pending(w http.ResponseWriter, r *http.Request) {
	guildID := queryInt64(r, "guildId")
	pending := h.matchService.PendingMatches(guildID)
	resp := make([]PendingMatchResponse, len(pending))
	for i, pm := range pending {
		resp[i] = pendingMatchResponse(pm)
	}
	writeJSON(w, http.StatusOK, resp)
}

type MatchResponse struct {
	ID          int64     `json:"id"`
	GuildID     int64     `json:"guildId"`
	WinningTeam int       `json:"winningTeam"`
	ExternalID  *int64    `json:"externalId,omitempty"`
	PlayedAt    time.Time `json:"playedAt"`
	Radiant     []int64   `json:"radiant"`
	Dire        []int64   `json:"dire"`
}

func matchResponse(m *domain.Match) MatchResponse {
	resp := MatchResponse{
		ID:          m.ID,
		GuildID:     m.GuildID,
		WinningTeam: m.WinningTeam,
		ExternalID:  m.ExternalID,
		PlayedAt:    m.PlayedAt,
	}
	for _, p := range m.Participants {
		if p.TeamNumber == domain.SideRadiant.TeamNumber() {
			resp.Radiant = append(resp.Radiant, p.PlayerID)
		} else {
			resp.Dire = append(resp.Dire, p.PlayerID)
		}
	}
	return resp
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid match id", http.StatusBadRequest)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse(match))
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	guildID := queryInt64(r, "guildId")
	limit := queryIntDefault(r, "limit", 20)
	offset := queryIntDefault(r, "offset", 0)

	matches, err := h.matchService.ListMatches(r.Context(), guildID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]MatchResponse, len(matches))
	for i, m := range matches {
		resp[i] = matchResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}
