package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/inhouse-league/internal/api/middleware"
	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/service"
)

type LobbyHandler struct {
	lobbyService *service.LobbyService
}

func NewLobbyHandler(lobbyService *service.LobbyService) *LobbyHandler {
	return &LobbyHandler{lobbyService: lobbyService}
}

type LobbyRequest struct {
	GuildID  int64        `json:"guildId"`
	PlayerID int64        `json:"playerId"`
	Queue    domain.Queue `json:"queue"`
}

type LobbyResponse struct {
	GuildID     int64   `json:"guildId"`
	Status      string  `json:"status"`
	Regular     []int64 `json:"regular"`
	Conditional []int64 `json:"conditional"`
	Size        int     `json:"size"`
	Ready       bool    `json:"ready"`
}

func (h *LobbyHandler) respond(w http.ResponseWriter, r *http.Request, lobby *domain.Lobby) {
	ready, _ := h.lobbyService.Ready(r.Context(), lobby.GuildID)
	writeJSON(w, http.StatusOK, LobbyResponse{
		GuildID:     lobby.GuildID,
		Status:      string(lobby.Status),
		Regular:     lobby.RegularIDs(),
		Conditional: lobby.ConditionalIDs(),
		Size:        lobby.Size(),
		Ready:       ready,
	})
}

func (h *LobbyHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req LobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	lobby, err := h.lobbyService.Open(r.Context(), req.GuildID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, lobby)
}

func (h *LobbyHandler) Get(w http.ResponseWriter, r *http.Request) {
	guildID := queryInt64(r, "guildId")
	lobby, err := h.lobbyService.Get(r.Context(), guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, lobby)
}

func (h *LobbyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req LobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Queue == "" {
		req.Queue = domain.QueueRegular
	}

	lobby, err := h.lobbyService.Join(r.Context(), req.GuildID, req.PlayerID, req.Queue)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, lobby)
}

func (h *LobbyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req LobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lobby, err := h.lobbyService.Leave(r.Context(), req.GuildID, req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, lobby)
}

func (h *LobbyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req LobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.lobbyService.Reset(r.Context(), req.GuildID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
