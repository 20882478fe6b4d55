package domain

import (
	"time"

	"gorm.io/datatypes"
)

// LobbyStatus represents the current state of a lobby.
type LobbyStatus string

const (
	LobbyStatusOpen   LobbyStatus = "open"
	LobbyStatusClosed LobbyStatus = "closed"
)

// Queue identifies which of the two lobby queues a player sits in.
type Queue string

const (
	QueueRegular     Queue = "regular"
	QueueConditional Queue = "conditional"
)

// DefaultMaxLobbyPlayers caps total queue size across both queues.
const DefaultMaxLobbyPlayers = 12

// Lobby is the open lobby of a guild: two disjoint queues plus join-time
// bookkeeping. One open lobby per guild at a time. Owned by the lobby
// manager; mutated only under the guild's lock.
type Lobby struct {
	GuildID     int64
	Status      LobbyStatus
	CreatedBy   int64
	CreatedAt   time.Time
	Regular     map[int64]struct{}
	Conditional map[int64]struct{}
	JoinTimes   map[int64]time.Time

	// Opaque correlation handles for the chat adapter.
	MessageID int64
	ThreadID  int64
	ChannelID int64
}

// NewLobby creates an empty open lobby.
func NewLobby(guildID, createdBy int64) *Lobby {
	return &Lobby{
		GuildID:     guildID,
		Status:      LobbyStatusOpen,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		Regular:     make(map[int64]struct{}),
		Conditional: make(map[int64]struct{}),
		JoinTimes:   make(map[int64]time.Time),
	}
}

// QueueOf returns the queue the player is in, if any.
func (l *Lobby) QueueOf(playerID int64) (Queue, bool) {
	if _, ok := l.Regular[playerID]; ok {
		return QueueRegular, true
	}
	if _, ok := l.Conditional[playerID]; ok {
		return QueueConditional, true
	}
	return "", false
}

// Size returns the total number of queued players across both queues.
func (l *Lobby) Size() int {
	return len(l.Regular) + len(l.Conditional)
}

// RegularIDs returns the regular queue as a slice (unordered).
func (l *Lobby) RegularIDs() []int64 {
	ids := make([]int64, 0, len(l.Regular))
	for id := range l.Regular {
		ids = append(ids, id)
	}
	return ids
}

// ConditionalIDs returns the conditional queue as a slice (unordered).
func (l *Lobby) ConditionalIDs() []int64 {
	ids := make([]int64, 0, len(l.Conditional))
	for id := range l.Conditional {
		ids = append(ids, id)
	}
	return ids
}

// LobbyStateRecord is the persisted snapshot of a guild's open lobby, one
// row per guild.
type LobbyStateRecord struct {
	GuildID        int64                                  `json:"guildId" gorm:"primaryKey;autoIncrement:false"`
	Status         LobbyStatus                            `json:"status" gorm:"type:varchar(10);not null;default:'open'"`
	CreatedBy      int64                                  `json:"createdBy" gorm:"not null"`
	CreatedAt      time.Time                              `json:"createdAt"`
	RegularIDs     datatypes.JSONSlice[int64]             `json:"regularIds"`
	ConditionalIDs datatypes.JSONSlice[int64]             `json:"conditionalIds"`
	JoinTimes      datatypes.JSONType[map[int64]time.Time] `json:"joinTimes"`
	MessageID      int64                                  `json:"messageId"`
	ThreadID       int64                                  `json:"threadId"`
	ChannelID      int64                                  `json:"channelId"`
	UpdatedAt      time.Time                              `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (LobbyStateRecord) TableName() string {
	return "lobby_states"
}

// ToRecord snapshots the in-memory lobby for persistence.
func (l *Lobby) ToRecord() *LobbyStateRecord {
	times := make(map[int64]time.Time, len(l.JoinTimes))
	for id, t := range l.JoinTimes {
		times[id] = t
	}
	return &LobbyStateRecord{
		GuildID:        l.GuildID,
		Status:         l.Status,
		CreatedBy:      l.CreatedBy,
		CreatedAt:      l.CreatedAt,
		RegularIDs:     datatypes.NewJSONSlice(l.RegularIDs()),
		ConditionalIDs: datatypes.NewJSONSlice(l.ConditionalIDs()),
		JoinTimes:      datatypes.NewJSONType(times),
		MessageID:      l.MessageID,
		ThreadID:       l.ThreadID,
		ChannelID:      l.ChannelID,
	}
}

// LobbyFromRecord restores an in-memory lobby from its persisted snapshot.
func LobbyFromRecord(rec *LobbyStateRecord) *Lobby {
	l := NewLobby(rec.GuildID, rec.CreatedBy)
	l.Status = rec.Status
	l.CreatedAt = rec.CreatedAt
	l.MessageID = rec.MessageID
	l.ThreadID = rec.ThreadID
	l.ChannelID = rec.ChannelID
	for _, id := range rec.RegularIDs {
		l.Regular[id] = struct{}{}
	}
	for _, id := range rec.ConditionalIDs {
		l.Conditional[id] = struct{}{}
	}
	for id, t := range rec.JoinTimes.Data() {
		l.JoinTimes[id] = t
	}
	return l
}
