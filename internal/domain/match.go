package domain

import "time"

// Match is a recorded match.
type Match struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	GuildID     int64     `json:"guildId" gorm:"not null;index"`
	WinningTeam int       `json:"winningTeam" gorm:"not null"`
	ExternalID  *int64    `json:"externalId"`
	PlayedAt    time.Time `json:"playedAt"`

	Participants []MatchParticipant `json:"participants,omitempty" gorm:"foreignKey:MatchID"`
}

// TableName returns the table name for GORM.
func (Match) TableName() string {
	return "matches"
}

// MatchParticipant is one player's participation in a recorded match.
type MatchParticipant struct {
	ID         int64 `json:"id" gorm:"primaryKey"`
	MatchID    int64 `json:"matchId" gorm:"not null;index"`
	PlayerID   int64 `json:"playerId" gorm:"not null;index"`
	TeamNumber int   `json:"teamNumber" gorm:"not null"`
	Won        bool  `json:"won" gorm:"not null"`
}

// TableName returns the table name for GORM.
func (MatchParticipant) TableName() string {
	return "match_participants"
}

// RatingHistoryEntry records the rating movement of one participant for one
// match.
type RatingHistoryEntry struct {
	ID                  int64   `json:"id" gorm:"primaryKey"`
	MatchID             int64   `json:"matchId" gorm:"not null;index"`
	PlayerID            int64   `json:"playerId" gorm:"not null;index"`
	TeamNumber          int     `json:"teamNumber" gorm:"not null"`
	Won                 bool    `json:"won" gorm:"not null"`
	RatingBefore        float64 `json:"ratingBefore" gorm:"not null"`
	RatingAfter         float64 `json:"ratingAfter" gorm:"not null"`
	RDBefore            float64 `json:"rdBefore" gorm:"column:rd_before;not null"`
	RDAfter             float64 `json:"rdAfter" gorm:"column:rd_after;not null"`
	ExpectedTeamWinProb float64 `json:"expectedTeamWinProb" gorm:"not null"`
}

// TableName returns the table name for GORM.
func (RatingHistoryEntry) TableName() string {
	return "rating_history"
}
