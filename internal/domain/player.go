package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Rating bounds enforced on every persisted update.
const (
	RatingMin = 0.0
	RatingMax = 3000.0
	RDMin     = 30.0
	RDMax     = 350.0

	DefaultRating     = 1500.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06
)

// GuildNone is the canonical sentinel for "no guild" (DMs, tests).
const GuildNone int64 = 0

// Player is a registered player scoped to a guild. The same person in two
// guilds is two rows.
type Player struct {
	PlayerID int64  `json:"playerId" gorm:"primaryKey;autoIncrement:false"`
	GuildID  int64  `json:"guildId" gorm:"primaryKey;autoIncrement:false"`
	Name     string `json:"name" gorm:"size:100;not null"`

	Rating     float64 `json:"rating" gorm:"not null;default:1500"`
	RD         float64 `json:"rd" gorm:"column:rd;not null;default:350"`
	Volatility float64 `json:"volatility" gorm:"not null;default:0.06"`
	LegacyMMR  *float64 `json:"legacyMmr" gorm:"column:legacy_mmr"`

	// PreferredRoles holds position numbers 1-5 as a JSON array.
	PreferredRoles datatypes.JSONSlice[int] `json:"preferredRoles"`

	Wins   int `json:"wins" gorm:"not null;default:0"`
	Losses int `json:"losses" gorm:"not null;default:0"`

	Balance         int64 `json:"balance" gorm:"not null;default:1000"`
	ExclusionCount  int   `json:"exclusionCount" gorm:"not null;default:0"`
	CaptainEligible bool  `json:"captainEligible" gorm:"not null;default:false"`
	PlayedRecently  bool  `json:"playedRecently" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Player) TableName() string {
	return "players"
}

// RoleSet returns the player's preferred roles as a bitmask. An empty
// preference list means the player accepts every position.
func (p *Player) RoleSet() RoleSet {
	s := RoleSetFromInts(p.PreferredRoles)
	if s.IsEmpty() {
		return AllRolesSet
	}
	return s
}

// HasRating reports whether the player carries a usable Glicko rating.
func (p *Player) HasRating() bool {
	return p.Rating > 0
}

// ClampRating forces rating, deviation, and volatility into their
// persistable ranges.
func (p *Player) ClampRating() {
	p.Rating = clamp(p.Rating, RatingMin, RatingMax)
	p.RD = clamp(p.RD, RDMin, RDMax)
	p.Volatility = clamp(p.Volatility, 1e-4, 0.5)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// User is a web account used for API authentication. Admin users can force
// match results on their own.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	DisplayName  string    `json:"displayName" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	PlayerID     *int64    `json:"playerId"`
	IsAdmin      bool      `json:"isAdmin" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}
