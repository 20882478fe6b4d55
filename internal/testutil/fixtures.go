package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlayerBuilder creates test players with a builder pattern
type PlayerBuilder struct {
	playerID   int64
	guildID    int64
	name       string
	rating     float64
	rd         float64
	volatility float64
	roles      []int
}

// NewPlayerBuilder creates a new PlayerBuilder with default values
func NewPlayerBuilder(playerID int64) *PlayerBuilder {
	return &PlayerBuilder{
		playerID:   playerID,
		name:       fmt.Sprintf("player_%d", playerID),
		rating:     domain.DefaultRating,
		rd:         domain.DefaultRD,
		volatility: domain.DefaultVolatility,
	}
}

// WithGuild sets the guild id
func (b *PlayerBuilder) WithGuild(guildID int64) *PlayerBuilder {
	b.guildID = guildID
	return b
}

// WithName sets the display name
func (b *PlayerBuilder) WithName(name string) *PlayerBuilder {
	b.name = name
	return b
}

// WithRating sets rating and deviation
func (b *PlayerBuilder) WithRating(rating, rd float64) *PlayerBuilder {
	b.rating = rating
	b.rd = rd
	return b
}

// WithRoles sets preferred positions
func (b *PlayerBuilder) WithRoles(roles ...int) *PlayerBuilder {
	b.roles = roles
	return b
}

// Build creates the player in the database
func (b *PlayerBuilder) Build(t *testing.T, db *gorm.DB) *domain.Player {
	t.Helper()

	player := &domain.Player{
		PlayerID:       b.playerID,
		GuildID:        b.guildID,
		Name:           b.name,
		Rating:         b.rating,
		RD:             b.rd,
		Volatility:     b.volatility,
		PreferredRoles: datatypes.NewJSONSlice(b.roles),
	}
	if err := db.Create(player).Error; err != nil {
		t.Fatalf("failed to create player: %v", err)
	}
	return player
}

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
	isAdmin     bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// AsAdmin marks the user as an admin
func (b *UserBuilder) AsAdmin() *UserBuilder {
	b.isAdmin = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		IsAdmin:      b.isAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, b.password
}

// SeedPlayers creates n players with the given ratings in a guild. Players
// get ids 1..n and prefer all positions.
func SeedPlayers(t *testing.T, db *gorm.DB, guildID int64, ratings []float64) []*domain.Player {
	t.Helper()

	players := make([]*domain.Player, len(ratings))
	for i, r := range ratings {
		players[i] = NewPlayerBuilder(int64(i + 1)).
			WithGuild(guildID).
			WithRating(r, domain.DefaultRD).
			Build(t, db)
	}
	return players
}
