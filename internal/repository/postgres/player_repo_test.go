package postgres_test

import (
	"context"
	"testing"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/repository/postgres"
	"github.com/dom/inhouse-league/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuild int64 = 42

func TestPlayerRepository_CRUD(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPlayerRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Get(ctx, 1, testGuild)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	seeded := testutil.NewPlayerBuilder(1).
		WithGuild(testGuild).
		WithName("alice").
		WithRating(1600, 250).
		WithRoles(1, 2).
		Build(t, testDB.DB)

	got, err := repo.Get(ctx, 1, testGuild)
	require.NoError(t, err)
	assert.Equal(t, seeded.Name, got.Name)
	assert.Equal(t, 1600.0, got.Rating)
	assert.Equal(t, []int{1, 2}, got.RoleSet().Ints())

	// Same player id in another guild is a distinct row.
	_, err = repo.Get(ctx, 1, testGuild+1)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	got.Name = "alice2"
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, 1, testGuild)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Name)
}

func TestPlayerRepository_UpdateRating(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPlayerRepository(testDB.DB)
	ctx := context.Background()

	testutil.NewPlayerBuilder(1).WithGuild(testGuild).Build(t, testDB.DB)

	require.NoError(t, repo.UpdateRating(ctx, 1, testGuild, 1725.5, 180.25, 0.059))

	got, err := repo.Get(ctx, 1, testGuild)
	require.NoError(t, err)
	assert.Equal(t, 1725.5, got.Rating)
	assert.Equal(t, 180.25, got.RD)
	assert.Equal(t, 0.059, got.Volatility)
}

func TestPlayerRepository_ExclusionCounts(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPlayerRepository(testDB.DB)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, []float64{1500, 1500, 1500})
	ids := []int64{1, 2, 3}

	counts, err := repo.GetExclusionCounts(ctx, ids, testGuild)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 0, 2: 0, 3: 0}, counts)

	require.NoError(t, repo.IncrementExclusionCount(ctx, 2, testGuild))
	require.NoError(t, repo.IncrementExclusionCount(ctx, 2, testGuild))
	require.NoError(t, repo.IncrementExclusionCount(ctx, 2, testGuild))
	require.NoError(t, repo.IncrementExclusionCount(ctx, 3, testGuild))

	counts, err = repo.GetExclusionCounts(ctx, ids, testGuild)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 0, 2: 3, 3: 1}, counts)

	// Integer halving: 3 -> 1 -> 0, 1 -> 0.
	require.NoError(t, repo.DecayExclusionCount(ctx, 2, testGuild))
	require.NoError(t, repo.DecayExclusionCount(ctx, 3, testGuild))
	counts, err = repo.GetExclusionCounts(ctx, ids, testGuild)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 0, 2: 1, 3: 0}, counts)
}

func TestPlayerRepository_CaptainEligible(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPlayerRepository(testDB.DB)
	ctx := context.Background()

	players := testutil.SeedPlayers(t, testDB.DB, testGuild, []float64{1500, 1500, 1500, 1500})
	for _, p := range []*domain.Player{players[1], players[3]} {
		p.CaptainEligible = true
		require.NoError(t, repo.Update(ctx, p))
	}

	ids, err := repo.GetCaptainEligible(ctx, []int64{1, 2, 3, 4}, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, ids)

	// Only ids inside the requested set come back.
	ids, err = repo.GetCaptainEligible(ctx, []int64{1, 2}, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}

func TestPlayerRepository_Leaderboard(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewPlayerRepository(testDB.DB)
	ctx := context.Background()

	a := testutil.NewPlayerBuilder(1).WithGuild(testGuild).WithRating(1400, 200).Build(t, testDB.DB)
	b := testutil.NewPlayerBuilder(2).WithGuild(testGuild).WithRating(1700, 200).Build(t, testDB.DB)
	c := testutil.NewPlayerBuilder(3).WithGuild(testGuild).WithRating(1550, 200).Build(t, testDB.DB)

	a.Wins, a.Losses = 5, 1
	b.Wins, b.Losses = 3, 3
	c.Wins, c.Losses = 5, 2
	for _, p := range []*domain.Player{a, b, c} {
		require.NoError(t, repo.Update(ctx, p))
	}

	byWins, err := repo.Leaderboard(ctx, testGuild, "wins", 10)
	require.NoError(t, err)
	require.Len(t, byWins, 3)
	assert.Equal(t, int64(1), byWins[0].PlayerID)
	assert.Equal(t, int64(3), byWins[1].PlayerID)
	assert.Equal(t, int64(2), byWins[2].PlayerID)

	byRating, err := repo.Leaderboard(ctx, testGuild, "rating", 2)
	require.NoError(t, err)
	require.Len(t, byRating, 2)
	assert.Equal(t, int64(2), byRating[0].PlayerID)
	assert.Equal(t, int64(3), byRating[1].PlayerID)
}
