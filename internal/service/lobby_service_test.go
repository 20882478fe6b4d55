package service_test

import (
	"context"
	"testing"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/repository/postgres"
	"github.com/dom/inhouse-league/internal/service"
	"github.com/dom/inhouse-league/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLobbyService(t *testing.T) (*service.LobbyService, *testutil.TestDB) {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	cfg := testutil.TestConfig()
	repos := postgres.NewRepositories(testDB.DB)
	return service.NewLobbyService(repos.Lobby, repos.Player, cfg), testDB
}

func TestLobbyService_OpenIsIdempotent(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	lobby, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LobbyStatusOpen, lobby.Status)

	again, err := svc.Open(ctx, testGuild, 2)
	require.NoError(t, err)
	assert.Same(t, lobby, again)
}

func TestLobbyService_GetWithoutLobby(t *testing.T) {
	svc, _ := newLobbyService(t)

	_, err := svc.Get(context.Background(), testGuild)
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
}

func TestLobbyService_JoinQueuesAreDisjoint(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	lobby, err := svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	assert.Contains(t, lobby.Regular, int64(10))

	// Switching to conditional removes the regular entry.
	lobby, err = svc.Join(ctx, testGuild, 10, domain.QueueConditional)
	require.NoError(t, err)
	assert.NotContains(t, lobby.Regular, int64(10))
	assert.Contains(t, lobby.Conditional, int64(10))
	assert.Equal(t, 1, lobby.Size())
}

func TestLobbyService_QueueSwitchPreservesJoinTime(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	lobby, err := svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	joined := lobby.JoinTimes[10]
	require.False(t, joined.IsZero())

	lobby, err = svc.Join(ctx, testGuild, 10, domain.QueueConditional)
	require.NoError(t, err)
	assert.Equal(t, joined, lobby.JoinTimes[10])
}

func TestLobbyService_JoinRejections(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	_, err = svc.Join(ctx, testGuild, 10, domain.Queue("ranked"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	_, err = svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)
}

func TestLobbyService_CapacityLimit(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	for i := int64(1); i <= 12; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueRegular)
		require.NoError(t, err)
	}

	_, err = svc.Join(ctx, testGuild, 13, domain.QueueConditional)
	assert.ErrorIs(t, err, domain.ErrLobbyFull)

	// A queue switch is not a new join and stays allowed at capacity.
	_, err = svc.Join(ctx, testGuild, 12, domain.QueueConditional)
	assert.NoError(t, err)
}

func TestLobbyService_LeaveAndReset(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	_, err = svc.Leave(ctx, testGuild, 10)
	assert.ErrorIs(t, err, domain.ErrNotQueued)

	_, err = svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	lobby, err := svc.Leave(ctx, testGuild, 10)
	require.NoError(t, err)
	assert.Zero(t, lobby.Size())
	assert.NotContains(t, lobby.JoinTimes, int64(10))

	require.NoError(t, svc.Reset(ctx, testGuild))
	_, err = svc.Get(ctx, testGuild)
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)

	// Resetting again is a no-op.
	require.NoError(t, svc.Reset(ctx, testGuild))
}

func TestLobbyService_PersistsAcrossRestart(t *testing.T) {
	svc, testDB := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)
	_, err = svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	_, err = svc.Join(ctx, testGuild, 11, domain.QueueConditional)
	require.NoError(t, err)

	// A fresh service over the same database restores the open lobby.
	repos := postgres.NewRepositories(testDB.DB)
	restored := service.NewLobbyService(repos.Lobby, repos.Player, testutil.TestConfig())

	lobby, err := restored.Get(ctx, testGuild)
	require.NoError(t, err)
	assert.Contains(t, lobby.Regular, int64(10))
	assert.Contains(t, lobby.Conditional, int64(11))
	assert.Len(t, lobby.JoinTimes, 2)
}

func TestLobbyService_Ready(t *testing.T) {
	svc, _ := newLobbyService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)

	for i := int64(1); i <= 9; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueRegular)
		require.NoError(t, err)
	}
	ready, err := svc.Ready(ctx, testGuild)
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = svc.Join(ctx, testGuild, 10, domain.QueueRegular)
	require.NoError(t, err)
	ready, err = svc.Ready(ctx, testGuild)
	require.NoError(t, err)
	assert.True(t, ready)

	// Conditional players do not count toward readiness.
	_, err = svc.Leave(ctx, testGuild, 10)
	require.NoError(t, err)
	_, err = svc.Join(ctx, testGuild, 10, domain.QueueConditional)
	require.NoError(t, err)
	ready, err = svc.Ready(ctx, testGuild)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestLobbyService_SelectForShuffle(t *testing.T) {
	svc, testDB := newLobbyService(t)
	ctx := context.Background()

	// Eight regulars and four conditionals with distinct ratings.
	ratings := []float64{1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500, 1900, 1800, 1700, 1600}
	testutil.SeedPlayers(t, testDB.DB, testGuild, ratings)

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)
	for i := int64(1); i <= 8; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueRegular)
		require.NoError(t, err)
	}
	for i := int64(9); i <= 12; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueConditional)
		require.NoError(t, err)
	}

	sel, err := svc.SelectForShuffle(ctx, testGuild, 10)
	require.NoError(t, err)

	// All regulars included; the two strongest conditionals fill the gap.
	assert.Len(t, sel.PoolIDs, 10)
	for i := int64(1); i <= 8; i++ {
		assert.Contains(t, sel.PoolIDs, i)
	}
	assert.Contains(t, sel.PoolIDs, int64(9))
	assert.Contains(t, sel.PoolIDs, int64(10))
	assert.Equal(t, []int64{11, 12}, sel.ExcludedConditionalIDs)
}

func TestLobbyService_SelectForShuffleRegularsSuffice(t *testing.T) {
	svc, testDB := newLobbyService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(12))

	_, err := svc.Open(ctx, testGuild, 1)
	require.NoError(t, err)
	for i := int64(1); i <= 10; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueRegular)
		require.NoError(t, err)
	}
	for i := int64(11); i <= 12; i++ {
		_, err = svc.Join(ctx, testGuild, i, domain.QueueConditional)
		require.NoError(t, err)
	}

	sel, err := svc.SelectForShuffle(ctx, testGuild, 10)
	require.NoError(t, err)

	assert.Len(t, sel.PoolIDs, 10)
	assert.Equal(t, []int64{11, 12}, sel.ExcludedConditionalIDs)
}
