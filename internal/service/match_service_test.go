package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/inhouse-league/internal/domain"
	"github.com/dom/inhouse-league/internal/lock"
	"github.com/dom/inhouse-league/internal/repository/postgres"
	"github.com/dom/inhouse-league/internal/service"
	"github.com/dom/inhouse-league/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuild int64 = 123

func newMatchService(t *testing.T) (*service.MatchService, *testutil.TestDB, *lock.Coordinator) {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	cfg := testutil.TestConfig()
	repos := postgres.NewRepositories(testDB.DB)
	shuffleLocks := lock.NewCoordinator(cfg.StaleLockThreshold)
	recordLocks := lock.NewCoordinator(cfg.StaleLockThreshold)
	svc := service.NewMatchService(repos.Player, repos.Match, cfg, shuffleLocks, recordLocks)
	return svc, testDB, shuffleLocks
}

func poolIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func TestMatchService_ShuffleCreatesPendingMatch(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	ratings := []float64{1800, 1750, 1700, 1650, 1600, 1550, 1500, 1450, 1400, 1350}
	testutil.SeedPlayers(t, testDB.DB, testGuild, ratings)

	pm, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	assert.Equal(t, domain.PhasePending, pm.Phase)
	assert.Len(t, pm.RadiantIDs, 5)
	assert.Len(t, pm.DireIDs, 5)
	assert.Empty(t, pm.ExcludedIDs)
	assert.True(t, pm.WinProb > 0 && pm.WinProb < 1)
	assert.True(t, pm.BetLockUntil.After(time.Now()))

	pending := svc.PendingMatches(testGuild)
	require.Len(t, pending, 1)
	assert.Equal(t, pm.ID, pending[0].ID)
}

func TestMatchService_ShuffleRequiresTenRegistered(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, []float64{1500, 1500, 1500})

	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	assert.ErrorIs(t, err, domain.ErrInsufficientPlayers)
}

func TestMatchService_ShuffleRejectsUnknownSource(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, make([]float64, 0))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{
		GuildID:   testGuild,
		PlayerIDs: poolIDs(10),
		Source:    service.RatingSource("elo"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMatchService_ShuffleConflict(t *testing.T) {
	svc, testDB, shuffleLocks := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))

	// Another shuffle is in flight for this guild.
	require.True(t, shuffleLocks.TryAcquire(testGuild))
	defer shuffleLocks.Release(testGuild)

	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	assert.ErrorIs(t, err, domain.ErrShuffleInProgress)
}

func TestMatchService_ShuffleTracksExclusionCounts(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()
	repos := postgres.NewRepositories(testDB.DB)

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(11))

	pm, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(11)})
	require.NoError(t, err)
	require.Len(t, pm.ExcludedIDs, 1)

	counts, err := repos.Player.GetExclusionCounts(ctx, poolIDs(11), testGuild)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[pm.ExcludedIDs[0]])
	for _, id := range append(pm.RadiantIDs, pm.DireIDs...) {
		assert.Zero(t, counts[id], "included player %d keeps a zero count", id)
	}
}

func TestMatchService_FullLifecycle(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()
	repos := postgres.NewRepositories(testDB.DB)

	ratings := []float64{1800, 1750, 1700, 1650, 1600, 1550, 1500, 1450, 1400, 1350}
	testutil.SeedPlayers(t, testDB.DB, testGuild, ratings)

	pm, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	before := make(map[int64]float64)
	players, err := repos.Player.List(ctx, poolIDs(10), testGuild)
	require.NoError(t, err)
	for _, p := range players {
		before[p.PlayerID] = p.Rating
	}

	// Three converging non-admin reports finalize the match.
	status, err := svc.SubmitRecord(ctx, testGuild, 100, domain.ResultRadiant, false)
	require.NoError(t, err)
	assert.False(t, status.Decided)

	status, err = svc.SubmitRecord(ctx, testGuild, 101, domain.ResultRadiant, false)
	require.NoError(t, err)
	assert.False(t, status.Decided)

	status, err = svc.SubmitRecord(ctx, testGuild, 102, domain.ResultRadiant, false)
	require.NoError(t, err)
	require.True(t, status.Decided)
	assert.Equal(t, domain.ResultRadiant, status.Result)
	require.NotZero(t, status.MatchID)

	// Pending match is gone.
	assert.Empty(t, svc.PendingMatches(testGuild))

	// Ratings moved in the right direction and wins were tallied.
	radiant := map[int64]struct{}{}
	for _, id := range pm.RadiantIDs {
		radiant[id] = struct{}{}
	}
	players, err = repos.Player.List(ctx, poolIDs(10), testGuild)
	require.NoError(t, err)
	require.Len(t, players, 10)
	for _, p := range players {
		if _, won := radiant[p.PlayerID]; won {
			assert.Greater(t, p.Rating, before[p.PlayerID], "winner %d", p.PlayerID)
			assert.Equal(t, 1, p.Wins)
			assert.Zero(t, p.Losses)
		} else {
			assert.Less(t, p.Rating, before[p.PlayerID], "loser %d", p.PlayerID)
			assert.Equal(t, 1, p.Losses)
			assert.Zero(t, p.Wins)
		}
		assert.Less(t, p.RD, domain.DefaultRD)
	}

	// The recorded match and its history entries are persisted.
	match, err := svc.GetMatch(ctx, status.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideRadiant.TeamNumber(), match.WinningTeam)
	assert.Len(t, match.Participants, 10)

	history, err := repos.Match.RatingHistoryForPlayer(ctx, pm.RadiantIDs[0], testGuild, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Won)
	assert.Greater(t, history[0].RatingAfter, history[0].RatingBefore)

	// Leaderboard by wins puts the winners on top.
	board, err := repos.Player.Leaderboard(ctx, testGuild, "wins", 10)
	require.NoError(t, err)
	require.Len(t, board, 10)
	for i := 0; i < 5; i++ {
		_, won := radiant[board[i].PlayerID]
		assert.True(t, won, "rank %d should be a winner", i)
	}
}

func TestMatchService_RecordDireWinner(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))

	pm, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	result, err := svc.Record(ctx, testGuild, domain.SideDire, nil)
	require.NoError(t, err)

	match, err := svc.GetMatch(ctx, result.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideDire.TeamNumber(), match.WinningTeam)

	dire := map[int64]struct{}{}
	for _, id := range pm.DireIDs {
		dire[id] = struct{}{}
	}
	for _, part := range match.Participants {
		_, onDire := dire[part.PlayerID]
		assert.Equal(t, onDire, part.Won, "player %d", part.PlayerID)
		if onDire {
			assert.Equal(t, domain.SideDire.TeamNumber(), part.TeamNumber)
		} else {
			assert.Equal(t, domain.SideRadiant.TeamNumber(), part.TeamNumber)
		}
	}
}

func TestMatchService_RecordWithoutPending(t *testing.T) {
	svc, _, _ := newMatchService(t)

	_, err := svc.Record(context.Background(), testGuild, domain.SideRadiant, nil)
	assert.ErrorIs(t, err, domain.ErrNoPendingMatch)
}

func TestMatchService_RecordRejectsBadWinner(t *testing.T) {
	svc, _, _ := newMatchService(t)

	_, err := svc.Record(context.Background(), testGuild, domain.Side("neutral"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidWinner)
}

func TestMatchService_SubmitIdempotence(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	// The same user repeating a report adds nothing.
	for i := 0; i < 3; i++ {
		status, err := svc.SubmitRecord(ctx, testGuild, 100, domain.ResultRadiant, false)
		require.NoError(t, err)
		assert.False(t, status.Decided)
		assert.Equal(t, 1, status.Submissions)
	}
}

func TestMatchService_AdminSubmissionDecidesAlone(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	status, err := svc.SubmitRecord(ctx, testGuild, 999, domain.ResultDire, true)
	require.NoError(t, err)
	require.True(t, status.Decided)
	assert.Equal(t, domain.ResultDire, status.Result)
	assert.NotZero(t, status.MatchID)
	assert.Empty(t, svc.PendingMatches(testGuild))
}

func TestMatchService_AbortIsIdempotent(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	// Nothing pending: no error.
	require.NoError(t, svc.Abort(ctx, testGuild))

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	require.NoError(t, svc.Abort(ctx, testGuild))
	assert.Empty(t, svc.PendingMatches(testGuild))
	require.NoError(t, svc.Abort(ctx, testGuild))
}

func TestMatchService_AbortConsensus(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	for _, userID := range []int64{100, 101} {
		status, err := svc.SubmitRecord(ctx, testGuild, userID, domain.ResultAbort, false)
		require.NoError(t, err)
		assert.False(t, status.Decided)
	}
	status, err := svc.SubmitRecord(ctx, testGuild, 102, domain.ResultAbort, false)
	require.NoError(t, err)
	require.True(t, status.Decided)
	assert.Equal(t, domain.ResultAbort, status.Result)
	assert.Zero(t, status.MatchID)
	assert.Empty(t, svc.PendingMatches(testGuild))
}

func TestMatchService_PlayerInSinglePendingMatch(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(10))
	_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	require.NoError(t, err)

	// A second shuffle with overlapping players must be refused.
	_, err = svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: poolIDs(10)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMatchService_DecidedVotesFinalizeTheVotedMatch(t *testing.T) {
	svc, testDB, _ := newMatchService(t)
	ctx := context.Background()

	testutil.SeedPlayers(t, testDB.DB, testGuild, uniformRatings(20))
	firstPool := poolIDs(10)
	secondPool := poolIDs(20)[10:]

	// Race the deciding vote against a shuffle for ten other players. The
	// verdict belongs to the match the votes were cast on; no interleaving
	// may transfer it to the newer pending match.
	for round := 0; round < 6; round++ {
		_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: firstPool})
		require.NoError(t, err)
		for _, userID := range []int64{100, 101} {
			_, err := svc.SubmitRecord(ctx, testGuild, userID, domain.ResultRadiant, false)
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitRecord(ctx, testGuild, 102, domain.ResultRadiant, false)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Shuffle(ctx, service.ShuffleInput{GuildID: testGuild, PlayerIDs: secondPool})
			assert.NoError(t, err)
		}()
		wg.Wait()

		// Depending on the interleaving the vote either decided the first
		// match or landed as a lone vote on the second. Drain both pendings.
		require.NoError(t, svc.Abort(ctx, testGuild))
		require.NoError(t, svc.Abort(ctx, testGuild))
	}

	matches, err := svc.ListMatches(ctx, testGuild, 100, 0)
	require.NoError(t, err)
	for _, m := range matches {
		got, err := svc.GetMatch(ctx, m.ID)
		require.NoError(t, err)
		ids := make([]int64, 0, 10)
		for _, p := range got.Participants {
			ids = append(ids, p.PlayerID)
		}
		assert.ElementsMatch(t, firstPool, ids, "match %d recorded the wrong pool", m.ID)
	}
}

func uniformRatings(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1500
	}
	return out
}
