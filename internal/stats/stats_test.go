package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arenalab/pong-arena/internal/domain"
)

func pvpRecord(id string, endedAt time.Time) *domain.MatchRecord {
	return &domain.MatchRecord{
		ID:           id,
		Preset:       "classic",
		LeftID:       "u1",
		LeftName:     "Ana",
		RightID:      "u2",
		RightName:    "Bo",
		LeftScore:    5,
		RightScore:   3,
		Winner:       "u1",
		WinnerSide:   "left",
		ResultMethod: "score",
		StartedAt:    endedAt.Add(-2 * time.Minute),
		EndedAt:      endedAt,
		Duration:     2 * time.Minute,
	}
}

func TestRecordPvPMovesRating(t *testing.T) {
	repo := NewMemRepo()
	rec := NewRecorder(repo)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, pvpRecord("m1", time.Now())))

	winner, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, winner)
	require.Equal(t, 1, winner.Wins)
	require.Equal(t, 1, winner.GamesPlayed)
	require.Equal(t, "win", winner.StreakType)
	require.Equal(t, 1, winner.Streak)
	require.Greater(t, winner.Rating, defaultRating)

	loser, err := repo.GetProfile(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, loser)
	require.Equal(t, 1, loser.Losses)
	require.Less(t, loser.Rating, defaultRating)

	// equal starting ratings transfer symmetric points
	require.Equal(t, winner.Rating-defaultRating, defaultRating-loser.Rating)
}

func TestRecordAIMatchKeepsRating(t *testing.T) {
	repo := NewMemRepo()
	rec := NewRecorder(repo)
	ctx := context.Background()

	r := pvpRecord("m1", time.Now())
	r.RightID = "ai:3"
	r.RightName = "Club AI"
	r.VsAI = true
	r.AILevel = 3
	require.NoError(t, rec.Record(ctx, r))

	winner, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, winner)
	require.Equal(t, defaultRating, winner.Rating)
	require.Equal(t, 1, winner.Wins)

	// the AI never gets a profile
	aiProfile, err := repo.GetProfile(ctx, "ai:3")
	require.NoError(t, err)
	require.Nil(t, aiProfile)
}

func TestRecordAILossCountedForHuman(t *testing.T) {
	repo := NewMemRepo()
	rec := NewRecorder(repo)
	ctx := context.Background()

	r := pvpRecord("m1", time.Now())
	r.RightID = "ai:5"
	r.VsAI = true
	r.Winner = "ai:5"
	r.WinnerSide = "right"
	require.NoError(t, rec.Record(ctx, r))

	human, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, human)
	require.Equal(t, 1, human.Losses)
	require.Equal(t, "loss", human.StreakType)
	require.Equal(t, defaultRating, human.Rating)
}

func TestStreakExtendsAndFlips(t *testing.T) {
	repo := NewMemRepo()
	rec := NewRecorder(repo)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, rec.Record(ctx, pvpRecord("m1", base)))
	require.NoError(t, rec.Record(ctx, pvpRecord("m2", base.Add(time.Minute))))

	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, p.Streak)
	require.Equal(t, "win", p.StreakType)

	// u1 loses the third one
	r := pvpRecord("m3", base.Add(2*time.Minute))
	r.Winner = "u2"
	r.WinnerSide = "right"
	require.NoError(t, rec.Record(ctx, r))

	p, err = repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, p.Streak)
	require.Equal(t, "loss", p.StreakType)
}

func TestRecentMatchesNewestFirst(t *testing.T) {
	repo := NewMemRepo()
	rec := NewRecorder(repo)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, rec.Record(ctx, pvpRecord("old", base.Add(-time.Hour))))
	require.NoError(t, rec.Record(ctx, pvpRecord("new", base)))

	got, err := repo.RecentMatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "new", got[0].ID)
	require.Equal(t, "old", got[1].ID)

	got, err = repo.RecentMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestLeaderboardOrdering(t *testing.T) {
	repo := NewMemRepo()
	ctx := context.Background()
	now := time.Now()

	for _, p := range []domain.PlayerProfile{
		{PlayerID: "low", Rating: 900, Wins: 10, GamesPlayed: 30, UpdatedAt: now},
		{PlayerID: "top", Rating: 1200, Wins: 5, GamesPlayed: 10, UpdatedAt: now},
		{PlayerID: "mid-a", Rating: 1000, Wins: 7, GamesPlayed: 12, UpdatedAt: now},
		{PlayerID: "mid-b", Rating: 1000, Wins: 3, GamesPlayed: 12, UpdatedAt: now},
	} {
		cp := p
		require.NoError(t, repo.UpsertProfile(ctx, &cp))
	}

	got, err := repo.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "top", got[0].PlayerID)
	require.Equal(t, "mid-a", got[1].PlayerID)
	require.Equal(t, "mid-b", got[2].PlayerID)
}

func TestMemRepoSatisfiesRepository(t *testing.T) {
	var repo Repository = NewMemRepo()
	ctx := context.Background()

	require.NoError(t, repo.SaveMatch(ctx, pvpRecord("m1", time.Now())))

	recs, err := repo.RecentMatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	board, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, board)

	require.NoError(t, repo.Close())
}

func TestRecordNilRejected(t *testing.T) {
	rec := NewRecorder(NewMemRepo())
	require.ErrorIs(t, rec.Record(context.Background(), nil), ErrNilRecord)
}

func TestEloDeltaFavorsUnderdog(t *testing.T) {
	upset := eloDelta(900, 1100)
	expected := eloDelta(1100, 900)
	require.Greater(t, upset, expected)
	require.GreaterOrEqual(t, expected, 1)
}
