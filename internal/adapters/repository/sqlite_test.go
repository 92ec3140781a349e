package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

func openTestDB(t *testing.T, opts ...SQLiteOption) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RecordAndRank(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	st, err := s.Record(ctx, result("b1", "alice", model.OutcomeWin))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rank)
	assert.Equal(t, 3, st.Score)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, "bitcoin", st.FavoriteCharacter)
	assert.True(t, st.LastPlayed.Equal(testEpoch))

	st, err = s.Record(ctx, result("b2", "alice", model.OutcomeDraw))
	require.NoError(t, err)
	assert.Equal(t, 4, st.Score)
	assert.Equal(t, 1, st.Draws)

	got, err := s.Rank(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, st, got)
	assert.Equal(t, 1, s.Count(ctx))
}

func TestSQLiteStore_Ordering(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	seq := []struct {
		player string
		o      model.Outcome
	}{
		{"carol", model.OutcomeWin},
		{"carol", model.OutcomeWin},
		{"bob", model.OutcomeWin},
		{"alice", model.OutcomeWin},
		{"dave", model.OutcomeDraw},
		{"erin", model.OutcomeLose},
	}
	for i, x := range seq {
		_, err := s.Record(ctx, result(fmt.Sprintf("b%d", i), x.player, x.o))
		require.NoError(t, err)
	}

	top, err := s.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 5)

	ids := make([]string, len(top))
	rks := make([]int, len(top))
	for i, st := range top {
		ids[i], rks[i] = st.PlayerID, st.Rank
	}
	assert.Equal(t, []string{"carol", "alice", "bob", "dave", "erin"}, ids)
	assert.Equal(t, []int{1, 2, 2, 4, 5}, rks)

	bob, err := s.Rank(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, bob.Rank)

	erin, err := s.Rank(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, 0, erin.Score)
	assert.Equal(t, 1, erin.Losses)
}

func TestSQLiteStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	_, err := s.Rank(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.TopN(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = s.History(ctx, "nobody", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = s.History(ctx, "nobody", 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Record(ctx, result("", "alice", model.OutcomeWin))
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = s.Record(ctx, result("b1", "alice", model.OutcomeWin))
	require.NoError(t, err)
	_, err = s.Record(ctx, result("b1", "alice", model.OutcomeWin))
	assert.ErrorIs(t, err, ErrDuplicateBattle)

	st, err := s.Rank(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Score, "duplicate must not move the score")
}

func TestSQLiteStore_DefaultsAndHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	s := openTestDB(t, WithSQLiteClock(func() time.Time { return now }))

	res := result("g1", "", model.OutcomeWin)
	res.Mode = ""
	res.PlayedAt = time.Time{}
	st, err := s.Record(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, model.GuestPlayerID, st.PlayerID)
	assert.True(t, st.LastPlayed.Equal(now))

	for i := range 3 {
		r := result(fmt.Sprintf("g%d", i+2), model.GuestPlayerID, model.OutcomeLose)
		r.PlayerCharacterID = "solana"
		r.PlayedAt = now.Add(time.Duration(i+1) * time.Minute)
		_, err := s.Record(ctx, r)
		require.NoError(t, err)
	}

	hist, err := s.History(ctx, model.GuestPlayerID, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "g4", hist[0].BattleID)
	assert.Equal(t, "g3", hist[1].BattleID)
	assert.Equal(t, model.OutcomeLose, hist[0].Outcome)
	assert.Equal(t, "solana", hist[0].PlayerCharacterID)

	all, err := s.History(ctx, model.GuestPlayerID, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, model.ModePvP, all[3].Mode)

	st, err = s.Rank(ctx, model.GuestPlayerID)
	require.NoError(t, err)
	assert.Equal(t, "solana", st.FavoriteCharacter)
	assert.True(t, st.LastPlayed.Equal(now.Add(3*time.Minute)))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = s.Record(ctx, result("b1", "alice", model.OutcomeWin))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Rank(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Score)

	_, err = s.Record(ctx, result("b1", "alice", model.OutcomeWin))
	assert.ErrorIs(t, err, ErrDuplicateBattle, "battle ids survive a restart")
}

func TestSQLiteStore_MatchesTreap(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	tr := NewTreapStore(ctx)
	defer tr.Close()

	outcomes := []model.Outcome{model.OutcomeWin, model.OutcomeLose, model.OutcomeDraw}
	for i := range 200 {
		res := result(fmt.Sprintf("b%d", i), fmt.Sprintf("p%02d", (i*7)%23), outcomes[(i*5)%3])
		a, err := s.Record(ctx, res)
		require.NoError(t, err)
		b, err := tr.Record(ctx, res)
		require.NoError(t, err)
		assert.Equal(t, b.Rank, a.Rank, "rank after battle %d", i)
	}

	want, err := tr.TopN(ctx, 50)
	require.NoError(t, err)
	got, err := s.TopN(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
