package simulate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// verify compares the server's standings with the local tallies and checks
// that the leaderboard is ordered and competition-ranked.
func (r *Runner) verify(ctx context.Context, tallies map[string]tally) ([]string, error) {
	var mismatches []string

	for id, t := range tallies {
		var st model.Standing
		if err := r.client.getJSON(ctx, "/rank/"+url.PathEscape(id), &st); err != nil {
			mismatches = append(mismatches, fmt.Sprintf("%s: rank lookup failed: %v", id, err))
			continue
		}
		if st.Wins != t.wins || st.Losses != t.losses || st.Draws != t.draws {
			mismatches = append(mismatches, fmt.Sprintf("%s: server has %d/%d/%d, played %d/%d/%d",
				id, st.Wins, st.Losses, st.Draws, t.wins, t.losses, t.draws))
		}
		if st.Score != t.score() {
			mismatches = append(mismatches, fmt.Sprintf("%s: score %d, want %d", id, st.Score, t.score()))
		}
	}

	var board []model.Standing
	q := url.Values{"limit": {strconv.Itoa(len(tallies))}}
	if err := r.client.getJSON(ctx, "/leaderboard?"+q.Encode(), &board); err != nil {
		return mismatches, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return append(mismatches, checkBoard(board)...), nil
}

// checkBoard reports ordering and ranking errors in a leaderboard page that
// starts at rank 1.
func checkBoard(board []model.Standing) []string {
	var out []string
	for i, st := range board {
		want := i + 1
		if i > 0 && st.Score == board[i-1].Score {
			want = board[i-1].Rank
		}
		if st.Rank != want {
			out = append(out, fmt.Sprintf("position %d (%s): rank %d, want %d", i+1, st.PlayerID, st.Rank, want))
		}
		if i == 0 {
			continue
		}
		prev := board[i-1]
		if st.Score > prev.Score || (st.Score == prev.Score && st.PlayerID < prev.PlayerID) {
			out = append(out, fmt.Sprintf("position %d (%s) is out of order", i+1, st.PlayerID))
		}
	}
	return out
}
