// Package repository stores game results and derives the leaderboard.
//
// Every result moves the player's standing: a win is worth 3 points, a draw
// 1, a loss 0. Standings order by score desc, then player id asc. Ranks use
// competition ranking, so tied players share a rank and the next rank skips.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// Store provides read/write access to the result log and leaderboard.
type Store interface {
	// Record appends a result and returns the player's updated standing.
	// A battle id can be recorded only once.
	Record(ctx context.Context, res model.GameResult) (model.Standing, error)

	// Rank returns the standing for a player, or ErrNotFound.
	Rank(ctx context.Context, playerID string) (model.Standing, error)

	// TopN returns the top-N standings in leaderboard order.
	TopN(ctx context.Context, n int) ([]model.Standing, error)

	// History returns up to limit results for a player, newest first.
	History(ctx context.Context, playerID string, limit int) ([]model.GameResult, error)

	// Count returns the number of players on the leaderboard.
	Count(ctx context.Context) int

	Close() error
}

// normalize validates res and fills defaults.
func normalize(res model.GameResult, now func() time.Time) (model.GameResult, error) {
	res.BattleID = strings.TrimSpace(res.BattleID)
	res.PlayerID = strings.TrimSpace(res.PlayerID)
	if res.BattleID == "" {
		return res, fmt.Errorf("%w: missing battle id", ErrInvalidResult)
	}
	if res.PlayerCharacterID == "" || res.OpponentCharacterID == "" {
		return res, fmt.Errorf("%w: missing character id", ErrInvalidResult)
	}
	if !res.Outcome.Valid() {
		return res, fmt.Errorf("%w: outcome %q", ErrInvalidResult, res.Outcome)
	}
	if res.PlayerID == "" {
		res.PlayerID = model.GuestPlayerID
	}
	if res.Mode == "" {
		res.Mode = model.ModePvP
	}
	if res.PlayedAt.IsZero() {
		res.PlayedAt = now()
	}
	res.PlayedAt = res.PlayedAt.UTC()
	return res, nil
}

// applyOutcome adds one result to a standing.
func applyOutcome(s *model.Standing, o model.Outcome, playedAt time.Time) {
	switch o {
	case model.OutcomeWin:
		s.Wins++
	case model.OutcomeLose:
		s.Losses++
	case model.OutcomeDraw:
		s.Draws++
	}
	s.Score += o.Points()
	if playedAt.After(s.LastPlayed) {
		s.LastPlayed = playedAt
	}
}

// favorite returns the most used character; ties go to the smaller id.
func favorite(usage map[string]int) string {
	best, bestCount := "", 0
	for id, n := range usage {
		if n > bestCount || (n == bestCount && id < best) {
			best, bestCount = id, n
		}
	}
	return best
}

// ranks assigns competition ranks to standings already in leaderboard
// order, with the first entry holding firstRank.
func ranks(standings []model.Standing, firstRank int) {
	for i := range standings {
		if i > 0 && standings[i].Score == standings[i-1].Score {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = firstRank + i
	}
}

// sortStandings orders by score desc, player id asc.
func sortStandings(s []model.Standing) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].PlayerID < s[j].PlayerID
	})
}
