package model

import "time"

// Outcome is a battle result seen from the player's side.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLose, OutcomeDraw:
		return true
	default:
		return false
	}
}

// Invert returns the outcome from the opponent's side.
func (o Outcome) Invert() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLose
	case OutcomeLose:
		return OutcomeWin
	default:
		return o
	}
}

// Points returns the leaderboard points for an outcome: 3 for a win, 1 for a
// draw, 0 otherwise.
func (o Outcome) Points() int {
	switch o {
	case OutcomeWin:
		return 3
	case OutcomeDraw:
		return 1
	default:
		return 0
	}
}

// Battle modes.
const (
	ModePvP      = "pvp"
	ModeComputer = "computer"
)

// GuestPlayerID is used when a result carries no player.
const GuestPlayerID = "guest"

// BattleResult is produced fresh for every battle and never reused.
type BattleResult struct {
	BattleID      string    `json:"battle_id"`
	Mode          string    `json:"mode"`
	Player        Character `json:"player"`
	Opponent      Character `json:"opponent"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	Outcome       Outcome   `json:"outcome"`
	WinnerID      string    `json:"winner_id,omitempty"`
	PlayedAt      time.Time `json:"played_at"`
}

// GameResult is the tuple written to the result log.
type GameResult struct {
	BattleID            string    `json:"battle_id"`
	PlayerID            string    `json:"player_id"`
	PlayerCharacterID   string    `json:"player_character_id"`
	OpponentCharacterID string    `json:"opponent_character_id"`
	Outcome             Outcome   `json:"outcome"`
	PlayerScore         int       `json:"player_score,omitempty"`
	OpponentScore       int       `json:"opponent_score,omitempty"`
	Mode                string    `json:"mode,omitempty"`
	PlayedAt            time.Time `json:"played_at"`
}

// ToGameResult converts a battle into the result-log tuple for playerID.
func (b BattleResult) ToGameResult(playerID string) GameResult {
	if playerID == "" {
		playerID = GuestPlayerID
	}
	return GameResult{
		BattleID:            b.BattleID,
		PlayerID:            playerID,
		PlayerCharacterID:   b.Player.ID,
		OpponentCharacterID: b.Opponent.ID,
		Outcome:             b.Outcome,
		PlayerScore:         b.PlayerScore,
		OpponentScore:       b.OpponentScore,
		Mode:                b.Mode,
		PlayedAt:            b.PlayedAt,
	}
}

// Standing is a player's aggregate leaderboard entry.
type Standing struct {
	Rank              int       `json:"rank"`
	PlayerID          string    `json:"player_id"`
	Wins              int       `json:"wins"`
	Losses            int       `json:"losses"`
	Draws             int       `json:"draws"`
	Score             int       `json:"score"`
	FavoriteCharacter string    `json:"favorite_character,omitempty"`
	LastPlayed        time.Time `json:"last_played"`
}

// Played returns the total number of games behind the standing.
func (s Standing) Played() int {
	return s.Wins + s.Losses + s.Draws
}

// BattleRequest asks for a battle between two characters. An empty
// OpponentCharacterID selects a computer opponent.
type BattleRequest struct {
	BattleID            string `json:"battle_id,omitempty" validate:"omitempty,max=128"`
	PlayerID            string `json:"player_id,omitempty" validate:"omitempty,max=64"`
	PlayerCharacterID   string `json:"player_character_id" validate:"required,max=128"`
	OpponentCharacterID string `json:"opponent_character_id,omitempty" validate:"omitempty,max=128"`
}
