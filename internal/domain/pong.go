package domain

import "time"

// MatchRecord is the persisted summary of a finished match.
type MatchRecord struct {
	ID           string
	Preset       string
	LeftID       string
	LeftName     string
	RightID      string
	RightName    string
	LeftScore    int
	RightScore   int
	Winner       string // player ID, empty when aborted
	WinnerSide   string // "left" | "right"
	ResultMethod string // "score" | "forfeit" | "abort"
	VsAI         bool
	AILevel      int
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// PlayerProfile aggregates a player's results for the leaderboard.
type PlayerProfile struct {
	PlayerID     string
	DisplayName  string
	Rating       int
	GamesPlayed  int
	Wins         int
	Losses       int
	Streak       int
	StreakType   string // "win" | "loss"
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}
