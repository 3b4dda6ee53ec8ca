package pongdto

import "time"

// REST request/response shapes.

type CreateLobbyRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name"`
	Preset   string `json:"preset"`
}

type LobbyResponse struct {
	Code      string    `json:"code"`
	State     string    `json:"state"`
	Preset    string    `json:"preset"`
	HostID    string    `json:"host_id"`
	HostName  string    `json:"host_name"`
	MatchID   string    `json:"match_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinLobbyRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name"`
}

type JoinLobbyResponse struct {
	Started bool   `json:"started"`
	MatchID string `json:"match_id,omitempty"`
	Code    string `json:"code"`
}

type CreateAIMatchRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name"`
	Preset   string `json:"preset"`
	Level    int    `json:"level"`
}

type CreateAIMatchResponse struct {
	MatchID string `json:"match_id"`
	Side    string `json:"side"`
	Preset  string `json:"preset"`
	Level   int    `json:"level"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Streak      int    `json:"streak"`
	StreakType  string `json:"streak_type"`
}

type MatchSummary struct {
	MatchID    string    `json:"match_id"`
	Preset     string    `json:"preset"`
	LeftName   string    `json:"left_name"`
	RightName  string    `json:"right_name"`
	LeftScore  int       `json:"left_score"`
	RightScore int       `json:"right_score"`
	Winner     string    `json:"winner"`
	Method     string    `json:"method"`
	VsAI       bool      `json:"vs_ai"`
	EndedAt    time.Time `json:"ended_at"`
}
