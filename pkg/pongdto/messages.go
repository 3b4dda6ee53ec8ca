package pongdto

import "github.com/arenalab/pong-arena/internal/engine"

// Client → server message types.
const (
	TypeJoin    = "join"
	TypeInput   = "input"
	TypePause   = "pause"
	TypeResume  = "resume"
	TypeForfeit = "forfeit"
)

// Server → client message types.
const (
	TypeJoined   = "joined"
	TypeState    = "state"
	TypePaused   = "paused"
	TypeResumed  = "resumed"
	TypeFinished = "finished"
	TypeError    = "error"
)

// ClientMessage is the single envelope for everything a player sends over
// the socket after connecting.
type ClientMessage struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"` // up, down, none
}

// ServerMessage is the envelope for everything pushed to a socket.
type ServerMessage struct {
	Type     string           `json:"type"`
	MatchID  string           `json:"match_id,omitempty"`
	Side     string           `json:"side,omitempty"`
	State    *engine.Snapshot `json:"state,omitempty"`
	Result   *MatchResult     `json:"result,omitempty"`
	ErrorMsg string           `json:"error,omitempty"`
}

// MatchResult is the final-score payload of a finished message.
type MatchResult struct {
	MatchID    string `json:"match_id"`
	WinnerID   string `json:"winner_id"`
	WinnerSide string `json:"winner_side"`
	LeftScore  int    `json:"left_score"`
	RightScore int    `json:"right_score"`
	Method     string `json:"method"`
}
