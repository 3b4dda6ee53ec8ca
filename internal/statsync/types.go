package statsync

import "context"

// State tracks the websocket control feed lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Event is a control message pushed by the arena platform.
type Event struct {
	Type    string `json:"type"` // announce, abort_match
	MatchID string `json:"match_id,omitempty"`
	Text    string `json:"text,omitempty"`
}

type EventCallback func(event *Event)

type StateCallback func(state State)

// Feed is the platform control channel.
type Feed interface {
	Connect(ctx context.Context) error
	OnEvent(cb EventCallback) int
	RemoveEventCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// ResultReport is the payload posted to the platform when a match ends.
type ResultReport struct {
	MatchID    string `json:"match_id"`
	Preset     string `json:"preset"`
	LeftID     string `json:"left_id"`
	LeftName   string `json:"left_name"`
	RightID    string `json:"right_id"`
	RightName  string `json:"right_name"`
	LeftScore  int    `json:"left_score"`
	RightScore int    `json:"right_score"`
	WinnerID   string `json:"winner_id"`
	Method     string `json:"method"`
	VsAI       bool   `json:"vs_ai"`
	DurationMS int64  `json:"duration_ms"`
}
