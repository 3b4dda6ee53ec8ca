package lobby

import "time"

// State represents the lifecycle of a matchmaking lobby.
type State string

const (
	StateOpen     State = "OPEN"
	StateActive   State = "ACTIVE"
	StateFinished State = "FINISHED"
	StateAborted  State = "ABORTED"
)

// Meta is stored as JSON in Redis under lobby:<code>.
type Meta struct {
	Code      string    `json:"code"`
	State     State     `json:"state"`
	Preset    string    `json:"preset"`
	CreatedAt time.Time `json:"created_at"`

	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`

	GuestID   string `json:"guest_id,omitempty"`
	GuestName string `json:"guest_name,omitempty"`

	MatchID string `json:"match_id,omitempty"`
}

// Results
type MakeResult struct {
	Code string
	Meta *Meta
}

type JoinResult struct {
	Started bool
	MatchID string
	Meta    *Meta
}

// Errors
var (
	ErrInvalidArgs  = errf("invalid arguments")
	ErrLobbyGone    = errf("lobby not found or expired")
	ErrLobbyClosed  = errf("lobby no longer accepting players")
	ErrFull         = errf("lobby already has two participants")
	ErrPlayerBusy   = errf("player already has a running match")
	ErrHostHasLobby = errf("user already has an open lobby")
	ErrNotHost      = errf("only the host can cancel a lobby")
	ErrSelfJoin     = errf("cannot join your own lobby")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
