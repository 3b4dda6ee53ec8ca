package match

import (
	"errors"
	"time"

	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/engine"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrTooManyActive = errors.New("too many active matches")
	ErrNotInMatch    = errors.New("player not in match")
)

// Player identifies one seat in a match. AI seats carry an "ai:" prefixed ID
// so the stats layer can tell them apart from humans.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AI      bool   `json:"ai"`
	AILevel int    `json:"ai_level,omitempty"`
}

// Broadcaster receives per-tick state and the final result. The websocket hub
// implements it; the TUI and tests use lighter stand-ins.
type Broadcaster interface {
	State(matchID string, s engine.Snapshot)
	Finished(matchID string, s engine.Snapshot, rec *domain.MatchRecord)
}

// Fanout delivers to several broadcasters in order.
type Fanout []Broadcaster

func (f Fanout) State(matchID string, s engine.Snapshot) {
	for _, b := range f {
		b.State(matchID, s)
	}
}

func (f Fanout) Finished(matchID string, s engine.Snapshot, rec *domain.MatchRecord) {
	for _, b := range f {
		b.Finished(matchID, s, rec)
	}
}

// NopBroadcaster drops everything. Used when no transport is attached.
type NopBroadcaster struct{}

func (NopBroadcaster) State(string, engine.Snapshot)                         {}
func (NopBroadcaster) Finished(string, engine.Snapshot, *domain.MatchRecord) {}

// LiveRecord is the Redis mirror of a running match, kept so a restarted
// process (or another peeking consumer) can see who is playing where.
type LiveRecord struct {
	ID         string    `json:"id"`
	Preset     string    `json:"preset"`
	Left       Player    `json:"left"`
	Right      Player    `json:"right"`
	Status     string    `json:"status"`
	LeftScore  int       `json:"left_score"`
	RightScore int       `json:"right_score"`
	Winner     string    `json:"winner,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (lr *LiveRecord) participantIDs() []string {
	var out []string
	for _, p := range []Player{lr.Left, lr.Right} {
		if !p.AI && p.ID != "" {
			out = append(out, p.ID)
		}
	}
	return out
}
