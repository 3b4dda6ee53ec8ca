package engine

// Side identifies a court side.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideLeft || s == SideRight }

// Status represents the lifecycle of a game session.
type Status string

const (
	StatusReady    Status = "ready"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Direction is a vertical movement intent. The Y axis grows downward.
type Direction int

const (
	DirNone Direction = 0
	DirUp   Direction = -1
	DirDown Direction = 1
)

// ParseDirection maps a wire token to a Direction.
func ParseDirection(s string) Direction {
	switch s {
	case "up":
		return DirUp
	case "down":
		return DirDown
	default:
		return DirNone
	}
}

// Ball is the ball's kinematic state.
type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Radius float64 `json:"radius"`
}

// Snapshot is a point-in-time copy of the game state, safe to marshal and
// broadcast. Network-fed local engines overwrite their state with received
// snapshots.
type Snapshot struct {
	Tick       uint64  `json:"tick"`
	Status     Status  `json:"status"`
	LeftY      float64 `json:"left_y"`
	RightY     float64 `json:"right_y"`
	Ball       Ball    `json:"ball"`
	LeftScore  int     `json:"left_score"`
	RightScore int     `json:"right_score"`
	Winner     Side    `json:"winner,omitempty"`
	Serving    bool    `json:"serving"`
}

// Interpolate linearly blends two snapshots by t in [0,1] for render
// smoothing between authoritative updates. Scores, status and winner are
// taken from the newer snapshot.
func Interpolate(a, b Snapshot, t float64) Snapshot {
	lerp := func(x, y float64) float64 { return x + (y-x)*t }
	out := b
	out.LeftY = lerp(a.LeftY, b.LeftY)
	out.RightY = lerp(a.RightY, b.RightY)
	out.Ball.X = lerp(a.Ball.X, b.Ball.X)
	out.Ball.Y = lerp(a.Ball.Y, b.Ball.Y)
	out.Ball.DX = lerp(a.Ball.DX, b.Ball.DX)
	out.Ball.DY = lerp(a.Ball.DY, b.Ball.DY)
	return out
}
