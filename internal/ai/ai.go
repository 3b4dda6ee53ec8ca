// Package ai implements the heuristic computer opponent. The controller
// consumes engine snapshots like any other input source and emits paddle
// intents for its side.
package ai

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/arenalab/pong-arena/internal/engine"
)

// Level tunes how strong the opponent plays.
type Level struct {
	Name          string
	ReactionTicks int     // ticks between re-reads of the game state
	AimError      float64 // fraction of paddle height added as aim noise
}

var levels = map[int]Level{
	1: {Name: "rookie", ReactionTicks: 24, AimError: 0.8},
	2: {Name: "casual", ReactionTicks: 16, AimError: 0.5},
	3: {Name: "club", ReactionTicks: 10, AimError: 0.3},
	4: {Name: "expert", ReactionTicks: 6, AimError: 0.15},
	5: {Name: "machine", ReactionTicks: 3, AimError: 0.05},
}

// Levels returns the number of difficulty levels.
func Levels() int { return len(levels) }

// LevelName returns the display name for a difficulty level.
func LevelName(n int) string {
	if l, ok := levels[n]; ok {
		return l.Name
	}
	return "unknown"
}

// Controller decides paddle movement for one side. Not safe for concurrent
// use; the match loop is the only caller.
type Controller struct {
	side engine.Side
	lvl  Level
	tun  engine.Tuning
	rng  *rand.Rand

	level       int
	targetY     float64
	cooldown    int
	approaching bool
	errOffset   float64
}

// New returns a controller for the given side and difficulty level (1..5).
func New(side engine.Side, level int, tun engine.Tuning, rng *rand.Rand) (*Controller, error) {
	if !side.Valid() {
		return nil, engine.ErrInvalidSide
	}
	lvl, ok := levels[level]
	if !ok {
		return nil, fmt.Errorf("unknown ai level: %d", level)
	}
	return &Controller{
		side:    side,
		lvl:     lvl,
		tun:     tun,
		rng:     rng,
		level:   level,
		targetY: tun.CourtHeight / 2,
	}, nil
}

// Level returns the configured difficulty level.
func (c *Controller) Level() int { return c.level }

// Intent returns the movement intent for the current tick. The controller
// only re-reads the state every ReactionTicks, which is what makes lower
// levels beatable.
func (c *Controller) Intent(s engine.Snapshot) engine.Direction {
	if s.Status != engine.StatusPlaying {
		return engine.DirNone
	}

	if c.cooldown > 0 {
		c.cooldown--
	} else {
		c.retarget(s)
		c.cooldown = c.lvl.ReactionTicks
	}

	paddleY := s.LeftY
	if c.side == engine.SideRight {
		paddleY = s.RightY
	}
	center := paddleY + c.tun.PaddleHeight/2
	deadband := c.tun.PaddleHeight * 0.15

	switch {
	case center-c.targetY > deadband:
		return engine.DirUp
	case c.targetY-center > deadband:
		return engine.DirDown
	default:
		return engine.DirNone
	}
}

func (c *Controller) retarget(s engine.Snapshot) {
	incoming := (c.side == engine.SideRight && s.Ball.DX > 0) ||
		(c.side == engine.SideLeft && s.Ball.DX < 0)
	if !incoming || s.Serving {
		c.approaching = false
		c.targetY = c.tun.CourtHeight / 2
		return
	}

	faceX := c.tun.PaddleWidth
	if c.side == engine.SideRight {
		faceX = c.tun.CourtWidth - c.tun.PaddleWidth
	}
	predicted := InterceptY(s.Ball, faceX, c.tun.CourtHeight)

	// draw the aim error once per approach so the paddle does not jitter
	if !c.approaching {
		c.approaching = true
		c.errOffset = (c.rng.Float64() - 0.5) * 2 * c.lvl.AimError * c.tun.PaddleHeight
	}
	c.targetY = predicted + c.errOffset
}

// InterceptY projects the ball to the vertical line faceX, folding the
// trajectory at the top and bottom walls, and returns the Y it will cross at.
func InterceptY(b engine.Ball, faceX, courtH float64) float64 {
	if b.DX == 0 {
		return b.Y
	}
	ticks := (faceX - b.X) / b.DX
	if ticks < 0 {
		return b.Y
	}
	raw := b.Y + b.DY*ticks

	// reflect into the band the ball center can occupy
	lo, hi := b.Radius, courtH-b.Radius
	span := hi - lo
	if span <= 0 {
		return courtH / 2
	}
	folded := math.Mod(raw-lo, 2*span)
	if folded < 0 {
		folded += 2 * span
	}
	if folded > span {
		folded = 2*span - folded
	}
	return folded + lo
}
