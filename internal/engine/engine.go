package engine

import (
	"errors"
	"math"
	"math/rand"
	"sync"
)

var (
	ErrNotReady    = errors.New("game is not ready to start")
	ErrNotPlaying  = errors.New("game is not in progress")
	ErrNotPaused   = errors.New("game is not paused")
	ErrFinished    = errors.New("game already finished")
	ErrInvalidSide = errors.New("invalid side")
)

// Engine is the authoritative fixed-timestep simulation for one match.
// All methods are safe for concurrent use; the match loop calls Step on a
// ticker while input handlers call SetIntent from transport goroutines.
type Engine struct {
	mu  sync.Mutex
	tun Tuning
	rng *rand.Rand

	status Status
	winner Side
	tick   uint64

	leftY, rightY     float64 // paddle top edge
	leftVel, rightVel float64
	leftIn, rightIn   Direction

	ball       Ball
	leftScore  int
	rightScore int

	serveHold int     // ticks until the held ball is launched
	serveDir  float64 // +1 toward right, -1 toward left
}

// New returns an Engine in the ready state with paddles and ball centered.
// rng drives serve variation; pass a seeded source for deterministic tests.
func New(tun Tuning, rng *rand.Rand) *Engine {
	e := &Engine{tun: tun, rng: rng, status: StatusReady}
	centerY := (tun.CourtHeight - tun.PaddleHeight) / 2
	e.leftY, e.rightY = centerY, centerY
	e.ball = Ball{X: tun.CourtWidth / 2, Y: tun.CourtHeight / 2, Radius: tun.BallRadius}
	e.serveDir = 1
	if rng.Intn(2) == 0 {
		e.serveDir = -1
	}
	return e
}

// Tuning returns the variant parameters the engine was built with.
func (e *Engine) Tuning() Tuning { return e.tun }

// Start moves the game from ready to playing and schedules the first serve.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusReady {
		return ErrNotReady
	}
	e.status = StatusPlaying
	e.serveHold = e.tun.ServeDelayTicks
	return nil
}

// SetIntent records the current movement intent for a side. The intent
// persists until replaced, matching held-key semantics.
func (e *Engine) SetIntent(side Side, d Direction) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if side == SideLeft {
		e.leftIn = d
	} else {
		e.rightIn = d
	}
	return nil
}

// Pause freezes the simulation. Step becomes a no-op until Resume.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.status {
	case StatusPlaying:
		e.status = StatusPaused
		return nil
	case StatusFinished:
		return ErrFinished
	default:
		return ErrNotPlaying
	}
}

// Resume continues a paused game.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPaused {
		return ErrNotPaused
	}
	e.status = StatusPlaying
	return nil
}

// Forfeit ends the game immediately with the given side as the loser.
func (e *Engine) Forfeit(loser Side) error {
	if !loser.Valid() {
		return ErrInvalidSide
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusFinished {
		return ErrFinished
	}
	e.finish(loser.Opponent())
	return nil
}

// Step advances the simulation by one fixed tick: paddle integration, ball
// movement, wall and paddle collision, scoring and win detection. It is a
// no-op unless the game is playing.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPlaying {
		return
	}
	e.tick++

	e.stepPaddle(&e.leftVel, &e.leftY, e.leftIn)
	e.stepPaddle(&e.rightVel, &e.rightY, e.rightIn)

	if e.serveHold > 0 {
		e.serveHold--
		if e.serveHold == 0 {
			e.launchBall()
		}
		return
	}

	e.ball.X += e.ball.DX
	e.ball.Y += e.ball.DY

	// top/bottom wall reflection
	if e.ball.Y-e.ball.Radius <= 0 {
		e.ball.Y = e.ball.Radius
		e.ball.DY = math.Abs(e.ball.DY)
	} else if e.ball.Y+e.ball.Radius >= e.tun.CourtHeight {
		e.ball.Y = e.tun.CourtHeight - e.ball.Radius
		e.ball.DY = -math.Abs(e.ball.DY)
	}

	e.collidePaddles()
	e.checkOutOfBounds()
}

func (e *Engine) stepPaddle(vel, pos *float64, in Direction) {
	switch in {
	case DirUp:
		*vel -= e.tun.PaddleAccel
	case DirDown:
		*vel += e.tun.PaddleAccel
	default:
		*vel *= e.tun.PaddleFriction
	}
	if *vel > e.tun.PaddleMaxSpeed {
		*vel = e.tun.PaddleMaxSpeed
	} else if *vel < -e.tun.PaddleMaxSpeed {
		*vel = -e.tun.PaddleMaxSpeed
	}

	next := *pos + *vel
	if next < 0 {
		next = 0
		*vel = 0
	} else if next+e.tun.PaddleHeight > e.tun.CourtHeight {
		next = e.tun.CourtHeight - e.tun.PaddleHeight
		*vel = 0
	}
	*pos = next
}

func (e *Engine) launchBall() {
	e.ball.DX = e.serveDir * e.tun.ServeSpeed
	e.ball.DY = (e.rng.Float64() - 0.5) * e.tun.ServeSpeed * 0.5
}

// collidePaddles reflects the ball off either paddle with a bounce angle
// proportional to where the ball struck relative to the paddle center. The
// DX sign guard prevents re-collision while the ball escapes the paddle.
func (e *Engine) collidePaddles() {
	r := e.ball.Radius
	speed := math.Hypot(e.ball.DX, e.ball.DY) * e.tun.SpeedUpFactor
	if speed > e.tun.MaxBallSpeed {
		speed = e.tun.MaxBallSpeed
	}
	maxAngle := e.tun.MaxBounceAngle()

	leftFace := e.tun.PaddleWidth
	if e.ball.X-r <= leftFace &&
		e.ball.Y >= e.leftY && e.ball.Y <= e.leftY+e.tun.PaddleHeight &&
		e.ball.DX < 0 {
		rel := (e.ball.Y - (e.leftY + e.tun.PaddleHeight/2)) / (e.tun.PaddleHeight / 2)
		angle := rel * maxAngle
		e.ball.DX = math.Abs(speed * math.Cos(angle))
		e.ball.DY = speed*math.Sin(angle) + e.variation()
		e.ball.X = leftFace + r
	}

	rightFace := e.tun.CourtWidth - e.tun.PaddleWidth
	if e.ball.X+r >= rightFace &&
		e.ball.Y >= e.rightY && e.ball.Y <= e.rightY+e.tun.PaddleHeight &&
		e.ball.DX > 0 {
		rel := (e.ball.Y - (e.rightY + e.tun.PaddleHeight/2)) / (e.tun.PaddleHeight / 2)
		angle := rel * maxAngle
		e.ball.DX = -math.Abs(speed * math.Cos(angle))
		e.ball.DY = speed*math.Sin(angle) + e.variation()
		e.ball.X = rightFace - r
	}
}

func (e *Engine) variation() float64 {
	return (e.rng.Float64() - 0.5) * 2
}

func (e *Engine) checkOutOfBounds() {
	if e.ball.X-e.ball.Radius <= 0 {
		e.rightScore++
		if e.rightScore >= e.tun.WinScore {
			e.finish(SideRight)
			return
		}
		e.resetBall(SideRight)
	} else if e.ball.X+e.ball.Radius >= e.tun.CourtWidth {
		e.leftScore++
		if e.leftScore >= e.tun.WinScore {
			e.finish(SideLeft)
			return
		}
		e.resetBall(SideLeft)
	}
}

// resetBall recenters the ball and holds it for the serve delay. The next
// serve travels toward the side that just scored.
func (e *Engine) resetBall(scorer Side) {
	e.ball.X = e.tun.CourtWidth / 2
	e.ball.Y = e.tun.CourtHeight / 2
	e.ball.DX, e.ball.DY = 0, 0
	e.serveHold = e.tun.ServeDelayTicks
	if scorer == SideRight {
		e.serveDir = 1
	} else {
		e.serveDir = -1
	}
}

func (e *Engine) finish(winner Side) {
	e.status = StatusFinished
	e.winner = winner
	e.ball.DX, e.ball.DY = 0, 0
	e.leftIn, e.rightIn = DirNone, DirNone
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Tick:       e.tick,
		Status:     e.status,
		LeftY:      e.leftY,
		RightY:     e.rightY,
		Ball:       e.ball,
		LeftScore:  e.leftScore,
		RightScore: e.rightScore,
		Winner:     e.winner,
		Serving:    e.serveHold > 0,
	}
}

// ApplySnapshot overwrites local state with an authoritative snapshot
// received over the network. Used by the network-fed client variant; local
// intents are preserved.
func (e *Engine) ApplySnapshot(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = s.Tick
	e.status = s.Status
	e.leftY = s.LeftY
	e.rightY = s.RightY
	e.ball = s.Ball
	e.leftScore = s.LeftScore
	e.rightScore = s.RightScore
	e.winner = s.Winner
	if s.Serving {
		// hold until the next authoritative update moves the ball
		e.serveHold = 1
	} else {
		e.serveHold = 0
	}
}

// Scores returns the current score pair.
func (e *Engine) Scores() (left, right int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leftScore, e.rightScore
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Winner returns the winning side, empty until finished.
func (e *Engine) Winner() Side {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.winner
}
