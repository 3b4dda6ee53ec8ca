package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTuning(t *testing.T) Tuning {
	t.Helper()
	p, err := LoadPresets("")
	require.NoError(t, err)
	tun, err := p.Get("classic")
	require.NoError(t, err)
	return tun
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(testTuning(t), rand.New(rand.NewSource(1)))
}

func TestStartServesAfterDelay(t *testing.T) {
	e := newTestEngine(t)
	require.Equal(t, StatusReady, e.Status())
	require.NoError(t, e.Start())
	require.Equal(t, StatusPlaying, e.Status())

	delay := e.Tuning().ServeDelayTicks
	for i := 0; i < delay-1; i++ {
		e.Step()
		s := e.Snapshot()
		require.True(t, s.Serving, "ball should be held during serve delay (tick %d)", i)
		require.Zero(t, s.Ball.DX)
	}
	e.Step()
	s := e.Snapshot()
	require.False(t, s.Serving)
	require.Equal(t, e.Tuning().ServeSpeed, math.Abs(s.Ball.DX))
}

func TestStartTwiceFails(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	require.ErrorIs(t, e.Start(), ErrNotReady)
}

func TestPaddleClampedToCourt(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	require.NoError(t, e.SetIntent(SideLeft, DirUp))
	require.NoError(t, e.SetIntent(SideRight, DirDown))

	for i := 0; i < 500; i++ {
		e.Step()
	}
	s := e.Snapshot()
	require.Equal(t, 0.0, s.LeftY)
	require.Equal(t, e.Tuning().CourtHeight-e.Tuning().PaddleHeight, s.RightY)
}

func TestIntentPersistsUntilReplaced(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	require.NoError(t, e.SetIntent(SideLeft, DirUp))
	e.Step()
	e.Step()
	moved := e.Snapshot().LeftY
	require.Less(t, moved, (e.Tuning().CourtHeight-e.Tuning().PaddleHeight)/2)

	require.NoError(t, e.SetIntent(SideLeft, DirNone))
	for i := 0; i < 100; i++ {
		e.Step()
	}
	// friction decays velocity; paddle settles instead of drifting to the wall
	require.Greater(t, e.Snapshot().LeftY, 0.0)
}

func TestInvalidSideRejected(t *testing.T) {
	e := newTestEngine(t)
	require.ErrorIs(t, e.SetIntent(Side("middle"), DirUp), ErrInvalidSide)
	require.ErrorIs(t, e.Forfeit(Side("")), ErrInvalidSide)
}

func TestWallReflection(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	e.mu.Lock()
	e.serveHold = 0
	e.ball = Ball{X: 400, Y: e.tun.BallRadius + 1, DX: 4, DY: -4, Radius: e.tun.BallRadius}
	e.mu.Unlock()

	e.Step()
	s := e.Snapshot()
	require.Greater(t, s.Ball.DY, 0.0, "ball should reflect off the top wall")
	require.GreaterOrEqual(t, s.Ball.Y-s.Ball.Radius, 0.0)
}

func TestPaddleBounceAngle(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())

	// aim at the upper quarter of the left paddle, moving left
	e.mu.Lock()
	hitY := e.leftY + e.tun.PaddleHeight*0.1
	e.serveHold = 0
	e.ball = Ball{X: e.tun.PaddleWidth + e.tun.BallRadius + 2, Y: hitY, DX: -6, DY: 0, Radius: e.tun.BallRadius}
	e.mu.Unlock()

	e.Step()
	s := e.Snapshot()
	require.Greater(t, s.Ball.DX, 0.0, "ball should bounce back toward the right")
	require.Less(t, s.Ball.DY, 0.0, "upper-paddle hit should angle the ball upward")
}

func TestBallSpeedCapped(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	tun := e.Tuning()

	for i := 0; i < 50; i++ {
		e.mu.Lock()
		e.serveHold = 0
		e.ball = Ball{X: tun.PaddleWidth + tun.BallRadius + 2, Y: e.leftY + tun.PaddleHeight/2, DX: -tun.MaxBallSpeed, DY: 0, Radius: tun.BallRadius}
		e.mu.Unlock()
		e.Step()
		s := e.Snapshot()
		speed := math.Hypot(s.Ball.DX, s.Ball.DY)
		// variation adds at most 1 on top of the capped speed
		require.LessOrEqual(t, speed, tun.MaxBallSpeed+1.5)
	}
}

func TestScoringResetsBallTowardScorer(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	e.mu.Lock()
	// aim well above the centered left paddle so nothing saves the ball
	e.serveHold = 0
	e.ball = Ball{X: 2, Y: 50, DX: -6, DY: 0, Radius: e.tun.BallRadius}
	e.mu.Unlock()

	e.Step()
	s := e.Snapshot()
	require.Equal(t, 1, s.RightScore)
	require.Equal(t, 0, s.LeftScore)
	require.True(t, s.Serving)
	require.Equal(t, e.Tuning().CourtWidth/2, s.Ball.X)

	// next serve goes toward the scorer (right)
	for i := 0; i < e.Tuning().ServeDelayTicks; i++ {
		e.Step()
	}
	require.Greater(t, e.Snapshot().Ball.DX, 0.0)
}

func TestWinDetection(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	e.mu.Lock()
	e.leftScore = e.tun.WinScore - 1
	e.serveHold = 0
	// past the centered right paddle's reach
	e.ball = Ball{X: e.tun.CourtWidth - 2, Y: 50, DX: 6, DY: 0, Radius: e.tun.BallRadius}
	e.mu.Unlock()

	e.Step()
	s := e.Snapshot()
	require.Equal(t, StatusFinished, s.Status)
	require.Equal(t, SideLeft, s.Winner)
	require.Equal(t, e.Tuning().WinScore, s.LeftScore)

	// finished is terminal
	tick := s.Tick
	e.Step()
	require.Equal(t, tick, e.Snapshot().Tick)
	require.ErrorIs(t, e.Forfeit(SideLeft), ErrFinished)
	require.ErrorIs(t, e.Pause(), ErrFinished)
}

func TestPauseResume(t *testing.T) {
	e := newTestEngine(t)
	require.ErrorIs(t, e.Pause(), ErrNotPlaying)
	require.NoError(t, e.Start())
	require.NoError(t, e.Pause())

	tick := e.Snapshot().Tick
	e.Step()
	require.Equal(t, tick, e.Snapshot().Tick, "paused game should not advance")

	require.ErrorIs(t, e.Resume(), nil)
	e.Step()
	require.Equal(t, tick+1, e.Snapshot().Tick)
	require.ErrorIs(t, e.Resume(), ErrNotPaused)
}

func TestForfeit(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	require.NoError(t, e.Forfeit(SideLeft))
	s := e.Snapshot()
	require.Equal(t, StatusFinished, s.Status)
	require.Equal(t, SideRight, s.Winner)
}

func TestApplySnapshotOverwrites(t *testing.T) {
	e := newTestEngine(t)
	remote := Snapshot{
		Tick:       42,
		Status:     StatusPlaying,
		LeftY:      17,
		RightY:     380,
		Ball:       Ball{X: 100, Y: 200, DX: 5, DY: -3, Radius: 8},
		LeftScore:  2,
		RightScore: 1,
	}
	e.ApplySnapshot(remote)
	require.Equal(t, remote, e.Snapshot())
}

func TestInterpolateMidpoint(t *testing.T) {
	a := Snapshot{LeftY: 0, RightY: 100, Ball: Ball{X: 0, Y: 50}}
	b := Snapshot{LeftY: 10, RightY: 200, Ball: Ball{X: 20, Y: 70}, LeftScore: 1}
	mid := Interpolate(a, b, 0.5)
	require.Equal(t, 5.0, mid.LeftY)
	require.Equal(t, 150.0, mid.RightY)
	require.Equal(t, 10.0, mid.Ball.X)
	require.Equal(t, 60.0, mid.Ball.Y)
	require.Equal(t, 1, mid.LeftScore, "scores come from the newer snapshot")
}
