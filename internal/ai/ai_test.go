package ai

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arenalab/pong-arena/internal/engine"
)

func classicTuning(t *testing.T) engine.Tuning {
	t.Helper()
	p, err := engine.LoadPresets("")
	require.NoError(t, err)
	tun, err := p.Get("classic")
	require.NoError(t, err)
	return tun
}

func TestInterceptYStraight(t *testing.T) {
	b := engine.Ball{X: 100, Y: 300, DX: 5, DY: 0, Radius: 8}
	got := InterceptY(b, 790, 600)
	require.InDelta(t, 300, got, 0.001)
}

func TestInterceptYSingleBounce(t *testing.T) {
	// heading up; reflects once off the top wall before reaching the face
	b := engine.Ball{X: 700, Y: 20, DX: 5, DY: -5, Radius: 8}
	got := InterceptY(b, 790, 600)
	// 18 ticks to the face: raw Y = 20 - 90 = -70, reflected at the
	// y=radius boundary back to 86
	require.InDelta(t, 86, got, 0.001)
	require.GreaterOrEqual(t, got, 8.0)
	require.LessOrEqual(t, got, 592.0)
}

func TestInterceptYBallMovingAway(t *testing.T) {
	b := engine.Ball{X: 400, Y: 250, DX: -5, DY: 3, Radius: 8}
	require.Equal(t, 250.0, InterceptY(b, 790, 600))
}

func TestUnknownLevelRejected(t *testing.T) {
	tun := classicTuning(t)
	_, err := New(engine.SideRight, 9, tun, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	_, err = New(engine.Side("middle"), 3, tun, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, engine.ErrInvalidSide)
}

func TestControllerTracksIncomingBall(t *testing.T) {
	tun := classicTuning(t)
	c, err := New(engine.SideRight, 5, tun, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	snap := engine.Snapshot{
		Status: engine.StatusPlaying,
		RightY: (tun.CourtHeight - tun.PaddleHeight) / 2,
		Ball:   engine.Ball{X: 400, Y: 100, DX: 6, DY: 0, Radius: tun.BallRadius},
	}
	// ball will cross the right face at y=100, far above the paddle center
	require.Equal(t, engine.DirUp, c.Intent(snap))
}

func TestControllerRecentersWhenBallMovesAway(t *testing.T) {
	tun := classicTuning(t)
	c, err := New(engine.SideRight, 5, tun, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	snap := engine.Snapshot{
		Status: engine.StatusPlaying,
		RightY: 0, // paddle parked at the top
		Ball:   engine.Ball{X: 400, Y: 300, DX: -6, DY: 0, Radius: tun.BallRadius},
	}
	require.Equal(t, engine.DirDown, c.Intent(snap))
}

func TestControllerIdleWhenNotPlaying(t *testing.T) {
	tun := classicTuning(t)
	c, err := New(engine.SideLeft, 3, tun, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, engine.DirNone, c.Intent(engine.Snapshot{Status: engine.StatusPaused}))
}

// Full-loop check: a top-level controller should reach the first serve.
func TestMachineLevelReachesFirstServe(t *testing.T) {
	p, err := engine.LoadPresets("")
	require.NoError(t, err)
	tun, err := p.Get("classic")
	require.NoError(t, err)

	e := engine.New(tun, rand.New(rand.NewSource(7)))
	c, err := New(engine.SideRight, 5, tun, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.NoError(t, e.Start())

	for i := 0; i < 2000; i++ {
		s := e.Snapshot()
		require.NoError(t, e.SetIntent(engine.SideRight, c.Intent(s)))
		e.Step()

		s = e.Snapshot()
		if s.Ball.DX < 0 && s.Ball.X < tun.CourtWidth/2 {
			// ball is coming back: the AI returned the serve
			return
		}
		if s.RightScore > 0 || s.LeftScore > 0 {
			break
		}
	}
	s := e.Snapshot()
	require.Zero(t, s.LeftScore, "machine-level AI should not concede the first serve (ball at %.0f,%.0f)", s.Ball.X, math.Round(s.Ball.Y))
}
