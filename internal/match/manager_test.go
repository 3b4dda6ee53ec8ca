package match

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/stats"
)

type captureBroadcaster struct {
	mu       sync.Mutex
	states   int
	finished []*domain.MatchRecord
}

func (c *captureBroadcaster) State(string, engine.Snapshot) {
	c.mu.Lock()
	c.states++
	c.mu.Unlock()
}

func (c *captureBroadcaster) Finished(_ string, _ engine.Snapshot, rec *domain.MatchRecord) {
	c.mu.Lock()
	c.finished = append(c.finished, rec)
	c.mu.Unlock()
}

func (c *captureBroadcaster) stateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states
}

func (c *captureBroadcaster) finishedRecords() []*domain.MatchRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.MatchRecord(nil), c.finished...)
}

func testPresets(t *testing.T) *engine.Presets {
	t.Helper()
	p, err := engine.LoadPresets("")
	require.NoError(t, err)
	return p
}

func testStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })
	s, err := NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func human(id string) Player { return Player{ID: id, Name: id} }

func aiSeat(level int) Player {
	return Player{ID: fmt.Sprintf("ai:%d", level), Name: "AI", AI: true, AILevel: level}
}

func TestCreateRegistersAndMirrors(t *testing.T) {
	bc := &captureBroadcaster{}
	mgr := NewManager(testPresets(t), bc, 10, time.Second)
	store := testStore(t)
	mgr.AttachStore(store)
	ctx := context.Background()

	m, err := mgr.Create(ctx, "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	require.Equal(t, engine.StatusReady, m.Eng.Status())

	got, err := mgr.Get(m.ID)
	require.NoError(t, err)
	require.Same(t, m, got)

	lr, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, lr)
	require.Equal(t, "ready", lr.Status)

	active, err := store.ActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, m.ID, active.ID)
}

func TestCreateUnknownPreset(t *testing.T) {
	mgr := NewManager(testPresets(t), nil, 10, time.Second)
	_, err := mgr.Create(context.Background(), "nope", human("u1"), human("u2"))
	require.Error(t, err)
}

func TestCreateCapEnforced(t *testing.T) {
	mgr := NewManager(testPresets(t), nil, 1, time.Second)
	ctx := context.Background()
	_, err := mgr.Create(ctx, "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "classic", human("u3"), human("u4"))
	require.ErrorIs(t, err, ErrTooManyActive)
}

func TestInputRoutedBySeat(t *testing.T) {
	mgr := NewManager(testPresets(t), nil, 10, time.Second)
	m, err := mgr.Create(context.Background(), "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	require.NoError(t, m.Eng.Start())

	require.NoError(t, mgr.Input(m.ID, "u1", engine.DirUp))
	require.NoError(t, mgr.Input(m.ID, "u2", engine.DirDown))
	require.ErrorIs(t, mgr.Input(m.ID, "stranger", engine.DirUp), ErrNotInMatch)
	require.ErrorIs(t, mgr.Input("missing", "u1", engine.DirUp), ErrMatchNotFound)
}

func TestForfeitRecordsResult(t *testing.T) {
	bc := &captureBroadcaster{}
	mgr := NewManager(testPresets(t), bc, 10, time.Second)
	repo := stats.NewMemRepo()
	mgr.AttachRecorder(stats.NewRecorder(repo))
	ctx := context.Background()

	m, err := mgr.Create(ctx, "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	require.NoError(t, m.Eng.Start())

	require.NoError(t, mgr.Forfeit(m.ID, "u2"))

	recs := bc.finishedRecords()
	require.Len(t, recs, 1)
	require.Equal(t, "u1", recs[0].Winner)
	require.Equal(t, "forfeit", recs[0].ResultMethod)

	// match is gone from the registry
	_, err = mgr.Get(m.ID)
	require.ErrorIs(t, err, ErrMatchNotFound)

	// and the result reached the repository
	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, 1, p.Wins)
}

func TestDisconnectGraceForfeits(t *testing.T) {
	bc := &captureBroadcaster{}
	mgr := NewManager(testPresets(t), bc, 10, 30*time.Millisecond)
	m, err := mgr.Create(context.Background(), "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	require.NoError(t, m.Eng.Start())

	require.NoError(t, mgr.HandleDisconnect(m.ID, "u2"))
	require.Equal(t, engine.StatusPaused, m.Eng.Status())

	require.Eventually(t, func() bool {
		return len(bc.finishedRecords()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "u1", bc.finishedRecords()[0].Winner)
}

func TestReconnectCancelsGrace(t *testing.T) {
	bc := &captureBroadcaster{}
	mgr := NewManager(testPresets(t), bc, 10, 30*time.Millisecond)
	m, err := mgr.Create(context.Background(), "classic", human("u1"), human("u2"))
	require.NoError(t, err)
	require.NoError(t, m.Eng.Start())

	require.NoError(t, mgr.HandleDisconnect(m.ID, "u2"))
	require.NoError(t, mgr.HandleReconnect(m.ID, "u2"))
	require.Equal(t, engine.StatusPlaying, m.Eng.Status())

	time.Sleep(80 * time.Millisecond)
	require.Empty(t, bc.finishedRecords())
	_, err = mgr.Get(m.ID)
	require.NoError(t, err)
}

func TestLoopBroadcastsState(t *testing.T) {
	bc := &captureBroadcaster{}
	mgr := NewManager(testPresets(t), bc, 10, time.Second)
	m, err := mgr.Create(context.Background(), "classic", human("u1"), aiSeat(3))
	require.NoError(t, err)
	require.NoError(t, mgr.Start(m.ID))
	defer mgr.Shutdown()

	require.Eventually(t, func() bool {
		return bc.stateCount() >= 3
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, engine.StatusPlaying, m.Eng.Status())
}

func TestStoreRemoveUnindexes(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	lr := &LiveRecord{
		ID:        "m1",
		Preset:    "classic",
		Left:      human("u1"),
		Right:     human("u2"),
		Status:    "playing",
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, lr))
	require.NoError(t, store.Remove(ctx, lr))

	got, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	require.Nil(t, got)

	active, err := store.ActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestParseRedisURL(t *testing.T) {
	addr, pass, db, err := ParseRedisURL("redis://:secret@localhost:6379/2")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", addr)
	require.Equal(t, "secret", pass)
	require.Equal(t, 2, db)

	_, _, _, err = ParseRedisURL("http://localhost")
	require.Error(t, err)
}
