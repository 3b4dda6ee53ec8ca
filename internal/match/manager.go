package match

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/ai"
	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/obslog"
	"github.com/arenalab/pong-arena/internal/stats"
)

// mirror the live record roughly once a second at the default tick rate
const mirrorEvery = 60

// Match is one live game: the authoritative engine plus seat assignments and
// any attached AI controllers.
type Match struct {
	ID     string
	Preset string
	Left   Player
	Right  Player
	Eng    *engine.Engine

	ctrls     map[engine.Side]*ai.Controller
	startedAt time.Time
	cancel    context.CancelFunc
	running   bool

	graceMu     sync.Mutex
	graceTimers map[engine.Side]*time.Timer

	finishOnce sync.Once
}

// SideOf returns which paddle the player controls.
func (m *Match) SideOf(playerID string) (engine.Side, error) {
	switch playerID {
	case m.Left.ID:
		return engine.SideLeft, nil
	case m.Right.ID:
		return engine.SideRight, nil
	}
	return "", ErrNotInMatch
}

func (m *Match) vsAI() bool { return m.Left.AI || m.Right.AI }

func (m *Match) aiLevel() int {
	if m.Left.AI {
		return m.Left.AILevel
	}
	if m.Right.AI {
		return m.Right.AILevel
	}
	return 0
}

// Manager owns every live match in the process. Each started match runs its
// own ticker goroutine; everything else reaches the engine through the
// manager's registry.
type Manager struct {
	mu      sync.Mutex
	presets *engine.Presets
	bc      Broadcaster
	matches map[string]*Match
	max     int
	grace   time.Duration

	store    *Store
	recorder *stats.Recorder
}

func NewManager(presets *engine.Presets, bc Broadcaster, maxConcurrent int, grace time.Duration) *Manager {
	if bc == nil {
		bc = NopBroadcaster{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 200
	}
	return &Manager{
		presets: presets,
		bc:      bc,
		matches: make(map[string]*Match),
		max:     maxConcurrent,
		grace:   grace,
	}
}

// SetBroadcaster replaces the broadcast target. Call before any match starts.
func (mgr *Manager) SetBroadcaster(bc Broadcaster) {
	if mgr == nil || bc == nil {
		return
	}
	mgr.mu.Lock()
	mgr.bc = bc
	mgr.mu.Unlock()
}

// AttachStore wires the Redis live-match mirror.
func (mgr *Manager) AttachStore(s *Store) {
	if mgr != nil {
		mgr.store = s
	}
}

// AttachRecorder wires durable result persistence.
func (mgr *Manager) AttachRecorder(r *stats.Recorder) {
	if mgr != nil {
		mgr.recorder = r
	}
}

// Create registers a new match in the ready state. AI seats get a controller
// for their paddle; Start launches the simulation loop.
func (mgr *Manager) Create(ctx context.Context, preset string, left, right Player) (*Match, error) {
	tun, err := mgr.presets.Get(preset)
	if err != nil {
		return nil, err
	}

	m := &Match{
		ID:          uuid.NewString(),
		Preset:      preset,
		Left:        left,
		Right:       right,
		Eng:         engine.New(tun, rand.New(rand.NewSource(time.Now().UnixNano()))),
		ctrls:       make(map[engine.Side]*ai.Controller),
		startedAt:   time.Now(),
		graceTimers: make(map[engine.Side]*time.Timer),
	}
	for side, p := range map[engine.Side]Player{engine.SideLeft: left, engine.SideRight: right} {
		if !p.AI {
			continue
		}
		ctrl, aerr := ai.New(side, p.AILevel, tun, rand.New(rand.NewSource(time.Now().UnixNano()+int64(len(side)))))
		if aerr != nil {
			return nil, aerr
		}
		m.ctrls[side] = ctrl
	}

	mgr.mu.Lock()
	if len(mgr.matches) >= mgr.max {
		mgr.mu.Unlock()
		return nil, ErrTooManyActive
	}
	mgr.matches[m.ID] = m
	mgr.mu.Unlock()

	if err := mgr.mirror(ctx, m); err != nil {
		obslog.L().Warn("match_mirror_error", zap.String("match_id", m.ID), zap.Error(err))
	}
	obslog.L().Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("preset", preset),
		zap.String("left_id", left.ID),
		zap.String("right_id", right.ID),
		zap.Bool("vs_ai", m.vsAI()),
	)
	return m, nil
}

// Start begins the fixed-timestep loop for a created match.
func (mgr *Manager) Start(id string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	if err := m.Eng.Start(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.mu.Lock()
	m.cancel = cancel
	m.running = true
	mgr.mu.Unlock()
	go mgr.loop(ctx, m)
	return nil
}

func (mgr *Manager) loop(ctx context.Context, m *Match) {
	ticker := time.NewTicker(m.Eng.Tuning().TickInterval())
	defer ticker.Stop()
	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for side, ctrl := range m.ctrls {
			_ = m.Eng.SetIntent(side, ctrl.Intent(m.Eng.Snapshot()))
		}
		m.Eng.Step()
		s := m.Eng.Snapshot()
		mgr.bc.State(m.ID, s)

		ticks++
		if ticks%mirrorEvery == 0 {
			_ = mgr.mirror(ctx, m)
		}
		if s.Status == engine.StatusFinished {
			mgr.finalize(m, "score")
			return
		}
	}
}

// Input routes a movement intent from a player to their paddle.
func (mgr *Manager) Input(id, playerID string, d engine.Direction) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	side, err := m.SideOf(playerID)
	if err != nil {
		return err
	}
	return m.Eng.SetIntent(side, d)
}

// Pause freezes the match on behalf of a participant.
func (mgr *Manager) Pause(id, playerID string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	if _, err := m.SideOf(playerID); err != nil {
		return err
	}
	return m.Eng.Pause()
}

// Resume continues a paused match.
func (mgr *Manager) Resume(id, playerID string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	if _, err := m.SideOf(playerID); err != nil {
		return err
	}
	return m.Eng.Resume()
}

// Forfeit ends the match with the given player as the loser. Used for
// explicit surrender and expired reconnect windows.
func (mgr *Manager) Forfeit(id, playerID string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	side, err := m.SideOf(playerID)
	if err != nil {
		return err
	}
	if err := m.Eng.Forfeit(side); err != nil {
		return err
	}
	mgr.finalize(m, "forfeit")
	return nil
}

// Abort ends a match administratively with no winner. Aborted matches are
// saved for the record but never touch profiles or ratings.
func (mgr *Manager) Abort(id string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	_ = m.Eng.Pause()
	mgr.finalize(m, "abort")
	return nil
}

// HandleDisconnect pauses the match and arms the reconnect window. When the
// window expires without a reconnect the absent player forfeits.
func (mgr *Manager) HandleDisconnect(id, playerID string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	side, err := m.SideOf(playerID)
	if err != nil {
		return err
	}
	_ = m.Eng.Pause()
	obslog.L().Info("match_disconnect",
		zap.String("match_id", id),
		zap.String("player_id", playerID),
		zap.Duration("grace", mgr.grace),
	)
	if mgr.grace <= 0 {
		return mgr.Forfeit(id, playerID)
	}
	m.graceMu.Lock()
	defer m.graceMu.Unlock()
	if t := m.graceTimers[side]; t != nil {
		t.Stop()
	}
	m.graceTimers[side] = time.AfterFunc(mgr.grace, func() {
		if err := mgr.Forfeit(id, playerID); err != nil && err != ErrMatchNotFound {
			obslog.L().Warn("match_grace_forfeit_error", zap.String("match_id", id), zap.Error(err))
		}
	})
	return nil
}

// HandleReconnect cancels the forfeit window and resumes play.
func (mgr *Manager) HandleReconnect(id, playerID string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	side, err := m.SideOf(playerID)
	if err != nil {
		return err
	}
	m.graceMu.Lock()
	if t := m.graceTimers[side]; t != nil {
		t.Stop()
		delete(m.graceTimers, side)
	}
	m.graceMu.Unlock()
	obslog.L().Info("match_reconnect", zap.String("match_id", id), zap.String("player_id", playerID))
	return m.Eng.Resume()
}

// Get returns a live match by ID.
func (mgr *Manager) Get(id string) (*Match, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	m, ok := mgr.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// List returns live matches sorted by start time, newest first.
func (mgr *Manager) List() []*Match {
	mgr.mu.Lock()
	out := make([]*Match, 0, len(mgr.matches))
	for _, m := range mgr.matches {
		out = append(out, m)
	}
	mgr.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].startedAt.After(out[j].startedAt) })
	return out
}

// Shutdown stops every match loop without recording results.
func (mgr *Manager) Shutdown() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, m := range mgr.matches {
		if m.cancel != nil {
			m.cancel()
		}
	}
}

func (mgr *Manager) finalize(m *Match, method string) {
	m.finishOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.graceMu.Lock()
		for side, t := range m.graceTimers {
			t.Stop()
			delete(m.graceTimers, side)
		}
		m.graceMu.Unlock()

		s := m.Eng.Snapshot()
		rec := mgr.record(m, s, method)

		ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelCtx()
		if mgr.recorder != nil {
			if err := mgr.recorder.Record(ctx, rec); err != nil {
				obslog.L().Error("match_record_error", zap.String("match_id", m.ID), zap.Error(err))
			}
		}
		_ = mgr.mirror(ctx, m)

		mgr.mu.Lock()
		delete(mgr.matches, m.ID)
		mgr.mu.Unlock()

		mgr.bc.Finished(m.ID, s, rec)
		obslog.L().Info("match_finished",
			zap.String("match_id", m.ID),
			zap.String("winner", rec.Winner),
			zap.String("method", method),
			zap.Int("left_score", s.LeftScore),
			zap.Int("right_score", s.RightScore),
		)
	})
}

func (mgr *Manager) record(m *Match, s engine.Snapshot, method string) *domain.MatchRecord {
	winnerID := ""
	switch s.Winner {
	case engine.SideLeft:
		winnerID = m.Left.ID
	case engine.SideRight:
		winnerID = m.Right.ID
	}
	now := time.Now()
	return &domain.MatchRecord{
		ID:           m.ID,
		Preset:       m.Preset,
		LeftID:       m.Left.ID,
		LeftName:     m.Left.Name,
		RightID:      m.Right.ID,
		RightName:    m.Right.Name,
		LeftScore:    s.LeftScore,
		RightScore:   s.RightScore,
		Winner:       winnerID,
		WinnerSide:   string(s.Winner),
		ResultMethod: method,
		VsAI:         m.vsAI(),
		AILevel:      m.aiLevel(),
		StartedAt:    m.startedAt,
		EndedAt:      now,
		Duration:     now.Sub(m.startedAt),
	}
}

func (mgr *Manager) mirror(ctx context.Context, m *Match) error {
	if mgr.store == nil {
		return nil
	}
	s := m.Eng.Snapshot()
	winnerID := ""
	switch s.Winner {
	case engine.SideLeft:
		winnerID = m.Left.ID
	case engine.SideRight:
		winnerID = m.Right.ID
	}
	return mgr.store.Save(ctx, &LiveRecord{
		ID:         m.ID,
		Preset:     m.Preset,
		Left:       m.Left,
		Right:      m.Right,
		Status:     string(s.Status),
		LeftScore:  s.LeftScore,
		RightScore: s.RightScore,
		Winner:     winnerID,
		StartedAt:  m.startedAt,
		UpdatedAt:  time.Now(),
	})
}
