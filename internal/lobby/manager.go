package lobby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/obslog"
)

// Manager handles matchmaking: a host opens a coded lobby, a second player
// joins it, and the join that fills the second seat starts the match.
type Manager struct {
	rdb     *redis.Client
	store   *Store
	matches *match.Manager
	live    *match.Store
}

func NewManager(rdb *redis.Client, matches *match.Manager) *Manager {
	return &Manager{rdb: rdb, store: NewStore(rdb), matches: matches}
}

// AttachLiveStore wires the running-match mirror used for busy checks.
func (m *Manager) AttachLiveStore(s *match.Store) {
	if m != nil {
		m.live = s
	}
}

// Make opens a lobby for the given preset and returns its join code.
func (m *Manager) Make(ctx context.Context, userID, userName, preset string) (*MakeResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(preset) == "" {
		return nil, ErrInvalidArgs
	}
	if err := m.checkBusy(ctx, userID); err != nil {
		return nil, err
	}
	codes, _ := m.store.CodesByUser(ctx, userID)
	for _, c := range codes {
		if meta, _ := m.store.LoadMeta(ctx, c); meta != nil && meta.State == StateOpen {
			return nil, ErrHostHasLobby
		}
	}

	for i := 0; i < 5; i++ {
		c, err := codeGen()
		if err != nil {
			return nil, err
		}
		// optimistic: only claim the code if it doesn't exist
		ok, err := m.rdb.SetNX(ctx, m.store.keyMeta(c), []byte("{}"), ttlLobby).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		meta := &Meta{
			Code:      c,
			State:     StateOpen,
			Preset:    preset,
			CreatedAt: time.Now(),
			HostID:    userID,
			HostName:  userName,
		}
		if err := m.store.SaveMeta(ctx, c, meta); err != nil {
			return nil, err
		}
		// host is the first participant so the second join starts the match
		if err := m.store.AddParticipant(ctx, c, userID); err != nil {
			return nil, err
		}
		if err := m.store.AddOpen(ctx, c); err != nil {
			return nil, err
		}
		obslog.L().Info("lobby_make",
			zap.String("code", c),
			zap.String("preset", preset),
			zap.String("host_id", userID),
		)
		return &MakeResult{Code: c, Meta: meta}, nil
	}
	return nil, fmt.Errorf("failed to allocate lobby code")
}

// Join adds a player to the lobby. The join that fills the second seat
// creates and starts the match; a WATCH on the participants set guards
// against two joins racing for it.
func (m *Manager) Join(ctx context.Context, code, userID, userName string) (*JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgs
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrLobbyGone
	}
	if meta.State != StateOpen {
		return nil, ErrLobbyClosed
	}
	if meta.HostID == userID {
		return nil, ErrSelfJoin
	}
	if err := m.checkBusy(ctx, userID); err != nil {
		return nil, err
	}

	partKey := m.store.keyParticipants(code)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cnt, err := tx.SCard(ctx, partKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cnt >= 2 {
			return ErrFull
		}
		pipe := tx.TxPipeline()
		pipe.SAdd(ctx, partKey, userID)
		pipe.Expire(ctx, partKey, ttlLobby)
		pipe.SAdd(ctx, m.store.keyUserIdx(userID), code)
		pipe.Expire(ctx, m.store.keyUserIdx(userID), ttlLobby)
		_, pErr := pipe.Exec(ctx)
		return pErr
	}, partKey)
	if err != nil {
		obslog.L().Warn("lobby_join_error",
			zap.String("code", code),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	meta, err = m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrLobbyGone
	}

	cnt, _ := m.store.ParticipantCount(ctx, code)
	if cnt < 2 || meta.MatchID != "" {
		obslog.L().Info("lobby_join", zap.String("code", code), zap.String("user_id", userID), zap.String("reason", "queued"))
		return &JoinResult{Started: false, MatchID: meta.MatchID, Meta: meta}, nil
	}

	left := match.Player{ID: meta.HostID, Name: meta.HostName}
	right := match.Player{ID: userID, Name: userName}
	mt, err := m.matches.Create(ctx, meta.Preset, left, right)
	if err != nil {
		m.releaseSeat(ctx, code, userID)
		return nil, err
	}
	if err := m.matches.Start(mt.ID); err != nil {
		m.releaseSeat(ctx, code, userID)
		return nil, err
	}

	meta.State = StateActive
	meta.GuestID = userID
	meta.GuestName = userName
	meta.MatchID = mt.ID
	if err := m.store.SaveMeta(ctx, code, meta); err != nil {
		return nil, err
	}
	_ = m.store.RemoveOpen(ctx, code)
	obslog.L().Info("lobby_start_match",
		zap.String("code", code),
		zap.String("match_id", mt.ID),
		zap.String("host_id", meta.HostID),
		zap.String("guest_id", userID),
	)
	return &JoinResult{Started: true, MatchID: mt.ID, Meta: meta}, nil
}

// releaseSeat undoes a claimed second seat so the lobby stays joinable
// after a failed match start.
func (m *Manager) releaseSeat(ctx context.Context, code, userID string) {
	if err := m.store.RemoveParticipant(ctx, code, userID); err != nil {
		obslog.L().Warn("lobby_seat_release_error",
			zap.String("code", code),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// Cancel aborts an open lobby. Only the host can cancel.
func (m *Manager) Cancel(ctx context.Context, code, userID string) error {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(userID) == "" {
		return ErrInvalidArgs
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrLobbyGone
	}
	if meta.HostID != userID {
		return ErrNotHost
	}
	if meta.State != StateOpen {
		return ErrLobbyClosed
	}
	meta.State = StateAborted
	if err := m.store.SaveMeta(ctx, code, meta); err != nil {
		return err
	}
	_ = m.store.RemoveOpen(ctx, code)
	obslog.L().Info("lobby_cancel", zap.String("code", code), zap.String("host_id", userID))
	return nil
}

// ListOpen returns lobbies waiting for an opponent.
func (m *Manager) ListOpen(ctx context.Context) ([]*Meta, error) {
	return m.store.ListOpen(ctx)
}

func (m *Manager) checkBusy(ctx context.Context, userID string) error {
	if m.live == nil {
		return nil
	}
	lr, err := m.live.ActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if lr != nil {
		return ErrPlayerBusy
	}
	return nil
}
