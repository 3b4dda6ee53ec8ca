package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/obslog"
	"github.com/arenalab/pong-arena/pkg/pongdto"
)

// Hub fans simulation state out to every socket watching a match. It
// implements the match manager's Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[c.matchID]; !ok {
		h.rooms[c.matchID] = make(map[*Client]bool)
	}
	h.rooms[c.matchID][c] = true
	obslog.L().Info("ws_client_register",
		zap.String("match_id", c.matchID),
		zap.String("player_id", c.playerID),
	)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.matchID]; ok {
		if _, in := room[c]; in {
			delete(room, c)
			c.closeSend()
		}
		if len(room) == 0 {
			delete(h.rooms, c.matchID)
		}
	}
	obslog.L().Info("ws_client_unregister",
		zap.String("match_id", c.matchID),
		zap.String("player_id", c.playerID),
	)
}

func (h *Hub) broadcast(matchID string, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[matchID]
	if !ok {
		return
	}
	for c := range room {
		select {
		case c.send <- raw:
		default:
			// slow consumer, drop the socket rather than the tick rate
			delete(room, c)
			c.closeSend()
		}
	}
}

// State pushes a snapshot to everyone in the match room.
func (h *Hub) State(matchID string, s engine.Snapshot) {
	raw, err := json.Marshal(pongdto.ServerMessage{
		Type:    pongdto.TypeState,
		MatchID: matchID,
		State:   &s,
	})
	if err != nil {
		return
	}
	h.broadcast(matchID, raw)
}

// Finished pushes the final result and scoreline.
func (h *Hub) Finished(matchID string, s engine.Snapshot, rec *domain.MatchRecord) {
	msg := pongdto.ServerMessage{
		Type:    pongdto.TypeFinished,
		MatchID: matchID,
		State:   &s,
	}
	if rec != nil {
		msg.Result = &pongdto.MatchResult{
			MatchID:    rec.ID,
			WinnerID:   rec.Winner,
			WinnerSide: rec.WinnerSide,
			LeftScore:  rec.LeftScore,
			RightScore: rec.RightScore,
			Method:     rec.ResultMethod,
		}
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(matchID, raw)
}
