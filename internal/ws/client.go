package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/obslog"
	"github.com/arenalab/pong-arena/pkg/pongdto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client is one player's socket attached to a match room.
type Client struct {
	hub      *Hub
	matches  *match.Manager
	conn     *websocket.Conn
	send     chan []byte
	matchID  string
	playerID string
	spectate bool

	sendMu sync.Mutex
	closed bool
}

func newClient(hub *Hub, matches *match.Manager, conn *websocket.Conn, matchID, playerID string, spectate bool) *Client {
	return &Client{
		hub:      hub,
		matches:  matches,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		matchID:  matchID,
		playerID: playerID,
		spectate: spectate,
	}
}

func (c *Client) push(msg pongdto.ServerMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// closeSend closes the send channel exactly once; push holds the same
// lock, so a late push after the hub drops the client cannot hit a
// closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) pushError(text string) {
	c.push(pongdto.ServerMessage{Type: pongdto.TypeError, MatchID: c.matchID, ErrorMsg: text})
}

// readPump consumes client messages until the socket dies, then arms the
// reconnect window for participants.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
		if !c.spectate {
			if err := c.matches.HandleDisconnect(c.matchID, c.playerID); err != nil && err != match.ErrMatchNotFound {
				obslog.L().Warn("ws_disconnect_error", zap.String("match_id", c.matchID), zap.Error(err))
			}
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg pongdto.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.pushError("malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg pongdto.ClientMessage) {
	// join works for spectators too: it re-sends the connect-time frames
	// so a client can resynchronize its view
	if msg.Type == pongdto.TypeJoin {
		c.resync()
		return
	}
	if c.spectate {
		c.pushError("spectators cannot control the match")
		return
	}
	var err error
	switch msg.Type {
	case pongdto.TypeInput:
		err = c.matches.Input(c.matchID, c.playerID, engine.ParseDirection(msg.Direction))
	case pongdto.TypePause:
		if err = c.matches.Pause(c.matchID, c.playerID); err == nil {
			c.push(pongdto.ServerMessage{Type: pongdto.TypePaused, MatchID: c.matchID})
		}
	case pongdto.TypeResume:
		if err = c.matches.Resume(c.matchID, c.playerID); err == nil {
			c.push(pongdto.ServerMessage{Type: pongdto.TypeResumed, MatchID: c.matchID})
		}
	case pongdto.TypeForfeit:
		err = c.matches.Forfeit(c.matchID, c.playerID)
	default:
		c.pushError("unknown message type")
		return
	}
	if err != nil {
		c.pushError(err.Error())
	}
}

// resync re-acknowledges the seat and pushes a fresh snapshot.
func (c *Client) resync() {
	m, err := c.matches.Get(c.matchID)
	if err != nil {
		c.pushError(err.Error())
		return
	}
	side := ""
	if s, serr := m.SideOf(c.playerID); serr == nil {
		side = string(s)
	}
	c.push(pongdto.ServerMessage{Type: pongdto.TypeJoined, MatchID: c.matchID, Side: side})
	snap := m.Eng.Snapshot()
	c.push(pongdto.ServerMessage{Type: pongdto.TypeState, MatchID: c.matchID, State: &snap})
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
