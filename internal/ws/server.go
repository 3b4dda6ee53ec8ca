package ws

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/ai"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/lobby"
	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/obslog"
	"github.com/arenalab/pong-arena/internal/stats"
	"github.com/arenalab/pong-arena/pkg/pongdto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP and websocket surface: lobby matchmaking, AI match
// creation, stats queries, and the per-match state stream.
type Server struct {
	hub     *Hub
	matches *match.Manager
	lobbies *lobby.Manager
	repo    stats.Repository
	presets *engine.Presets

	defaultPreset  string
	defaultAILevel int
	allowAI        bool
	listLimit      int
}

type Option func(*Server)

func WithAIMatches(defaultLevel int, allowed bool) Option {
	return func(s *Server) {
		s.defaultAILevel = defaultLevel
		s.allowAI = allowed
	}
}

func WithListLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.listLimit = n
		}
	}
}

func NewServer(hub *Hub, matches *match.Manager, lobbies *lobby.Manager, repo stats.Repository, presets *engine.Presets, defaultPreset string, opts ...Option) *Server {
	s := &Server{
		hub:            hub,
		matches:        matches,
		lobbies:        lobbies,
		repo:           repo,
		presets:        presets,
		defaultPreset:  defaultPreset,
		defaultAILevel: 3,
		allowAI:        true,
		listLimit:      20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/presets", s.listPresets)
		api.GET("/leaderboard", s.leaderboard)
		api.GET("/matches/recent", s.recentMatches)
		api.GET("/lobbies", s.listLobbies)
		api.POST("/lobbies", s.createLobby)
		api.POST("/lobbies/:code/join", s.joinLobby)
		api.DELETE("/lobbies/:code", s.cancelLobby)
		api.POST("/matches/ai", s.createAIMatch)
	}

	r.GET("/ws", s.serveWS)
	return r
}

func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": s.presets.Names(), "default": s.defaultPreset})
}

func (s *Server) leaderboard(c *gin.Context) {
	profiles, err := s.repo.Leaderboard(c.Request.Context(), s.listLimit)
	if err != nil {
		obslog.L().Error("leaderboard_error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]pongdto.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		out = append(out, pongdto.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Rating:      p.Rating,
			GamesPlayed: p.GamesPlayed,
			Wins:        p.Wins,
			Losses:      p.Losses,
			Streak:      p.Streak,
			StreakType:  p.StreakType,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

func (s *Server) recentMatches(c *gin.Context) {
	recs, err := s.repo.RecentMatches(c.Request.Context(), s.listLimit)
	if err != nil {
		obslog.L().Error("recent_matches_error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]pongdto.MatchSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, pongdto.MatchSummary{
			MatchID:    rec.ID,
			Preset:     rec.Preset,
			LeftName:   rec.LeftName,
			RightName:  rec.RightName,
			LeftScore:  rec.LeftScore,
			RightScore: rec.RightScore,
			Winner:     rec.Winner,
			Method:     rec.ResultMethod,
			VsAI:       rec.VsAI,
			EndedAt:    rec.EndedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

func (s *Server) listLobbies(c *gin.Context) {
	metas, err := s.lobbies.ListOpen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]pongdto.LobbyResponse, 0, len(metas))
	for _, m := range metas {
		out = append(out, lobbyResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"lobbies": out})
}

func (s *Server) createLobby(c *gin.Context) {
	var req pongdto.CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
		return
	}
	preset := req.Preset
	if strings.TrimSpace(preset) == "" {
		preset = s.defaultPreset
	}
	if _, err := s.presets.Get(preset); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown preset"})
		return
	}
	res, err := s.lobbies.Make(c.Request.Context(), req.PlayerID, req.Name, preset)
	if err != nil {
		c.JSON(lobbyErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, lobbyResponse(res.Meta))
}

func (s *Server) joinLobby(c *gin.Context) {
	var req pongdto.JoinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
		return
	}
	code := c.Param("code")
	res, err := s.lobbies.Join(c.Request.Context(), code, req.PlayerID, req.Name)
	if err != nil {
		c.JSON(lobbyErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pongdto.JoinLobbyResponse{
		Started: res.Started,
		MatchID: res.MatchID,
		Code:    code,
	})
}

func (s *Server) cancelLobby(c *gin.Context) {
	playerID := c.Query("player_id")
	if err := s.lobbies.Cancel(c.Request.Context(), c.Param("code"), playerID); err != nil {
		c.JSON(lobbyErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createAIMatch(c *gin.Context) {
	if !s.allowAI {
		c.JSON(http.StatusForbidden, gin.H{"error": "ai matches disabled"})
		return
	}
	var req pongdto.CreateAIMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
		return
	}
	preset := req.Preset
	if strings.TrimSpace(preset) == "" {
		preset = s.defaultPreset
	}
	level := req.Level
	if level == 0 {
		level = s.defaultAILevel
	}
	if level < 1 || level > ai.Levels() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown ai level"})
		return
	}

	left := match.Player{ID: req.PlayerID, Name: req.Name}
	right := match.Player{
		ID:      "ai:" + ai.LevelName(level),
		Name:    ai.LevelName(level),
		AI:      true,
		AILevel: level,
	}
	m, err := s.matches.Create(c.Request.Context(), preset, left, right)
	if err != nil {
		if err == match.ErrTooManyActive {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.matches.Start(m.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, pongdto.CreateAIMatchResponse{
		MatchID: m.ID,
		Side:    string(engine.SideLeft),
		Preset:  preset,
		Level:   level,
	})
}

// serveWS upgrades the connection and attaches it to a match room. Players
// identify themselves with player_id; anyone else watches as a spectator.
func (s *Server) serveWS(c *gin.Context) {
	matchID := c.Query("match_id")
	playerID := c.Query("player_id")
	m, err := s.matches.Get(matchID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	side, serr := m.SideOf(playerID)
	spectate := serr != nil

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		obslog.L().Warn("ws_upgrade_error", zap.Error(err))
		return
	}

	client := newClient(s.hub, s.matches, conn, matchID, playerID, spectate)
	s.hub.register(client)
	if !spectate {
		// clears any pending forfeit window from a previous drop
		_ = s.matches.HandleReconnect(matchID, playerID)
	}

	client.push(pongdto.ServerMessage{
		Type:    pongdto.TypeJoined,
		MatchID: matchID,
		Side:    string(side),
	})
	snap := m.Eng.Snapshot()
	client.push(pongdto.ServerMessage{Type: pongdto.TypeState, MatchID: matchID, State: &snap})

	go client.writePump()
	go client.readPump()
}

func lobbyResponse(m *lobby.Meta) pongdto.LobbyResponse {
	return pongdto.LobbyResponse{
		Code:      m.Code,
		State:     string(m.State),
		Preset:    m.Preset,
		HostID:    m.HostID,
		HostName:  m.HostName,
		MatchID:   m.MatchID,
		CreatedAt: m.CreatedAt,
	}
}

func lobbyErrStatus(err error) int {
	switch err {
	case lobby.ErrInvalidArgs:
		return http.StatusBadRequest
	case lobby.ErrLobbyGone:
		return http.StatusNotFound
	case lobby.ErrLobbyClosed, lobby.ErrFull, lobby.ErrPlayerBusy, lobby.ErrHostHasLobby, lobby.ErrSelfJoin:
		return http.StatusConflict
	case lobby.ErrNotHost:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
