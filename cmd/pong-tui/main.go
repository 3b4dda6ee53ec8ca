package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/arenalab/pong-arena/internal/ai"
	"github.com/arenalab/pong-arena/internal/engine"
)

const (
	courtCols = 72
	courtRows = 22

	// a key press counts as "held" for this many ticks; terminals have no
	// key-release events
	holdTicks = 6
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	paddleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	ballStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	scoreStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	winStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("84")).Bold(true)
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Pause   key.Binding
	NewGame key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k", "w")),
	Down:    key.NewBinding(key.WithKeys("down", "j", "s")),
	Pause:   key.NewBinding(key.WithKeys("p", " ")),
	NewGame: key.NewBinding(key.WithKeys("n")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type tickMsg time.Time

type model struct {
	eng   *engine.Engine
	ctrl  *ai.Controller
	tun   engine.Tuning
	level int

	hold    int
	holdDir engine.Direction

	wins, losses int
}

func newModel(tun engine.Tuning, level int) model {
	eng := engine.New(tun, rand.New(rand.NewSource(time.Now().UnixNano())))
	ctrl, err := ai.New(engine.SideRight, level, tun, rand.New(rand.NewSource(time.Now().UnixNano()+1)))
	if err != nil {
		zlog.Fatal().Err(err).Msg("ai controller init")
	}
	if err := eng.Start(); err != nil {
		zlog.Fatal().Err(err).Msg("engine start")
	}
	return model{eng: eng, ctrl: ctrl, tun: tun, level: level}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.tun.TickInterval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.hold = holdTicks
			m.holdDir = engine.DirUp
		case key.Matches(msg, keys.Down):
			m.hold = holdTicks
			m.holdDir = engine.DirDown
		case key.Matches(msg, keys.Pause):
			switch m.eng.Status() {
			case engine.StatusPlaying:
				_ = m.eng.Pause()
			case engine.StatusPaused:
				_ = m.eng.Resume()
			}
		case key.Matches(msg, keys.NewGame):
			if m.eng.Status() == engine.StatusFinished {
				if m.eng.Winner() == engine.SideLeft {
					m.wins++
				} else {
					m.losses++
				}
				next := newModel(m.tun, m.level)
				next.wins, next.losses = m.wins, m.losses
				return next, next.tick()
			}
		}
		return m, nil

	case tickMsg:
		if m.hold > 0 {
			m.hold--
			_ = m.eng.SetIntent(engine.SideLeft, m.holdDir)
		} else {
			_ = m.eng.SetIntent(engine.SideLeft, engine.DirNone)
		}
		_ = m.eng.SetIntent(engine.SideRight, m.ctrl.Intent(m.eng.Snapshot()))
		m.eng.Step()
		return m, m.tick()
	}
	return m, nil
}

func (m model) View() string {
	s := m.eng.Snapshot()
	var b strings.Builder

	title := fmt.Sprintf(" you %d : %d %s ", s.LeftScore, s.RightScore, ai.LevelName(m.level))
	b.WriteString(scoreStyle.Render(title))
	if m.wins+m.losses > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("   session %dW/%dL", m.wins, m.losses)))
	}
	b.WriteString("\n")
	b.WriteString(m.renderCourt(s))
	b.WriteString("\n")

	switch s.Status {
	case engine.StatusPaused:
		b.WriteString(dimStyle.Render("paused: p to resume, q to quit"))
	case engine.StatusFinished:
		if s.Winner == engine.SideLeft {
			b.WriteString(winStyle.Render("you win!"))
		} else {
			b.WriteString(winStyle.Render(ai.LevelName(m.level) + " wins"))
		}
		b.WriteString(dimStyle.Render("  n for a rematch, q to quit"))
	default:
		b.WriteString(dimStyle.Render("w/s or arrows to move, p to pause, q to quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// renderCourt scales the simulation court onto a character grid.
func (m model) renderCourt(s engine.Snapshot) string {
	grid := make([][]rune, courtRows)
	for y := range grid {
		grid[y] = make([]rune, courtCols)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	scaleX := float64(courtCols) / m.tun.CourtWidth
	scaleY := float64(courtRows) / m.tun.CourtHeight
	midX := courtCols / 2
	for y := 0; y < courtRows; y += 2 {
		grid[y][midX] = '|'
	}

	paddleLen := int(m.tun.PaddleHeight * scaleY)
	if paddleLen < 1 {
		paddleLen = 1
	}
	drawPaddle := func(col int, topY float64) {
		top := int(topY * scaleY)
		for i := 0; i < paddleLen; i++ {
			y := top + i
			if y >= 0 && y < courtRows {
				grid[y][col] = '█'
			}
		}
	}
	drawPaddle(0, s.LeftY)
	drawPaddle(courtCols-1, s.RightY)

	bx := int(s.Ball.X * scaleX)
	by := int(s.Ball.Y * scaleY)
	if bx >= 0 && bx < courtCols && by >= 0 && by < courtRows {
		grid[by][bx] = '●'
	}

	var b strings.Builder
	b.WriteString(borderStyle.Render("+" + strings.Repeat("-", courtCols) + "+"))
	b.WriteString("\n")
	for y := 0; y < courtRows; y++ {
		b.WriteString(borderStyle.Render("|"))
		for x := 0; x < courtCols; x++ {
			r := grid[y][x]
			switch r {
			case '█':
				b.WriteString(paddleStyle.Render(string(r)))
			case '●':
				b.WriteString(ballStyle.Render(string(r)))
			default:
				b.WriteRune(r)
			}
		}
		b.WriteString(borderStyle.Render("|"))
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("+" + strings.Repeat("-", courtCols) + "+"))
	return b.String()
}

func initLogging() {
	logDir := filepath.Join(os.TempDir(), "pong-tui")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		zlog.Logger = zerolog.Nop()
		return
	}
	f, err := os.OpenFile(filepath.Join(logDir, "pong-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		zlog.Logger = zerolog.Nop()
		return
	}
	zlog.Logger = zerolog.New(f).With().Timestamp().Logger()
}

func main() {
	presetName := flag.String("preset", "classic", "game variant")
	level := flag.Int("level", 3, "ai difficulty 1-5")
	flag.Parse()

	initLogging()

	presets, err := engine.LoadPresets(os.Getenv("GAME_PRESET_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "presets: %v\n", err)
		os.Exit(1)
	}
	tun, err := presets.Get(*presetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (have: %s)\n", err, strings.Join(presets.Names(), ", "))
		os.Exit(1)
	}
	if *level < 1 || *level > ai.Levels() {
		fmt.Fprintf(os.Stderr, "level must be 1-%d\n", ai.Levels())
		os.Exit(1)
	}

	zlog.Info().Str("preset", *presetName).Int("level", *level).Msg("starting")
	p := tea.NewProgram(newModel(tun, *level))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
