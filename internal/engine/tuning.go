package engine

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	yaml "gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets embed.FS

// Tuning holds the physics and rule parameters for one game variant.
// All speeds are in court units per tick.
type Tuning struct {
	CourtWidth   float64 `yaml:"court_width"`
	CourtHeight  float64 `yaml:"court_height"`
	PaddleWidth  float64 `yaml:"paddle_width"`
	PaddleHeight float64 `yaml:"paddle_height"`

	PaddleAccel    float64 `yaml:"paddle_accel"`
	PaddleMaxSpeed float64 `yaml:"paddle_max_speed"`
	PaddleFriction float64 `yaml:"paddle_friction"`

	BallRadius    float64 `yaml:"ball_radius"`
	ServeSpeed    float64 `yaml:"serve_speed"`
	MaxBallSpeed  float64 `yaml:"max_ball_speed"`
	SpeedUpFactor float64 `yaml:"speed_up_factor"`
	MaxBounceDeg  float64 `yaml:"max_bounce_deg"`

	WinScore        int `yaml:"win_score"`
	TickMS          int `yaml:"tick_ms"`
	ServeDelayTicks int `yaml:"serve_delay_ticks"`
}

// MaxBounceAngle returns the bounce-angle cap in radians.
func (t Tuning) MaxBounceAngle() float64 { return t.MaxBounceDeg * math.Pi / 180 }

// TickInterval returns the fixed step interval for the match loop.
func (t Tuning) TickInterval() time.Duration { return time.Duration(t.TickMS) * time.Millisecond }

func (t Tuning) validate(name string) error {
	if t.CourtWidth <= 0 || t.CourtHeight <= 0 {
		return fmt.Errorf("preset %s: court dimensions must be positive", name)
	}
	if t.PaddleHeight <= 0 || t.PaddleHeight >= t.CourtHeight {
		return fmt.Errorf("preset %s: paddle height out of range", name)
	}
	if t.ServeSpeed <= 0 || t.MaxBallSpeed < t.ServeSpeed {
		return fmt.Errorf("preset %s: ball speeds out of range", name)
	}
	if t.WinScore <= 0 {
		return fmt.Errorf("preset %s: win score must be positive", name)
	}
	if t.TickMS <= 0 {
		return fmt.Errorf("preset %s: tick interval must be positive", name)
	}
	return nil
}

// Presets loads named tunings from the embedded defaults and then applies
// overrides from dir if provided. Override files may redefine an embedded
// preset or add new ones; duplicate names across override files are an error.
type Presets struct {
	mu   sync.RWMutex
	data map[string]Tuning
}

func LoadPresets(overrideDir string) (*Presets, error) {
	p := &Presets{data: make(map[string]Tuning)}
	raw, err := fs.ReadFile(defaultPresets, "presets.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded presets: %w", err)
	}
	if err := p.applyYAML(raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := p.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Presets) applyYAML(b []byte) error {
	var m map[string]Tuning
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, t := range m {
		if err := t.validate(name); err != nil {
			return err
		}
		p.data[strings.ToLower(strings.TrimSpace(name))] = t
	}
	return nil
}

func (p *Presets) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read preset dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string) // preset name -> filename
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var m map[string]Tuning
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range m {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override preset %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		for k, t := range m {
			if err := t.validate(k); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			p.mu.Lock()
			p.data[strings.ToLower(strings.TrimSpace(k))] = t
			p.mu.Unlock()
		}
	}
	return nil
}

// Get returns the named tuning.
func (p *Presets) Get(name string) (Tuning, error) {
	p.mu.RLock()
	t, ok := p.data[strings.ToLower(strings.TrimSpace(name))]
	p.mu.RUnlock()
	if !ok {
		return Tuning{}, fmt.Errorf("unknown preset: %s", name)
	}
	return t, nil
}

// SetWinScore overrides the target score of a named preset.
func (p *Presets) SetWinScore(name string, score int) error {
	if score <= 0 {
		return fmt.Errorf("win score must be positive")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.data[key]
	if !ok {
		return fmt.Errorf("unknown preset: %s", name)
	}
	t.WinScore = score
	p.data[key] = t
	return nil
}

// Names lists available preset names, sorted.
func (p *Presets) Names() []string {
	p.mu.RLock()
	names := lo.Keys(p.data)
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}
