package stats

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/obslog"
)

const (
	defaultRating = 1000
	eloK          = 32
)

// Recorder writes a finished match and folds it into both player profiles.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder { return &Recorder{repo: repo} }

// Record persists the match record and updates profiles. Matches against the
// AI count toward games and streaks but do not move ratings. AI participants
// (ids prefixed "ai:") get no profile at all.
func (r *Recorder) Record(ctx context.Context, rec *domain.MatchRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	if err := r.repo.SaveMatch(ctx, rec); err != nil {
		return err
	}

	// no winner means an administrative abort: keep the record, leave
	// profiles untouched
	if rec.WinnerSide == "" {
		obslog.L().Info("match_recorded",
			zap.String("match_id", rec.ID),
			zap.String("method", rec.ResultMethod),
		)
		return nil
	}

	winnerID, loserID := rec.LeftID, rec.RightID
	winnerName, loserName := rec.LeftName, rec.RightName
	if rec.WinnerSide == "right" {
		winnerID, loserID = rec.RightID, rec.LeftID
		winnerName, loserName = rec.RightName, rec.LeftName
	}

	winner, err := r.loadOrInit(ctx, winnerID, winnerName)
	if err != nil {
		return err
	}
	loser, err := r.loadOrInit(ctx, loserID, loserName)
	if err != nil {
		return err
	}

	now := rec.EndedAt
	if now.IsZero() {
		now = time.Now()
	}

	applyWin(winner, now)
	applyLoss(loser, now)
	if !rec.VsAI && winner != nil && loser != nil {
		delta := eloDelta(winner.Rating, loser.Rating)
		winner.Rating += delta
		loser.Rating -= delta
	}

	for _, p := range []*domain.PlayerProfile{winner, loser} {
		if p == nil {
			continue
		}
		if err := r.repo.UpsertProfile(ctx, p); err != nil {
			return err
		}
	}

	obslog.L().Info("match_recorded",
		zap.String("match_id", rec.ID),
		zap.String("winner", winnerID),
		zap.String("method", rec.ResultMethod),
		zap.Bool("vs_ai", rec.VsAI),
	)
	return nil
}

func (r *Recorder) loadOrInit(ctx context.Context, playerID, name string) (*domain.PlayerProfile, error) {
	if isAIPlayer(playerID) || strings.TrimSpace(playerID) == "" {
		return nil, nil
	}
	p, err := r.repo.GetProfile(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &domain.PlayerProfile{
			PlayerID:    playerID,
			DisplayName: name,
			Rating:      defaultRating,
			CreatedAt:   time.Now(),
		}
	}
	if strings.TrimSpace(name) != "" {
		p.DisplayName = name
	}
	return p, nil
}

func applyWin(p *domain.PlayerProfile, at time.Time) {
	if p == nil {
		return
	}
	p.GamesPlayed++
	p.Wins++
	if p.StreakType == "win" {
		p.Streak++
	} else {
		p.StreakType = "win"
		p.Streak = 1
	}
	p.LastPlayedAt = at
	p.UpdatedAt = at
}

func applyLoss(p *domain.PlayerProfile, at time.Time) {
	if p == nil {
		return
	}
	p.GamesPlayed++
	p.Losses++
	if p.StreakType == "loss" {
		p.Streak++
	} else {
		p.StreakType = "loss"
		p.Streak = 1
	}
	p.LastPlayedAt = at
	p.UpdatedAt = at
}

// eloDelta returns the rating points transferred from loser to winner.
func eloDelta(winner, loser int) int {
	expected := 1 / (1 + math.Pow(10, float64(loser-winner)/400))
	d := int(eloK * (1 - expected))
	if d < 1 {
		d = 1
	}
	return d
}

func isAIPlayer(id string) bool { return strings.HasPrefix(id, "ai:") }
