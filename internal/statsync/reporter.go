package statsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arenalab/pong-arena/internal/domain"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/obslog"
)

// Reporter forwards final match results to the arena platform and applies
// control events coming back over the feed. It plugs into the match manager
// as one of its broadcasters.
type Reporter struct {
	client  *Client
	matches *match.Manager
}

func NewReporter(client *Client, matches *match.Manager) *Reporter {
	return &Reporter{client: client, matches: matches}
}

// State is intentionally a no-op: per-tick snapshots stay on the local hub.
func (r *Reporter) State(string, engine.Snapshot) {}

// Finished ships the result upstream without blocking the match loop.
func (r *Reporter) Finished(matchID string, _ engine.Snapshot, rec *domain.MatchRecord) {
	if r == nil || r.client == nil || rec == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := r.client.ReportResult(ctx, ResultReport{
			MatchID:    rec.ID,
			Preset:     rec.Preset,
			LeftID:     rec.LeftID,
			LeftName:   rec.LeftName,
			RightID:    rec.RightID,
			RightName:  rec.RightName,
			LeftScore:  rec.LeftScore,
			RightScore: rec.RightScore,
			WinnerID:   rec.Winner,
			Method:     rec.ResultMethod,
			VsAI:       rec.VsAI,
			DurationMS: rec.Duration.Milliseconds(),
		})
		if err != nil {
			obslog.L().Error("platform_report_error", zap.String("match_id", matchID), zap.Error(err))
			return
		}
		obslog.L().Info("platform_report", zap.String("match_id", matchID))
	}()
}

// AttachFeed subscribes to the control channel: abort events stop the named
// match, announcements are logged.
func (r *Reporter) AttachFeed(feed Feed) {
	if r == nil || feed == nil {
		return
	}
	feed.OnEvent(func(ev *Event) {
		if ev == nil {
			return
		}
		switch ev.Type {
		case "abort_match":
			if err := r.matches.Abort(ev.MatchID); err != nil {
				obslog.L().Warn("platform_abort_error", zap.String("match_id", ev.MatchID), zap.Error(err))
				return
			}
			obslog.L().Info("platform_abort", zap.String("match_id", ev.MatchID))
		case "announce":
			obslog.L().Info("platform_announce", zap.String("text", ev.Text))
		default:
			obslog.L().Debug("platform_event_ignored", zap.String("type", ev.Type))
		}
	})
	feed.OnStateChange(func(s State) {
		obslog.L().Info("platform_feed_state", zap.String("state", string(s)))
	})
}
