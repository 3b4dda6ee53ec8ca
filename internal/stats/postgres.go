package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/arenalab/pong-arena/internal/domain"
)

// Postgres is the durable Repository backed by lib/pq.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (r *Postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Postgres) SaveMatch(ctx context.Context, rec *domain.MatchRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	duration := rec.Duration.Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO pong_matches (
	    match_id, preset, left_id, left_name, right_id, right_name,
	    left_score, right_score, winner, winner_side, result_method,
	    vs_ai, ai_level, started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
	  ) ON CONFLICT (match_id) DO UPDATE SET
	    left_score=EXCLUDED.left_score,
	    right_score=EXCLUDED.right_score,
	    winner=EXCLUDED.winner,
	    winner_side=EXCLUDED.winner_side,
	    result_method=EXCLUDED.result_method,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.Preset,
		rec.LeftID, rec.LeftName,
		rec.RightID, rec.RightName,
		rec.LeftScore, rec.RightScore,
		rec.Winner, rec.WinnerSide, strings.TrimSpace(rec.ResultMethod),
		rec.VsAI, rec.AILevel,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func (r *Postgres) RecentMatches(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT match_id, preset, left_id, left_name, right_id, right_name,
	        left_score, right_score, winner, winner_side, result_method,
	        vs_ai, ai_level, started_at, ended_at, duration_ms
	      FROM pong_matches
	      ORDER BY ended_at DESC
	      LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MatchRecord
	for rows.Next() {
		var rec domain.MatchRecord
		var durationMS int64
		if err := rows.Scan(
			&rec.ID, &rec.Preset,
			&rec.LeftID, &rec.LeftName,
			&rec.RightID, &rec.RightName,
			&rec.LeftScore, &rec.RightScore,
			&rec.Winner, &rec.WinnerSide, &rec.ResultMethod,
			&rec.VsAI, &rec.AILevel,
			&rec.StartedAt, &rec.EndedAt, &durationMS,
		); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Postgres) GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
	q := `SELECT player_id, display_name, rating, games_played, wins, losses,
	        streak, streak_type, last_played_at, updated_at, created_at
	      FROM pong_profiles WHERE player_id = $1`
	var p domain.PlayerProfile
	err := r.db.QueryRowContext(ctx, q, playerID).Scan(
		&p.PlayerID, &p.DisplayName, &p.Rating, &p.GamesPlayed,
		&p.Wins, &p.Losses, &p.Streak, &p.StreakType,
		&p.LastPlayedAt, &p.UpdatedAt, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Postgres) UpsertProfile(ctx context.Context, p *domain.PlayerProfile) error {
	if p == nil {
		return nil
	}
	q := `INSERT INTO pong_profiles (
	    player_id, display_name, rating, games_played, wins, losses,
	    streak, streak_type, last_played_at, updated_at, created_at
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	  ON CONFLICT (player_id) DO UPDATE SET
	    display_name=EXCLUDED.display_name,
	    rating=EXCLUDED.rating,
	    games_played=EXCLUDED.games_played,
	    wins=EXCLUDED.wins,
	    losses=EXCLUDED.losses,
	    streak=EXCLUDED.streak,
	    streak_type=EXCLUDED.streak_type,
	    last_played_at=EXCLUDED.last_played_at,
	    updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		p.PlayerID, p.DisplayName, p.Rating, p.GamesPlayed,
		p.Wins, p.Losses, p.Streak, p.StreakType,
		p.LastPlayedAt, p.UpdatedAt, p.CreatedAt,
	)
	return err
}

func (r *Postgres) Leaderboard(ctx context.Context, limit int) ([]domain.PlayerProfile, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT player_id, display_name, rating, games_played, wins, losses,
	        streak, streak_type, last_played_at, updated_at, created_at
	      FROM pong_profiles
	      WHERE games_played > 0
	      ORDER BY rating DESC, wins DESC, player_id ASC
	      LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlayerProfile
	for rows.Next() {
		var p domain.PlayerProfile
		if err := rows.Scan(
			&p.PlayerID, &p.DisplayName, &p.Rating, &p.GamesPlayed,
			&p.Wins, &p.Losses, &p.Streak, &p.StreakType,
			&p.LastPlayedAt, &p.UpdatedAt, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
