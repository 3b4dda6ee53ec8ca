// Package stats persists finished match results and maintains player
// profiles and the leaderboard.
package stats

import (
	"context"
	"errors"

	"github.com/arenalab/pong-arena/internal/domain"
)

var (
	ErrNilRecord = errors.New("nil match record")
)

// Repository stores match records and player profiles. Implementations:
// Postgres for deployments, memory for development and tests.
type Repository interface {
	SaveMatch(ctx context.Context, rec *domain.MatchRecord) error
	RecentMatches(ctx context.Context, limit int) ([]domain.MatchRecord, error)

	GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error
	Leaderboard(ctx context.Context, limit int) ([]domain.PlayerProfile, error)

	Close() error
}
