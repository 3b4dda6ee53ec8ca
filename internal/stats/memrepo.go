package stats

import (
	"context"
	"sort"
	"sync"

	"github.com/arenalab/pong-arena/internal/domain"
)

// MemRepo is an in-memory Repository used when no database is configured
// and as a test double.
type MemRepo struct {
	mu       sync.RWMutex
	matches  map[string]domain.MatchRecord
	profiles map[string]domain.PlayerProfile
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		matches:  make(map[string]domain.MatchRecord),
		profiles: make(map[string]domain.PlayerProfile),
	}
}

func (m *MemRepo) SaveMatch(_ context.Context, rec *domain.MatchRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[rec.ID] = *rec
	return nil
}

func (m *MemRepo) RecentMatches(_ context.Context, limit int) ([]domain.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MatchRecord, 0, len(m.matches))
	for _, rec := range m.matches {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemRepo) GetProfile(_ context.Context, playerID string) (*domain.PlayerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[playerID]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MemRepo) UpsertProfile(_ context.Context, p *domain.PlayerProfile) error {
	if p == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.PlayerID] = *p
	return nil
}

func (m *MemRepo) Leaderboard(_ context.Context, limit int) ([]domain.PlayerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PlayerProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemRepo) Close() error { return nil }
