package match

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const liveTTL = 24 * time.Hour

// Store mirrors running matches into Redis with a per-user index, so "am I
// already in a match" checks survive process restarts.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for match store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) Save(ctx context.Context, lr *LiveRecord) error {
	if s == nil || s.rdb == nil || lr == nil {
		return nil
	}
	raw, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, matchKey(lr.ID), raw, liveTTL).Err(); err != nil {
		return err
	}
	for _, uid := range lr.participantIDs() {
		key := idxUserKey(uid)
		if err := s.rdb.SAdd(ctx, key, lr.ID).Err(); err != nil {
			return err
		}
		// refresh index TTL alongside the record
		_ = s.rdb.Expire(ctx, key, liveTTL).Err()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*LiveRecord, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lr LiveRecord
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// ActiveByUser returns the most recently updated running match for a user,
// or nil when they are free.
func (s *Store) ActiveByUser(ctx context.Context, userID string) (*LiveRecord, error) {
	if s == nil || s.rdb == nil || strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*LiveRecord
	for _, id := range ids {
		lr, gerr := s.Get(ctx, id)
		if gerr == nil && lr != nil && lr.Status != "finished" {
			list = append(list, lr)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

// Remove drops the live record and unindexes its participants.
func (s *Store) Remove(ctx context.Context, lr *LiveRecord) error {
	if s == nil || s.rdb == nil || lr == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, matchKey(lr.ID)).Err(); err != nil {
		return err
	}
	for _, uid := range lr.participantIDs() {
		_ = s.rdb.SRem(ctx, idxUserKey(uid), lr.ID).Err()
	}
	return nil
}

func matchKey(id string) string    { return "pong:match:" + strings.TrimSpace(id) }
func idxUserKey(uid string) string { return "pong:index:user:" + strings.TrimSpace(uid) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// ParseRedisURL returns address, password, and db from REDIS_URL for callers
// that build their own client.
func ParseRedisURL(raw string) (addr, password string, db int, err error) {
	opts, e := parseRedisURL(raw)
	if e != nil {
		err = e
		return
	}
	return opts.Addr, opts.Password, opts.DB, nil
}
