package statsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/stats"
)

func TestPingSendsHeaders(t *testing.T) {
	var gotToken atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get("X-Platform-Token"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Platform-Token": "secret"}
	}))
	require.NoError(t, c.Ping(context.Background()))
	require.Equal(t, "secret", gotToken.Load())
}

func TestReportResultRetriesTransientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var report ResultReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		require.Equal(t, "m1", report.MatchID)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithRetry(3))
	err := c.ReportResult(context.Background(), ResultReport{MatchID: "m1", WinnerID: "u1", Method: "score"})
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestReportResultGivesUpOnClientError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithRetry(3))
	err := c.ReportResult(context.Background(), ResultReport{MatchID: "m1"})
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

type fakeFeed struct {
	mu      sync.Mutex
	evCbs   []EventCallback
	stateCb []StateCallback
}

func (f *fakeFeed) Connect(context.Context) error { return nil }
func (f *fakeFeed) OnEvent(cb EventCallback) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evCbs = append(f.evCbs, cb)
	return len(f.evCbs)
}
func (f *fakeFeed) RemoveEventCallback(int) {}
func (f *fakeFeed) OnStateChange(cb StateCallback) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCb = append(f.stateCb, cb)
	return len(f.stateCb)
}
func (f *fakeFeed) RemoveStateCallback(int)     {}
func (f *fakeFeed) Close(context.Context) error { return nil }

func (f *fakeFeed) emit(ev *Event) {
	f.mu.Lock()
	cbs := append([]EventCallback(nil), f.evCbs...)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

func TestAbortEventStopsMatch(t *testing.T) {
	presets, err := engine.LoadPresets("")
	require.NoError(t, err)
	repo := stats.NewMemRepo()
	matches := match.NewManager(presets, nil, 10, time.Second)
	matches.AttachRecorder(stats.NewRecorder(repo))
	t.Cleanup(matches.Shutdown)

	m, err := matches.Create(context.Background(), "classic",
		match.Player{ID: "u1", Name: "Ana"},
		match.Player{ID: "u2", Name: "Bo"},
	)
	require.NoError(t, err)
	require.NoError(t, m.Eng.Start())

	r := NewReporter(nil, matches)
	feed := &fakeFeed{}
	r.AttachFeed(feed)

	feed.emit(&Event{Type: "abort_match", MatchID: m.ID})

	_, err = matches.Get(m.ID)
	require.ErrorIs(t, err, match.ErrMatchNotFound)

	// aborted matches are stored but never move profiles
	recs, err := repo.RecentMatches(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "abort", recs[0].ResultMethod)
	p, err := repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestReconnectBackoffScalesFromConfiguredDelay(t *testing.T) {
	feed := NewWebSocket("ws://localhost:0", 5, 200*time.Millisecond)
	require.Equal(t, 200*time.Millisecond, feed.reconnectBackoff(1))
	require.Equal(t, 800*time.Millisecond, feed.reconnectBackoff(3))
	require.Equal(t, 6400*time.Millisecond, feed.reconnectBackoff(9)) // capped

	// a non-positive delay falls back to one second
	feed = NewWebSocket("ws://localhost:0", 5, 0)
	require.Equal(t, time.Second, feed.reconnectBackoff(1))
}
