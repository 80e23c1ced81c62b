package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adampresley/proofingdesk/pkg/poller"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSessions struct {
	mu        sync.Mutex
	responses []viewmodels.SessionView
	errs      []error
	calls     int
}

func (s *scriptedSessions) GetSession(ctx context.Context, sessionID uint) (viewmodels.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := min(s.calls, len(s.responses)-1)
	s.calls++

	return s.responses[index], s.errs[index]
}

type fixedAlbum struct {
	version atomic.Int64
}

func (f *fixedAlbum) GetAlbum(ctx context.Context, albumID uint) (viewmodels.AlbumView, error) {
	return viewmodels.AlbumView{ID: albumID, Version: f.version.Load()}, nil
}

func TestPollOnlyReportsSignalChanges(t *testing.T) {
	fetcher := &scriptedSessions{
		responses: []viewmodels.SessionView{
			{Status: "in_progress"},
			{Status: "in_progress", SelectedPhotoIDs: []uint{1}},
			{},
			{Status: "submitted"},
		},
		errs: []error{nil, nil, errors.New("connection refused"), nil},
	}

	rendered := []string{}
	p := poller.NewSessionPoller(fetcher, 1, time.Hour, func(view viewmodels.SessionView) {
		rendered = append(rendered, view.Status)
	})

	ctx := context.Background()

	assert.True(t, p.Poll(ctx))
	assert.False(t, p.Poll(ctx))
	assert.False(t, p.Poll(ctx))
	assert.True(t, p.Poll(ctx))

	assert.Equal(t, []string{"in_progress", "submitted"}, rendered)
}

func TestAlbumPollerWatchesVersion(t *testing.T) {
	fetcher := &fixedAlbum{}
	fetcher.version.Store(3)

	calls := 0
	p := poller.NewAlbumPoller(fetcher, 9, time.Hour, func(view viewmodels.AlbumView) {
		calls++
	})

	ctx := context.Background()

	p.Poll(ctx)
	p.Poll(ctx)
	fetcher.version.Store(4)
	p.Poll(ctx)

	assert.Equal(t, 2, calls)
}

func TestStartStop(t *testing.T) {
	var fetches atomic.Int32

	p := poller.New(poller.Config[int]{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			return int(fetches.Add(1)), nil
		},
		Signal: func(state int) string { return "same" },
	})

	require.False(t, p.Running())

	p.Start(context.Background())
	p.Start(context.Background())
	assert.True(t, p.Running())

	assert.Eventually(t, func() bool { return fetches.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())

	stoppedAt := fetches.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stoppedAt, fetches.Load())

	p.Stop()
}

func TestParentContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var fetches atomic.Int32

	p := poller.New(poller.Config[int]{
		Interval: 5 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			fetches.Add(1)
			return 0, nil
		},
		Signal: func(state int) string { return "" },
	})

	p.Start(ctx)
	assert.Eventually(t, func() bool { return fetches.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	p.Stop()

	stoppedAt := fetches.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stoppedAt, fetches.Load())
}

func TestStopFromOnChangeReturns(t *testing.T) {
	var p *poller.Poller[string]
	stopped := make(chan struct{})

	p = poller.New(poller.Config[string]{
		Name:     "self-stopping",
		Interval: time.Hour,
		Fetch:    func(ctx context.Context) (string, error) { return "v1", nil },
		Signal:   func(state string) string { return state },
		OnChange: func(state string) {
			p.Stop()
			close(stopped)
		},
	})

	p.Start(context.Background())

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop inside OnChange did not return")
	}

	assert.Eventually(t, func() bool { return !p.Running() }, time.Second, 10*time.Millisecond)
	p.Stop()
}
