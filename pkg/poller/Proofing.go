package poller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

type SessionFetcher interface {
	GetSession(ctx context.Context, sessionID uint) (viewmodels.SessionView, error)
}

type AlbumFetcher interface {
	GetAlbum(ctx context.Context, albumID uint) (viewmodels.AlbumView, error)
}

/*
NewSessionPoller watches a session's status. Selection changes made in
this surface are applied locally, so only a status move needs a re-render.
*/
func NewSessionPoller(fetcher SessionFetcher, sessionID uint, interval time.Duration, onChange func(viewmodels.SessionView)) *Poller[viewmodels.SessionView] {
	return New(Config[viewmodels.SessionView]{
		Name:     fmt.Sprintf("session-%d", sessionID),
		Interval: interval,
		Fetch: func(ctx context.Context) (viewmodels.SessionView, error) {
			return fetcher.GetSession(ctx, sessionID)
		},
		Signal: func(state viewmodels.SessionView) string {
			return state.Status
		},
		OnChange: onChange,
	})
}

/*
NewAlbumPoller watches an album's version counter, which the server bumps on
every change a client can see.
*/
func NewAlbumPoller(fetcher AlbumFetcher, albumID uint, interval time.Duration, onChange func(viewmodels.AlbumView)) *Poller[viewmodels.AlbumView] {
	return New(Config[viewmodels.AlbumView]{
		Name:     fmt.Sprintf("album-%d", albumID),
		Interval: interval,
		Fetch: func(ctx context.Context) (viewmodels.AlbumView, error) {
			return fetcher.GetAlbum(ctx, albumID)
		},
		Signal: func(state viewmodels.AlbumView) string {
			return strconv.FormatInt(state.Version, 10)
		},
		OnChange: onChange,
	})
}
