package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/poller"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

const (
	ActionTogglePhoto     = "toggle-photo"
	ActionSubmitSelection = "submit-selection"
	ActionRequestReopen   = "request-reopen"
	ActionCommentPhoto    = "comment-photo"
)

type SessionClient interface {
	poller.SessionFetcher
	ToggleSelection(ctx context.Context, sessionID, photoID uint) (viewmodels.SessionView, error)
	SubmitSelection(ctx context.Context, sessionID uint) (viewmodels.SessionView, error)
	RequestReopen(ctx context.Context, sessionID uint) error
	CommentOnPhoto(ctx context.Context, sessionID, photoID uint, body string) (viewmodels.CommentView, error)
}

type SessionSurfaceConfig struct {
	Client       SessionClient
	SessionID    uint
	PollInterval time.Duration
	Render       func(state viewmodels.SessionView)
	OnError      func(message string)
}

/*
SessionSurface is the client side of a selection session: local state, the
actions its controls dispatch, and a poller that picks up status changes
made by the studio.
*/
type SessionSurface struct {
	client    SessionClient
	sessionID uint
	store     *Store[viewmodels.SessionView]
	poller    *poller.Poller[viewmodels.SessionView]
	actions   *Actions
	onError   func(message string)
}

func NewSessionSurface(ctx context.Context, config SessionSurfaceConfig) (*SessionSurface, error) {
	initial, err := config.Client.GetSession(ctx, config.SessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading session %d: %w", config.SessionID, err)
	}

	s := &SessionSurface{
		client:    config.Client,
		sessionID: config.SessionID,
		store:     NewStore(initial, config.Render),
		actions:   NewActions(),
		onError:   config.OnError,
	}

	if s.onError == nil {
		s.onError = func(string) {}
	}

	s.poller = poller.NewSessionPoller(config.Client, config.SessionID, config.PollInterval, s.store.Replace)

	_ = s.actions.Register(ActionTogglePhoto, s.report(s.togglePhoto))
	_ = s.actions.Register(ActionSubmitSelection, s.report(s.submit))
	_ = s.actions.Register(ActionRequestReopen, s.report(s.requestReopen))
	_ = s.actions.Register(ActionCommentPhoto, s.report(s.comment))

	s.store.render(initial)
	return s, nil
}

func (s *SessionSurface) Actions() *Actions {
	return s.actions
}

func (s *SessionSurface) State() viewmodels.SessionView {
	return s.store.State()
}

func (s *SessionSurface) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

/*
Stop tears the surface down. No new poll starts after it returns, and it
may be called from a render callback.
*/
func (s *SessionSurface) Stop() {
	s.poller.Stop()
}

func (s *SessionSurface) report(handler Handler) Handler {
	return func(ctx context.Context, args Args) error {
		err := handler(ctx, args)

		if err != nil {
			s.onError(UserMessage(err))
		}

		return err
	}
}

func (s *SessionSurface) togglePhoto(ctx context.Context, args Args) error {
	photoID, err := args.Uint("photoId")
	if err != nil {
		return err
	}

	was := slices.IsInSlice(photoID, s.store.State().SelectedPhotoIDs)

	return s.store.Run(ctx, Command[viewmodels.SessionView]{
		Name: ActionTogglePhoto,
		Apply: func(state viewmodels.SessionView) viewmodels.SessionView {
			return withSelection(state, photoID, !was)
		},
		Revert: func(state viewmodels.SessionView) viewmodels.SessionView {
			return withSelection(state, photoID, was)
		},
		Send: func(ctx context.Context) (viewmodels.SessionView, error) {
			return s.client.ToggleSelection(ctx, s.sessionID, photoID)
		},
	})
}

func (s *SessionSurface) submit(ctx context.Context, args Args) error {
	result, err := s.client.SubmitSelection(ctx, s.sessionID)
	if err != nil {
		return err
	}

	s.store.Replace(result)
	return nil
}

func (s *SessionSurface) requestReopen(ctx context.Context, args Args) error {
	return s.client.RequestReopen(ctx, s.sessionID)
}

func (s *SessionSurface) comment(ctx context.Context, args Args) error {
	photoID, err := args.Uint("photoId")
	if err != nil {
		return err
	}

	if _, err = s.client.CommentOnPhoto(ctx, s.sessionID, photoID, args.String("body")); err != nil {
		return err
	}

	return s.refresh(ctx)
}

func (s *SessionSurface) refresh(ctx context.Context) error {
	state, err := s.client.GetSession(ctx, s.sessionID)
	if err != nil {
		return err
	}

	s.store.Replace(state)
	return nil
}

/*
withSelection returns a copy of state with photoID marked as selected or
not. Extra counts are left to the server's answer.
*/
func withSelection(state viewmodels.SessionView, photoID uint, selected bool) viewmodels.SessionView {
	ids := make([]uint, 0, len(state.SelectedPhotoIDs)+1)

	for _, id := range state.SelectedPhotoIDs {
		if id != photoID {
			ids = append(ids, id)
		}
	}

	if selected {
		ids = append(ids, photoID)
	}

	photos := make([]viewmodels.PhotoView, len(state.Photos))
	copy(photos, state.Photos)

	for i := range photos {
		if photos[i].ID == photoID {
			photos[i].Selected = selected
		}
	}

	state.SelectedPhotoIDs = ids
	state.SelectedCount = len(ids)
	state.Photos = photos
	return state
}
