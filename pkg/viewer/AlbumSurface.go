package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/poller"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

const (
	ActionApproveSheet    = "approve-sheet"
	ActionRequestRevision = "request-revision"
	ActionApproveAll      = "approve-all"
	ActionCommentSheet    = "comment-sheet"
)

type AlbumClient interface {
	poller.AlbumFetcher
	ApproveSheet(ctx context.Context, albumID, sheetID uint) (viewmodels.AlbumView, error)
	RequestRevision(ctx context.Context, albumID, sheetID uint, comment string) (viewmodels.AlbumView, error)
	ApproveAll(ctx context.Context, albumID uint) (viewmodels.AlbumView, error)
	CommentOnSheet(ctx context.Context, albumID, sheetID uint, body string) (viewmodels.CommentView, error)
}

type AlbumSurfaceConfig struct {
	Client       AlbumClient
	AlbumID      uint
	PollInterval time.Duration
	Render       func(state viewmodels.AlbumView)
	OnError      func(message string)
}

/*
AlbumSurface is the client side of an album review. Its poller watches the
album version, so studio comments and new sheets show up without a reload.
*/
type AlbumSurface struct {
	client  AlbumClient
	albumID uint
	store   *Store[viewmodels.AlbumView]
	poller  *poller.Poller[viewmodels.AlbumView]
	actions *Actions
	onError func(message string)
}

func NewAlbumSurface(ctx context.Context, config AlbumSurfaceConfig) (*AlbumSurface, error) {
	initial, err := config.Client.GetAlbum(ctx, config.AlbumID)
	if err != nil {
		return nil, fmt.Errorf("error loading album %d: %w", config.AlbumID, err)
	}

	a := &AlbumSurface{
		client:  config.Client,
		albumID: config.AlbumID,
		store:   NewStore(initial, config.Render),
		actions: NewActions(),
		onError: config.OnError,
	}

	if a.onError == nil {
		a.onError = func(string) {}
	}

	a.poller = poller.NewAlbumPoller(config.Client, config.AlbumID, config.PollInterval, a.store.Replace)

	_ = a.actions.Register(ActionApproveSheet, a.report(a.approveSheet))
	_ = a.actions.Register(ActionRequestRevision, a.report(a.requestRevision))
	_ = a.actions.Register(ActionApproveAll, a.report(a.approveAll))
	_ = a.actions.Register(ActionCommentSheet, a.report(a.comment))

	a.store.render(initial)
	return a, nil
}

func (a *AlbumSurface) Actions() *Actions {
	return a.actions
}

func (a *AlbumSurface) State() viewmodels.AlbumView {
	return a.store.State()
}

func (a *AlbumSurface) Start(ctx context.Context) {
	a.poller.Start(ctx)
}

func (a *AlbumSurface) Stop() {
	a.poller.Stop()
}

func (a *AlbumSurface) report(handler Handler) Handler {
	return func(ctx context.Context, args Args) error {
		err := handler(ctx, args)

		if err != nil {
			a.onError(UserMessage(err))
		}

		return err
	}
}

func (a *AlbumSurface) approveSheet(ctx context.Context, args Args) error {
	sheetID, err := args.Uint("sheetId")
	if err != nil {
		return err
	}

	before := a.store.State()

	return a.store.Run(ctx, Command[viewmodels.AlbumView]{
		Name: ActionApproveSheet,
		Apply: func(state viewmodels.AlbumView) viewmodels.AlbumView {
			return withSheetStatus(state, func(sheet viewmodels.SheetView) string {
				if sheet.ID == sheetID {
					return string(models.SheetStatusApproved)
				}

				return sheet.Status
			})
		},
		Revert: restoreSheets(before),
		Send: func(ctx context.Context) (viewmodels.AlbumView, error) {
			return a.client.ApproveSheet(ctx, a.albumID, sheetID)
		},
	})
}

func (a *AlbumSurface) requestRevision(ctx context.Context, args Args) error {
	sheetID, err := args.Uint("sheetId")
	if err != nil {
		return err
	}

	result, err := a.client.RequestRevision(ctx, a.albumID, sheetID, args.String("comment"))
	if err != nil {
		return err
	}

	a.store.Replace(result)
	return nil
}

func (a *AlbumSurface) approveAll(ctx context.Context, args Args) error {
	before := a.store.State()

	return a.store.Run(ctx, Command[viewmodels.AlbumView]{
		Name: ActionApproveAll,
		Apply: func(state viewmodels.AlbumView) viewmodels.AlbumView {
			state = withSheetStatus(state, func(viewmodels.SheetView) string {
				return string(models.SheetStatusApproved)
			})

			state.Status = string(models.AlbumStatusApproved)
			return state
		},
		Revert: restoreSheets(before),
		Send: func(ctx context.Context) (viewmodels.AlbumView, error) {
			return a.client.ApproveAll(ctx, a.albumID)
		},
	})
}

func (a *AlbumSurface) comment(ctx context.Context, args Args) error {
	sheetID, err := args.Uint("sheetId")
	if err != nil {
		return err
	}

	if _, err = a.client.CommentOnSheet(ctx, a.albumID, sheetID, args.String("body")); err != nil {
		return err
	}

	state, err := a.client.GetAlbum(ctx, a.albumID)
	if err != nil {
		return err
	}

	a.store.Replace(state)
	return nil
}

/*
withSheetStatus returns a copy of state with each sheet's status replaced
by status(sheet) and the album status derived again.
*/
func withSheetStatus(state viewmodels.AlbumView, status func(sheet viewmodels.SheetView) string) viewmodels.AlbumView {
	state.Sheets = slices.Map(state.Sheets, func(sheet viewmodels.SheetView, index int) viewmodels.SheetView {
		sheet.Status = status(sheet)
		return sheet
	})

	sheets := slices.Map(state.Sheets, func(sheet viewmodels.SheetView, index int) models.Sheet {
		return models.Sheet{Status: models.SheetStatus(sheet.Status)}
	})

	state.Status = string(models.DeriveAlbumStatus(state.SentAt != nil, state.ApprovedAt != nil, sheets))
	return state
}

func restoreSheets(before viewmodels.AlbumView) func(viewmodels.AlbumView) viewmodels.AlbumView {
	statuses := map[uint]string{}

	for _, sheet := range before.Sheets {
		statuses[sheet.ID] = sheet.Status
	}

	return func(state viewmodels.AlbumView) viewmodels.AlbumView {
		state = withSheetStatus(state, func(sheet viewmodels.SheetView) string {
			if previous, ok := statuses[sheet.ID]; ok {
				return previous
			}

			return sheet.Status
		})

		state.Status = before.Status
		return state
	}
}
