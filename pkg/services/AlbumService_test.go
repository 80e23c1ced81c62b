package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAlbumIsDraft(t *testing.T) {
	f := newFixture(t)

	album, err := f.albums.Create(context.Background(), f.tenant.ID, services.NewAlbum{Name: "Wedding album"})
	require.NoError(t, err)

	assert.Equal(t, models.AlbumStatusDraft, album.Status())
	assert.Equal(t, int64(1), album.Version)
	assert.Nil(t, album.SentAt)
}

func TestSendAlbum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	album, err := f.albums.Create(ctx, f.tenant.ID, services.NewAlbum{Name: "Empty"})
	require.NoError(t, err)

	_, err = f.albums.Send(ctx, f.tenant.ID, album.ID)
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumHasNoSheets))

	sent := f.newSentAlbum(t, 2)
	assert.Equal(t, models.AlbumStatusSent, sent.Status())
	assert.NotNil(t, sent.SentAt)

	_, err = f.albums.Send(ctx, f.tenant.ID, sent.ID)
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumAlreadySent))
}

func TestSheetsAreSortedByPosition(t *testing.T) {
	f := newFixture(t)
	album := f.newSentAlbum(t, 4)

	require.Len(t, album.Sheets, 4)

	for i, sheet := range album.Sheets {
		assert.Equal(t, i, sheet.Position)
		assert.Equal(t, models.SheetStatusAwaitingReview, sheet.Status)
	}
}

func TestClientActionsOnDraftAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	album, err := f.albums.Create(ctx, f.tenant.ID, services.NewAlbum{Name: "Draft"})
	require.NoError(t, err)

	sheet, err := f.albums.AddSheet(ctx, f.tenant.ID, album.ID, services.NewSheet{ImageKey: "sheet.jpg"})
	require.NoError(t, err)

	_, err = f.albums.ApproveSheet(ctx, f.tenant.ID, album.ID, sheet.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.albums.ApproveAll(ctx, f.tenant.ID, album.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApproveSheetDerivesAlbumStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 2)

	got, err := f.albums.ApproveSheet(ctx, f.tenant.ID, album.ID, album.Sheets[0].ID)
	require.NoError(t, err)

	assert.Equal(t, models.SheetStatusApproved, got.Sheets[0].Status)
	assert.Equal(t, models.AlbumStatusInReview, got.Status())
	assert.Greater(t, got.Version, album.Version)

	again, err := f.albums.ApproveSheet(ctx, f.tenant.ID, album.ID, album.Sheets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)
}

func TestRequestRevisionNeedsComment(t *testing.T) {
	f := newFixture(t)
	album := f.newSentAlbum(t, 1)

	_, err := f.albums.RequestRevision(context.Background(), f.tenant.ID, album.ID, album.Sheets[0].ID, "  ")
	assert.ErrorIs(t, err, models.Validation(models.ReasonRevisionNeedsComment))
}

func TestRequestRevisionTwiceAppendsComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 1)
	sheetID := album.Sheets[0].ID

	_, err := f.albums.RequestRevision(ctx, f.tenant.ID, album.ID, sheetID, "trocar foto")
	require.NoError(t, err)

	got, err := f.albums.RequestRevision(ctx, f.tenant.ID, album.ID, sheetID, "e o fundo também")
	require.NoError(t, err)

	assert.Equal(t, models.SheetStatusRevisionRequested, got.Sheets[0].Status)
	assert.Equal(t, models.AlbumStatusRevisionRequested, got.Status())
	assert.Len(t, got.Sheets[0].Comments, 2)
	assert.Len(t, f.albumNotifications(t, album.ID, models.NotificationRevisionRequested), 2)
}

func TestApproveAllFromMixedSheets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 3)

	_, err := f.albums.ApproveSheet(ctx, f.tenant.ID, album.ID, album.Sheets[0].ID)
	require.NoError(t, err)

	_, err = f.albums.RequestRevision(ctx, f.tenant.ID, album.ID, album.Sheets[2].ID, "crop different")
	require.NoError(t, err)

	got, err := f.albums.ApproveAll(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)

	for _, sheet := range got.Sheets {
		assert.Equal(t, models.SheetStatusApproved, sheet.Status)
	}

	assert.Equal(t, models.AlbumStatusApproved, got.Status())
	assert.NotNil(t, got.ApprovedAt)
	assert.Len(t, f.albumNotifications(t, album.ID, models.NotificationAlbumApproved), 1)

	again, err := f.albums.ApproveAll(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)
	assert.Len(t, f.albumNotifications(t, album.ID, models.NotificationAlbumApproved), 1)

	_, err = f.albums.RequestRevision(ctx, f.tenant.ID, album.ID, album.Sheets[0].ID, "one more thing")
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumApproved))
}

func TestAlbumCommentThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 2)
	first, second := album.Sheets[0].ID, album.Sheets[1].ID

	_, err := f.albums.ApproveSheet(ctx, f.tenant.ID, album.ID, first)
	require.NoError(t, err)

	_, err = f.albums.RequestRevision(ctx, f.tenant.ID, album.ID, second, "crop different")
	require.NoError(t, err)

	got, err := f.albums.Get(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)
	require.Len(t, got.Sheets[1].Comments, 1)
	assert.Equal(t, models.SheetStatusRevisionRequested, got.Sheets[1].Status)
	assert.Equal(t, models.CommentAuthorClient, got.Sheets[1].Comments[0].Author)
	assert.Equal(t, "crop different", got.Sheets[1].Comments[0].Body)

	before := got.Version

	_, err = f.albums.AddComment(ctx, f.tenant.ID, album.ID, second, models.CommentAuthorAdmin, "New crop uploaded")
	require.NoError(t, err)

	got, err = f.albums.Get(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)
	require.Len(t, got.Sheets[1].Comments, 2)
	assert.Equal(t, models.CommentAuthorClient, got.Sheets[1].Comments[0].Author)
	assert.Equal(t, models.CommentAuthorAdmin, got.Sheets[1].Comments[1].Author)
	assert.Equal(t, models.SheetStatusRevisionRequested, got.Sheets[1].Status)
	assert.Greater(t, got.Version, before)
}

func TestAlbumAcrossTenantsIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 1)

	_, err := f.albums.ApproveSheet(ctx, f.otherTenant.ID, album.ID, album.Sheets[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.albums.Get(ctx, f.otherTenant.ID, album.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteAlbumRemovesAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	album := f.newSentAlbum(t, 2)

	require.NoError(t, f.albums.Delete(ctx, f.tenant.ID, album.ID))

	_, err := f.albums.Get(ctx, f.tenant.ID, album.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, f.assets.deleted, album.Sheets[0].ImageKey)
	assert.Contains(t, f.assets.deleted, album.Sheets[1].ImageKey)
}

/*
albumsApprovedMidway returns an AlbumService whose first clock read approves
the whole album through the fixture's service. That lands the approval after
the status check of the call under test and before its transaction.
*/
func albumsApprovedMidway(t *testing.T, f *fixture, albumID uint) services.AlbumService {
	t.Helper()
	once := sync.Once{}

	return services.NewAlbumService(services.AlbumServiceConfig{
		AccessService: f.access,
		Assets:        f.assets,
		DB:            f.db,
		Notifications: f.notifications,
		Now: func() time.Time {
			once.Do(func() {
				_, err := f.albums.ApproveAll(context.Background(), f.tenant.ID, albumID)
				require.NoError(t, err)
			})

			return f.clock.Now()
		},
	})
}

func requireFullyApproved(t *testing.T, f *fixture, albumID uint, sheets int) *models.Album {
	t.Helper()

	got, err := f.albums.Get(context.Background(), f.tenant.ID, albumID)
	require.NoError(t, err)
	require.Len(t, got.Sheets, sheets)
	assert.Equal(t, models.AlbumStatusApproved, got.Status())
	assert.NotNil(t, got.ApprovedAt)

	for _, sheet := range got.Sheets {
		assert.Equal(t, models.SheetStatusApproved, sheet.Status)
	}

	return got
}

func TestRevisionRacingApproveAllIsRejected(t *testing.T) {
	f := newFixture(t)
	album := f.newSentAlbum(t, 2)
	racing := albumsApprovedMidway(t, f, album.ID)

	_, err := racing.RequestRevision(context.Background(), f.tenant.ID, album.ID, album.Sheets[1].ID, "trocar foto")
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumApproved))

	got := requireFullyApproved(t, f, album.ID, 2)
	assert.Empty(t, got.Sheets[1].Comments)
	assert.Empty(t, f.albumNotifications(t, album.ID, models.NotificationRevisionRequested))
}

func TestApproveSheetRacingApproveAllIsRejected(t *testing.T) {
	f := newFixture(t)
	album := f.newSentAlbum(t, 2)
	racing := albumsApprovedMidway(t, f, album.ID)

	_, err := racing.ApproveSheet(context.Background(), f.tenant.ID, album.ID, album.Sheets[0].ID)
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumApproved))

	requireFullyApproved(t, f, album.ID, 2)
}

func TestAddSheetRacingApproveAllIsRejected(t *testing.T) {
	f := newFixture(t)
	album := f.newSentAlbum(t, 2)
	racing := albumsApprovedMidway(t, f, album.ID)

	_, err := racing.AddSheet(context.Background(), f.tenant.ID, album.ID, services.NewSheet{ImageKey: "late.jpg"})
	assert.ErrorIs(t, err, models.InvalidTransition(models.ReasonAlbumApproved))

	requireFullyApproved(t, f, album.ID, 2)
}
