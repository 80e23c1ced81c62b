package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/rfberaldo/sqlz"
)

type AlbumServicer interface {
	AddComment(ctx context.Context, tenantID, albumID, sheetID uint, author models.CommentAuthor, body string) (*models.Comment, error)
	AddSheet(ctx context.Context, tenantID, albumID uint, input NewSheet) (*models.Sheet, error)
	ApproveAll(ctx context.Context, tenantID, albumID uint) (*models.Album, error)
	ApproveSheet(ctx context.Context, tenantID, albumID, sheetID uint) (*models.Album, error)
	Create(ctx context.Context, tenantID uint, input NewAlbum) (*models.Album, error)
	Delete(ctx context.Context, tenantID, albumID uint) error
	Get(ctx context.Context, tenantID, albumID uint) (*models.Album, error)
	List(ctx context.Context, tenantID uint) ([]*models.Album, error)
	RequestRevision(ctx context.Context, tenantID, albumID, sheetID uint, comment string) (*models.Album, error)
	Send(ctx context.Context, tenantID, albumID uint) (*models.Album, error)
}

type NewAlbum struct {
	Name        string `validate:"required,max=200"`
	ClientRef   string `validate:"max=200"`
	WelcomeText string `validate:"max=4000"`
}

type NewSheet struct {
	ImageKey string `validate:"required,max=1024"`
}

type AlbumServiceConfig struct {
	AccessService AccessServicer
	Assets        AssetServicer
	DB            *sqlz.DB
	Notifications NotificationServicer
	Now           func() time.Time
}

type AlbumService struct {
	accessService AccessServicer
	assets        AssetServicer
	db            *sqlz.DB
	notifications NotificationServicer
	now           func() time.Time
}

const albumColumns = `
   a.id
   , a.created_at
   , a.updated_at
   , a.tenant_id
   , a.client_ref
   , a.access_code
   , a.name
   , a.welcome_text
   , a.version
   , a.sent_at
   , a.approved_at
   , a.is_active
`

/*
bumpAlbumSql advances the version counter pollers watch. Every write a
client could observe runs it in the same unit of work.
*/
const bumpAlbumSql = `UPDATE albums SET version=version+1, updated_at=? WHERE id=?`

/*
openSheetSql changes a sheet only while its album is still unapproved, so
a sheet write racing approve-all finds no row instead of undoing it.
*/
const openSheetSql = `
UPDATE album_sheets SET
   status=?
   , updated_at=?
WHERE 1=1
   AND id=?
   AND album_id IN (SELECT a.id FROM albums AS a WHERE a.id=? AND a.tenant_id=? AND a.approved_at IS NULL)
`

var errAlbumClosed = errors.New("album no longer open for review")

func NewAlbumService(config AlbumServiceConfig) AlbumService {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return AlbumService{
		accessService: config.AccessService,
		assets:        config.Assets,
		db:            config.DB,
		notifications: config.Notifications,
		now:           now,
	}
}

/*
AddComment appends to a sheet's thread. Comments never move the sheet or the
album to another status. The client may only comment on a sent album.
*/
func (s AlbumService) AddComment(ctx context.Context, tenantID, albumID, sheetID uint, author models.CommentAuthor, body string) (*models.Comment, error) {
	var (
		err   error
		album *models.Album
	)

	body = strings.TrimSpace(body)

	if body == "" {
		return nil, models.Validation("comment cannot be empty")
	}

	if !author.Valid() {
		return nil, models.Validation("unknown comment author")
	}

	if album, err = s.Get(ctx, tenantID, albumID); err != nil {
		return nil, err
	}

	if findSheet(album, sheetID) == nil {
		return nil, models.NotFound("sheet not found")
	}

	if author == models.CommentAuthorClient && album.SentAt == nil {
		return nil, models.NotFound(models.ReasonCodeInvalid)
	}

	now := s.now().UTC().Truncate(time.Second)
	comment := &models.Comment{
		SubjectType: models.CommentSubjectSheet,
		SubjectID:   sheetID,
		Author:      author,
		Body:        body,
		CreatedAt:   now,
	}

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		id, err := insertComment(ctx, tx, comment)
		comment.ID = id
		return err
	})

	if err != nil {
		return nil, err
	}

	return comment, nil
}

func (s AlbumService) AddSheet(ctx context.Context, tenantID, albumID uint, input NewSheet) (*models.Sheet, error) {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.Get(ctx, tenantID, albumID); err != nil {
		return nil, err
	}

	if album.IsFinalized() {
		return nil, models.InvalidTransition(models.ReasonAlbumApproved)
	}

	sql := `
INSERT INTO album_sheets (
   album_id
   , image_key
   , position
   , status
   , created_at
   , updated_at
)
SELECT
   a.id
   , ?
   , COALESCE((SELECT MAX(sh.position) + 1 FROM album_sheets AS sh WHERE sh.album_id=a.id), 0)
   , 'awaiting_review'
   , ?
   , ?
FROM albums AS a
WHERE 1=1
   AND a.id=?
   AND a.tenant_id=?
   AND a.approved_at IS NULL
`

	now := database.Timestamp(s.now())
	var sheetID int64

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		result, err := tx.Exec(ctx, sql, strings.TrimSpace(input.ImageKey), now, now, albumID, tenantID)
		if err != nil {
			return models.Transient(err, "error adding sheet to album %d", albumID)
		}

		if rowsAffected(result) == 0 {
			return errAlbumClosed
		}

		sheetID, _ = result.LastInsertId()
		return nil
	})

	if errors.Is(err, errAlbumClosed) {
		return nil, s.closedReason(ctx, tenantID, albumID)
	}

	if err != nil {
		return nil, err
	}

	if album, err = s.Get(ctx, tenantID, albumID); err != nil {
		return nil, err
	}

	if sheet := findSheet(album, uint(sheetID)); sheet != nil {
		return sheet, nil
	}

	return nil, models.NotFound("sheet not found")
}

/*
ApproveAll forces every sheet to approved and stamps the album approved in
one transaction. Approving an already approved album returns it unchanged.
*/
func (s AlbumService) ApproveAll(ctx context.Context, tenantID, albumID uint) (*models.Album, error) {
	var (
		err      error
		album    *models.Album
		emitted  models.Notification
		recorded bool
	)

	if album, err = s.sentAlbum(ctx, tenantID, albumID); err != nil {
		return nil, err
	}

	if album.IsFinalized() {
		return album, nil
	}

	if len(album.Sheets) == 0 {
		return nil, models.InvalidTransition(models.ReasonAlbumHasNoSheets)
	}

	now := database.Timestamp(s.now())

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		result, err := tx.Exec(ctx, `UPDATE albums SET approved_at=? WHERE id=? AND tenant_id=? AND approved_at IS NULL`, now, albumID, tenantID)
		if err != nil {
			return models.Transient(err, "error approving album %d", albumID)
		}

		if rowsAffected(result) == 0 {
			return errAlreadyApplied
		}

		if _, err = tx.Exec(ctx, `UPDATE album_sheets SET status='approved', updated_at=? WHERE album_id=?`, now, albumID); err != nil {
			return models.Transient(err, "error approving sheets of album %d", albumID)
		}

		emitted, recorded = s.notifications.EmitInTx(ctx, tx, models.AlbumNotification(
			album,
			models.NotificationAlbumApproved,
			fmt.Sprintf("The client approved album '%s'", album.Name),
		))

		return nil
	})

	if err != nil && !errors.Is(err, errAlreadyApplied) {
		return nil, err
	}

	if recorded {
		s.notifications.Mirror(emitted)
	}

	return s.Get(ctx, tenantID, albumID)
}

/*
ApproveSheet marks one sheet approved. Approving it again changes nothing
and does not bump the version.
*/
func (s AlbumService) ApproveSheet(ctx context.Context, tenantID, albumID, sheetID uint) (*models.Album, error) {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.sheetAction(ctx, tenantID, albumID, sheetID); err != nil {
		return nil, err
	}

	if findSheet(album, sheetID).Status == models.SheetStatusApproved {
		return album, nil
	}

	now := database.Timestamp(s.now())

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		return setOpenSheetStatus(ctx, tx, tenantID, albumID, sheetID, models.SheetStatusApproved, now)
	})

	if errors.Is(err, errAlbumClosed) {
		return nil, s.closedReason(ctx, tenantID, albumID)
	}

	if err != nil {
		return nil, err
	}

	return s.Get(ctx, tenantID, albumID)
}

/*
Create stores a draft album. The access code is generated up front but
resolves for the client only once the album is sent.
*/
func (s AlbumService) Create(ctx context.Context, tenantID uint, input NewAlbum) (*models.Album, error) {
	var (
		err  error
		code string
		id   int64
	)

	sql := `
INSERT INTO albums (
   tenant_id
   , client_ref
   , access_code
   , name
   , welcome_text
   , created_at
   , updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

	now := database.Timestamp(s.now())

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if code, err = s.accessService.GenerateCode(); err != nil {
			return nil, err
		}

		insertCtx, cancel := withTimeout(ctx)
		result, insertErr := s.db.Exec(insertCtx, sql, tenantID, strings.TrimSpace(input.ClientRef), code, strings.TrimSpace(input.Name), input.WelcomeText, now, now)
		cancel()

		err = insertErr

		if err == nil {
			id, _ = result.LastInsertId()
			return s.Get(ctx, tenantID, uint(id))
		}

		if !database.IsUniqueViolation(err) {
			return nil, models.Transient(err, "error inserting album for tenant %d", tenantID)
		}

		slog.Warn("access code collision, generating another", "tenantID", tenantID, "attempt", attempt)
	}

	return nil, models.Transient(err, "could not generate a unique access code for tenant %d", tenantID)
}

func (s AlbumService) Delete(ctx context.Context, tenantID, albumID uint) error {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.Get(ctx, tenantID, albumID); err != nil {
		return err
	}

	keys := make([]string, 0, len(album.Sheets))

	for _, sheet := range album.Sheets {
		keys = append(keys, sheet.ImageKey)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Transient(err, "error starting delete of album %d", albumID)
	}

	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM comments WHERE subject_type='sheet' AND subject_id IN (SELECT id FROM album_sheets WHERE album_id=?)`,
		`DELETE FROM album_sheets WHERE album_id=?`,
		`DELETE FROM albums WHERE id=?`,
	}

	for _, statement := range statements {
		if _, err = tx.Exec(ctx, statement, albumID); err != nil {
			return models.Transient(err, "error deleting album %d", albumID)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Transient(err, "error committing delete of album %d", albumID)
	}

	if s.assets != nil {
		if err = s.assets.Delete(keys); err != nil {
			slog.Error("error removing album assets", "albumID", albumID, "error", err)
		}
	}

	return nil
}

/*
Get loads an album with its sheets sorted by position and every sheet's
comment thread in the order it was written.
*/
func (s AlbumService) Get(ctx context.Context, tenantID, albumID uint) (*models.Album, error) {
	var (
		err      error
		comments []models.Comment
	)

	result := &models.Album{}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sql := `SELECT ` + albumColumns + ` FROM albums AS a WHERE a.id=? AND a.tenant_id=?`

	if err = s.db.QueryRow(ctx, result, sql, albumID, tenantID); err != nil {
		return nil, storageError(err, "album not found", "error querying for album %d, tenant %d", albumID, tenantID)
	}

	sql = `
SELECT
   sh.id
   , sh.created_at
   , sh.updated_at
   , sh.album_id
   , sh.image_key
   , sh.position
   , sh.status
FROM album_sheets AS sh
WHERE 1=1
   AND sh.album_id=?
ORDER BY sh.position, sh.id
`

	if err = queryAll(ctx, s.db, &result.Sheets, sql, albumID); err != nil {
		return nil, models.Transient(err, "error querying sheets for album %d", albumID)
	}

	sql = `
SELECT
   c.id
   , c.subject_type
   , c.subject_id
   , c.author
   , c.body
   , c.created_at
FROM comments AS c
   INNER JOIN album_sheets AS sh ON sh.id=c.subject_id
WHERE 1=1
   AND c.subject_type='sheet'
   AND sh.album_id=?
ORDER BY c.created_at, c.id
`

	if err = queryAll(ctx, s.db, &comments, sql, albumID); err != nil {
		return nil, models.Transient(err, "error querying sheet comments for album %d", albumID)
	}

	bySheet := map[uint][]models.Comment{}

	for _, comment := range comments {
		bySheet[comment.SubjectID] = append(bySheet[comment.SubjectID], comment)
	}

	for index := range result.Sheets {
		result.Sheets[index].Comments = bySheet[result.Sheets[index].ID]
	}

	return result, nil
}

func (s AlbumService) List(ctx context.Context, tenantID uint) ([]*models.Album, error) {
	result := []*models.Album{}

	sql := `
SELECT ` + albumColumns + `
FROM albums AS a
WHERE 1=1
   AND a.tenant_id=?
ORDER BY a.created_at DESC, a.id DESC
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := queryAll(ctx, s.db, &result, sql, tenantID); err != nil {
		return nil, models.Transient(err, "error querying albums for tenant %d", tenantID)
	}

	return result, nil
}

/*
RequestRevision flags a sheet and records the client's comment in one
transaction. Asking again on a flagged sheet appends another comment.
*/
func (s AlbumService) RequestRevision(ctx context.Context, tenantID, albumID, sheetID uint, comment string) (*models.Album, error) {
	var (
		err      error
		album    *models.Album
		emitted  models.Notification
		recorded bool
	)

	comment = strings.TrimSpace(comment)

	if comment == "" {
		return nil, models.Validation(models.ReasonRevisionNeedsComment)
	}

	if album, err = s.sheetAction(ctx, tenantID, albumID, sheetID); err != nil {
		return nil, err
	}

	sheet := findSheet(album, sheetID)
	now := s.now().UTC().Truncate(time.Second)

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		if err := setOpenSheetStatus(ctx, tx, tenantID, albumID, sheetID, models.SheetStatusRevisionRequested, database.Timestamp(now)); err != nil {
			return err
		}

		if _, err := insertComment(ctx, tx, &models.Comment{
			SubjectType: models.CommentSubjectSheet,
			SubjectID:   sheetID,
			Author:      models.CommentAuthorClient,
			Body:        comment,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		emitted, recorded = s.notifications.EmitInTx(ctx, tx, models.AlbumNotification(
			album,
			models.NotificationRevisionRequested,
			fmt.Sprintf("The client asked for changes on page %d of album '%s': %s", sheet.Position+1, album.Name, comment),
		))

		return nil
	})

	if errors.Is(err, errAlbumClosed) {
		return nil, s.closedReason(ctx, tenantID, albumID)
	}

	if err != nil {
		return nil, err
	}

	if recorded {
		s.notifications.Mirror(emitted)
	}

	return s.Get(ctx, tenantID, albumID)
}

/*
Send releases a draft album to the client. It needs at least one sheet and
happens once.
*/
func (s AlbumService) Send(ctx context.Context, tenantID, albumID uint) (*models.Album, error) {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.Get(ctx, tenantID, albumID); err != nil {
		return nil, err
	}

	if album.SentAt != nil {
		return nil, models.InvalidTransition(models.ReasonAlbumAlreadySent)
	}

	if len(album.Sheets) == 0 {
		return nil, models.InvalidTransition(models.ReasonAlbumHasNoSheets)
	}

	now := database.Timestamp(s.now())

	err = s.inTx(ctx, albumID, func(ctx context.Context, tx *sqlz.Tx) error {
		result, err := tx.Exec(ctx, `UPDATE albums SET sent_at=? WHERE id=? AND tenant_id=? AND sent_at IS NULL`, now, albumID, tenantID)
		if err != nil {
			return models.Transient(err, "error sending album %d", albumID)
		}

		if rowsAffected(result) == 0 {
			return models.InvalidTransition(models.ReasonAlbumAlreadySent)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return s.Get(ctx, tenantID, albumID)
}

/*
sentAlbum loads an album the client is allowed to act on. A draft is not
visible to the client at all.
*/
func (s AlbumService) sentAlbum(ctx context.Context, tenantID, albumID uint) (*models.Album, error) {
	album, err := s.Get(ctx, tenantID, albumID)
	if err != nil {
		return nil, err
	}

	if album.SentAt == nil || !album.IsActive {
		return nil, models.NotFound(models.ReasonCodeInvalid)
	}

	return album, nil
}

func (s AlbumService) sheetAction(ctx context.Context, tenantID, albumID, sheetID uint) (*models.Album, error) {
	album, err := s.sentAlbum(ctx, tenantID, albumID)
	if err != nil {
		return nil, err
	}

	if findSheet(album, sheetID) == nil {
		return nil, models.NotFound("sheet not found")
	}

	if album.IsFinalized() {
		return nil, models.InvalidTransition(models.ReasonAlbumApproved)
	}

	return album, nil
}

/*
closedReason explains why a guarded sheet write found nothing to change.
*/
func (s AlbumService) closedReason(ctx context.Context, tenantID, albumID uint) error {
	album, err := s.Get(ctx, tenantID, albumID)
	if err != nil {
		return err
	}

	if album.IsFinalized() {
		return models.InvalidTransition(models.ReasonAlbumApproved)
	}

	return models.NotFound("sheet not found")
}

func setOpenSheetStatus(ctx context.Context, tx *sqlz.Tx, tenantID, albumID, sheetID uint, status models.SheetStatus, now string) error {
	result, err := tx.Exec(ctx, openSheetSql, string(status), now, sheetID, albumID, tenantID)
	if err != nil {
		return models.Transient(err, "error setting sheet %d to %s", sheetID, status)
	}

	if rowsAffected(result) == 0 {
		return errAlbumClosed
	}

	return nil
}

/*
inTx runs fn and the version bump in one transaction. fn returning
errAlreadyApplied rolls back without reporting a failure.
*/
func (s AlbumService) inTx(ctx context.Context, albumID uint, fn func(ctx context.Context, tx *sqlz.Tx) error) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Transient(err, "error starting transaction for album %d", albumID)
	}

	defer func() { _ = tx.Rollback() }()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, bumpAlbumSql, database.Timestamp(s.now()), albumID); err != nil {
		return models.Transient(err, "error bumping version of album %d", albumID)
	}

	if err = tx.Commit(); err != nil {
		if database.IsBusy(err) {
			return models.Transient(err, models.ReasonTryAgain)
		}

		return models.Transient(err, "error committing change to album %d", albumID)
	}

	return nil
}

func insertComment(ctx context.Context, ex execer, comment *models.Comment) (uint, error) {
	sql := `
INSERT INTO comments (
   subject_type
   , subject_id
   , author
   , body
   , created_at
) VALUES (?, ?, ?, ?, ?)
`

	result, err := ex.Exec(ctx, sql, string(comment.SubjectType), comment.SubjectID, string(comment.Author), comment.Body, database.Timestamp(comment.CreatedAt))
	if err != nil {
		return 0, models.Transient(err, "error inserting comment on %s %d", comment.SubjectType, comment.SubjectID)
	}

	id, _ := result.LastInsertId()
	return uint(id), nil
}

func findSheet(album *models.Album, sheetID uint) *models.Sheet {
	for index := range album.Sheets {
		if album.Sheets[index].ID == sheetID {
			return &album.Sheets[index]
		}
	}

	return nil
}
