package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/rfberaldo/sqlz"
)

type SessionServicer interface {
	AddComment(ctx context.Context, tenantID, sessionID, photoID uint, author models.CommentAuthor, body string) (*models.Comment, error)
	AddPhoto(ctx context.Context, tenantID, sessionID uint, input NewPhoto) (*models.Photo, error)
	Create(ctx context.Context, tenantID uint, input NewSession) (*models.Session, error)
	Deactivate(ctx context.Context, tenantID, sessionID uint) error
	Delete(ctx context.Context, tenantID, sessionID uint) error
	Deliver(ctx context.Context, tenantID, sessionID uint) (*models.Session, error)
	Get(ctx context.Context, tenantID, sessionID uint) (*models.Session, error)
	List(ctx context.Context, tenantID uint) ([]*models.Session, error)
	PhotosMissingPreviews(ctx context.Context, limit int) ([]models.Photo, error)
	Reopen(ctx context.Context, tenantID, sessionID uint) (*models.Session, error)
	RequestReopen(ctx context.Context, tenantID, sessionID uint) error
	SetDeadline(ctx context.Context, tenantID, sessionID uint, deadline *time.Time) (*models.Session, error)
	SetPhotoPreview(ctx context.Context, photoID uint, thumbnailKey string) error
	SubmitSelection(ctx context.Context, tenantID, sessionID uint) (*models.Session, error)
	ToggleSelection(ctx context.Context, tenantID, sessionID, photoID uint) (*models.Session, error)
}

/*
NewSession is everything a provider may set when creating a session.
Defaults are applied by Normalize, once, before validation.
*/
type NewSession struct {
	Name                string     `validate:"required,max=200"`
	SessionType         string     `validate:"max=100"`
	SessionDate         *time.Time `validate:"-"`
	CoverPhoto          string     `validate:"max=1024"`
	Mode                string     `validate:"oneof=selection gallery"`
	PackageLimit        int        `validate:"gte=0"`
	ExtraUnitPriceCents int64      `validate:"gte=0"`
	Deadline            *time.Time `validate:"-"`
}

type NewPhoto struct {
	OriginalKey  string `validate:"required,max=1024"`
	ThumbnailKey string `validate:"max=1024"`
}

func (n *NewSession) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.Mode = strings.ToLower(strings.TrimSpace(n.Mode))

	if n.Mode == "" {
		n.Mode = string(models.SessionModeSelection)
	}
}

type SessionServiceConfig struct {
	AccessService AccessServicer
	Assets        AssetServicer
	DB            *sqlz.DB
	Notifications NotificationServicer
	Now           func() time.Time
}

type SessionService struct {
	accessService AccessServicer
	assets        AssetServicer
	db            *sqlz.DB
	notifications NotificationServicer
	now           func() time.Time
}

const sessionColumns = `
   s.id
   , s.created_at
   , s.updated_at
   , s.tenant_id
   , s.access_code
   , s.name
   , s.session_type
   , s.session_date
   , s.cover_photo
   , s.mode
   , s.package_limit
   , s.extra_unit_price_cents
   , s.status
   , s.submitted_at
   , s.delivered_at
   , s.deadline
   , s.warning_sent
   , s.expired_sent
   , s.is_active
`

const openStatusList = `('pending', 'in_progress')`

const maxCodeAttempts = 5

func NewSessionService(config SessionServiceConfig) SessionService {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return SessionService{
		accessService: config.AccessService,
		assets:        config.Assets,
		db:            config.DB,
		notifications: config.Notifications,
		now:           now,
	}
}

func (s SessionService) AddComment(ctx context.Context, tenantID, sessionID, photoID uint, author models.CommentAuthor, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)

	if body == "" {
		return nil, models.Validation("comment cannot be empty")
	}

	if !author.Valid() {
		return nil, models.Validation("unknown comment author")
	}

	sql := `
INSERT INTO comments (
   subject_type
   , subject_id
   , author
   , body
   , created_at
)
SELECT
   'photo'
   , p.id
   , ?
   , ?
   , ?
FROM session_photos AS p
   INNER JOIN sessions AS s ON s.id=p.session_id
WHERE 1=1
   AND p.id=?
   AND s.id=?
   AND s.tenant_id=?
`

	now := s.now().UTC().Truncate(time.Second)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, string(author), body, database.Timestamp(now), photoID, sessionID, tenantID)

	if err != nil {
		return nil, models.Transient(err, "error adding comment to photo %d", photoID)
	}

	if rowsAffected(result) == 0 {
		return nil, models.NotFound("photo not found")
	}

	id, _ := result.LastInsertId()

	return &models.Comment{
		ID:          uint(id),
		SubjectType: models.CommentSubjectPhoto,
		SubjectID:   photoID,
		Author:      author,
		Body:        body,
		CreatedAt:   now,
	}, nil
}

func (s SessionService) AddPhoto(ctx context.Context, tenantID, sessionID uint, input NewPhoto) (*models.Photo, error) {
	sql := `
INSERT INTO session_photos (
   session_id
   , position
   , thumbnail_key
   , original_key
)
SELECT
   s.id
   , COALESCE((SELECT MAX(p.position) + 1 FROM session_photos AS p WHERE p.session_id=s.id), 0)
   , ?
   , ?
FROM sessions AS s
WHERE 1=1
   AND s.id=?
   AND s.tenant_id=?
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, strings.TrimSpace(input.ThumbnailKey), strings.TrimSpace(input.OriginalKey), sessionID, tenantID)

	if err != nil {
		return nil, models.Transient(err, "error adding photo to session %d", sessionID)
	}

	if rowsAffected(result) == 0 {
		return nil, models.NotFound("session not found")
	}

	id, _ := result.LastInsertId()
	photo := &models.Photo{}

	if err = s.db.QueryRow(ctx, photo, `SELECT id, session_id, position, thumbnail_key, original_key, created_at FROM session_photos WHERE id=?`, id); err != nil {
		return nil, storageError(err, "photo not found", "error querying photo %d", id)
	}

	return photo, nil
}

/*
Create inserts a new session with a freshly generated access code, retrying
when the code collides with another session of the same tenant.
*/
func (s SessionService) Create(ctx context.Context, tenantID uint, input NewSession) (*models.Session, error) {
	var (
		err  error
		code string
		id   int64
	)

	input.Normalize()

	sql := `
INSERT INTO sessions (
   tenant_id
   , access_code
   , name
   , session_type
   , session_date
   , cover_photo
   , mode
   , package_limit
   , extra_unit_price_cents
   , deadline
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if code, err = s.accessService.GenerateCode(); err != nil {
			return nil, err
		}

		insertCtx, cancel := withTimeout(ctx)

		result, insertErr := s.db.Exec(
			insertCtx,
			sql,
			tenantID,
			code,
			input.Name,
			input.SessionType,
			nullableTimestamp(input.SessionDate),
			input.CoverPhoto,
			input.Mode,
			input.PackageLimit,
			input.ExtraUnitPriceCents,
			nullableTimestamp(input.Deadline),
		)

		cancel()
		err = insertErr

		if err == nil {
			id, _ = result.LastInsertId()
			return s.Get(ctx, tenantID, uint(id))
		}

		if !database.IsUniqueViolation(err) {
			return nil, models.Transient(err, "error inserting session for tenant %d", tenantID)
		}

		slog.Warn("access code collision, generating another", "tenantID", tenantID, "attempt", attempt)
	}

	return nil, models.Transient(err, "could not generate a unique access code for tenant %d", tenantID)
}

func (s SessionService) Deactivate(ctx context.Context, tenantID, sessionID uint) error {
	sql := `UPDATE sessions SET is_active=0, updated_at=? WHERE id=? AND tenant_id=?`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, database.Timestamp(s.now()), sessionID, tenantID)

	if err != nil {
		return models.Transient(err, "error deactivating session %d", sessionID)
	}

	if rowsAffected(result) == 0 {
		return models.NotFound("session not found")
	}

	return nil
}

/*
Delete removes the session and everything hanging off it, then asks the
asset store to drop the binaries. Notifications are kept.
*/
func (s SessionService) Delete(ctx context.Context, tenantID, sessionID uint) error {
	var (
		err     error
		session *models.Session
	)

	if session, err = s.Get(ctx, tenantID, sessionID); err != nil {
		return err
	}

	keys := []string{session.CoverPhoto}

	for _, photo := range session.Photos {
		keys = append(keys, photo.OriginalKey, photo.ThumbnailKey)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Transient(err, "error starting delete of session %d", sessionID)
	}

	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM comments WHERE subject_type='photo' AND subject_id IN (SELECT id FROM session_photos WHERE session_id=?)`,
		`DELETE FROM session_selections WHERE session_id=?`,
		`DELETE FROM session_photos WHERE session_id=?`,
		`DELETE FROM sessions WHERE id=?`,
	}

	for _, statement := range statements {
		if _, err = tx.Exec(ctx, statement, sessionID); err != nil {
			return models.Transient(err, "error deleting session %d", sessionID)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Transient(err, "error committing delete of session %d", sessionID)
	}

	if s.assets != nil {
		if err = s.assets.Delete(keys); err != nil {
			slog.Error("error removing session assets", "sessionID", sessionID, "error", err)
		}
	}

	return nil
}

/*
Deliver is the provider finalizing a submitted selection. Delivery is what
lifts the watermark on served assets.
*/
func (s SessionService) Deliver(ctx context.Context, tenantID, sessionID uint) (*models.Session, error) {
	now := database.Timestamp(s.now())

	sql := `
UPDATE sessions SET
   status='delivered'
   , delivered_at=?
   , updated_at=?
WHERE 1=1
   AND id=?
   AND tenant_id=?
   AND status='submitted'
`

	return s.transition(ctx, tenantID, sessionID, sql, []any{now, now, sessionID, tenantID}, func(session *models.Session) error {
		if session.Status == models.SessionStatusDelivered {
			return models.InvalidTransition(models.ReasonAlreadyDelivered)
		}

		return models.InvalidTransition(models.ReasonNotSubmitted)
	})
}

/*
Get loads a session with its photos, photo comments and the current
selection set.
*/
func (s SessionService) Get(ctx context.Context, tenantID, sessionID uint) (*models.Session, error) {
	var (
		err        error
		selections []struct {
			PhotoID uint `db:"photo_id"`
		}
		comments []models.Comment
	)

	result := &models.Session{}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sql := `SELECT ` + sessionColumns + ` FROM sessions AS s WHERE s.id=? AND s.tenant_id=?`

	if err = s.db.QueryRow(ctx, result, sql, sessionID, tenantID); err != nil {
		return nil, storageError(err, "session not found", "error querying for session %d, tenant %d", sessionID, tenantID)
	}

	sql = `
SELECT
   p.id
   , p.session_id
   , p.position
   , p.thumbnail_key
   , p.original_key
   , p.created_at
FROM session_photos AS p
WHERE 1=1
   AND p.session_id=?
ORDER BY p.position, p.id
`

	if err = queryAll(ctx, s.db, &result.Photos, sql, sessionID); err != nil {
		return nil, models.Transient(err, "error querying photos for session %d", sessionID)
	}

	sql = `
SELECT
   sel.photo_id
FROM session_selections AS sel
WHERE 1=1
   AND sel.session_id=?
ORDER BY sel.selected_at, sel.photo_id
`

	if err = queryAll(ctx, s.db, &selections, sql, sessionID); err != nil {
		return nil, models.Transient(err, "error querying selections for session %d", sessionID)
	}

	result.SelectedPhotoIDs = make([]uint, 0, len(selections))

	for _, selection := range selections {
		result.SelectedPhotoIDs = append(result.SelectedPhotoIDs, selection.PhotoID)
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
   INNER JOIN session_photos AS p ON p.id=c.subject_id
WHERE 1=1
   AND c.subject_type='photo'
   AND p.session_id=?
ORDER BY c.created_at, c.id
`

	if err = queryAll(ctx, s.db, &comments, sql, sessionID); err != nil {
		return nil, models.Transient(err, "error querying photo comments for session %d", sessionID)
	}

	byPhoto := map[uint][]models.Comment{}

	for _, comment := range comments {
		byPhoto[comment.SubjectID] = append(byPhoto[comment.SubjectID], comment)
	}

	for index := range result.Photos {
		result.Photos[index].Comments = byPhoto[result.Photos[index].ID]
	}

	return result, nil
}

func (s SessionService) List(ctx context.Context, tenantID uint) ([]*models.Session, error) {
	result := []*models.Session{}

	sql := `
SELECT ` + sessionColumns + `
FROM sessions AS s
WHERE 1=1
   AND s.tenant_id=?
ORDER BY s.created_at DESC, s.id DESC
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := queryAll(ctx, s.db, &result, sql, tenantID); err != nil {
		return nil, models.Transient(err, "error querying sessions for tenant %d", tenantID)
	}

	return result, nil
}

/*
PhotosMissingPreviews lists photos of active sessions that have no preview
yet, for the preview builder.
*/
func (s SessionService) PhotosMissingPreviews(ctx context.Context, limit int) ([]models.Photo, error) {
	result := []models.Photo{}

	sql := `
SELECT
   p.id
   , p.session_id
   , p.position
   , p.thumbnail_key
   , p.original_key
   , p.created_at
FROM session_photos AS p
   INNER JOIN sessions AS s ON s.id=p.session_id
WHERE 1=1
   AND s.is_active=1
   AND p.thumbnail_key=''
ORDER BY p.id
LIMIT ?
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := queryAll(ctx, s.db, &result, sql, limit); err != nil {
		return nil, models.Transient(err, "error querying photos missing previews")
	}

	return result, nil
}

/*
Reopen moves a submitted session back to in_progress. The selection set is
left as it was.
*/
func (s SessionService) Reopen(ctx context.Context, tenantID, sessionID uint) (*models.Session, error) {
	sql := `
UPDATE sessions SET
   status='in_progress'
   , updated_at=?
WHERE 1=1
   AND id=?
   AND tenant_id=?
   AND status='submitted'
`

	return s.transition(ctx, tenantID, sessionID, sql, []any{database.Timestamp(s.now()), sessionID, tenantID}, func(session *models.Session) error {
		if session.Status == models.SessionStatusDelivered {
			return models.InvalidTransition(models.ReasonAlreadyDelivered)
		}

		return models.InvalidTransition(models.ReasonNotSubmitted)
	})
}

/*
RequestReopen does not touch the session. It only tells the provider the
client wants to change a submitted selection; the provider decides.
*/
func (s SessionService) RequestReopen(ctx context.Context, tenantID, sessionID uint) error {
	session, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}

	switch session.Status {
	case models.SessionStatusSubmitted:
	case models.SessionStatusDelivered:
		return models.InvalidTransition(models.ReasonAlreadyDelivered)
	default:
		return models.InvalidTransition(models.ReasonNotSubmitted)
	}

	s.notifications.Emit(ctx, models.SessionNotification(
		session,
		models.NotificationReopenRequested,
		fmt.Sprintf("The client of session '%s' asked to reopen their selection", session.Name),
	))

	return nil
}

/*
SetDeadline changes or clears the selection deadline. Moving the deadline
re-arms the warning, so both one-way flags are reset unless the session has
already expired.
*/
func (s SessionService) SetDeadline(ctx context.Context, tenantID, sessionID uint, deadline *time.Time) (*models.Session, error) {
	sql := `
UPDATE sessions SET
   deadline=?
   , warning_sent=0
   , expired_sent=0
   , updated_at=?
WHERE 1=1
   AND id=?
   AND tenant_id=?
   AND status != 'expired'
`

	return s.transition(ctx, tenantID, sessionID, sql, []any{nullableTimestamp(deadline), database.Timestamp(s.now()), sessionID, tenantID}, func(session *models.Session) error {
		return models.InvalidTransition(models.ReasonSelectionClosed)
	})
}

func (s SessionService) SetPhotoPreview(ctx context.Context, photoID uint, thumbnailKey string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Exec(ctx, `UPDATE session_photos SET thumbnail_key=? WHERE id=?`, thumbnailKey, photoID); err != nil {
		return models.Transient(err, "error setting preview for photo %d", photoID)
	}

	return nil
}

/*
SubmitSelection closes the selection. Submitting an already submitted
session is a no-op that returns the current state, so double clicks and
retries are harmless.
*/
func (s SessionService) SubmitSelection(ctx context.Context, tenantID, sessionID uint) (*models.Session, error) {
	var (
		err     error
		session *models.Session
	)

	now := database.Timestamp(s.now())

	sql := `
UPDATE sessions SET
   status='submitted'
   , submitted_at=?
   , updated_at=?
WHERE 1=1
   AND id=?
   AND tenant_id=?
   AND mode='selection'
   AND status IN ` + openStatusList + `
   AND (deadline IS NULL OR deadline > ?)
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, now, now, sessionID, tenantID, now)

	if err != nil {
		return nil, models.Transient(err, "error submitting selection for session %d", sessionID)
	}

	if session, err = s.Get(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	if rowsAffected(result) == 0 {
		if session.Status == models.SessionStatusSubmitted {
			return session, nil
		}

		if session.SelectionOpen() && session.Mode == models.SessionModeSelection && session.DeadlinePassed(s.now()) {
			return nil, models.InvalidTransition(models.ReasonDeadlinePassed)
		}

		return nil, selectionGuard(session)
	}

	message := fmt.Sprintf("The client of session '%s' submitted %d photos", session.Name, len(session.SelectedPhotoIDs))

	if extra := session.ExtraInfo(); extra != "" {
		message += " " + extra
	}

	s.notifications.Emit(ctx, models.SessionNotification(session, models.NotificationSelectionSubmitted, message))
	return session, nil
}

/*
ToggleSelection adds or removes one photo from the selection set. Each
branch is a single guarded statement, so concurrent toggles from several
tabs never overwrite each other's work.
*/
func (s SessionService) ToggleSelection(ctx context.Context, tenantID, sessionID, photoID uint) (*models.Session, error) {
	var (
		err     error
		session *models.Session
	)

	now := database.Timestamp(s.now())

	removeSql := `
DELETE FROM session_selections
WHERE 1=1
   AND session_id=?
   AND photo_id=?
   AND session_id IN (
      SELECT s.id FROM sessions AS s
      WHERE s.id=? AND s.tenant_id=? AND s.mode='selection' AND s.status IN ` + openStatusList + `
   )
`

	addSql := `
INSERT OR IGNORE INTO session_selections (
   session_id
   , photo_id
   , selected_at
)
SELECT
   p.session_id
   , p.id
   , ?
FROM session_photos AS p
   INNER JOIN sessions AS s ON s.id=p.session_id
WHERE 1=1
   AND p.id=?
   AND s.id=?
   AND s.tenant_id=?
   AND s.mode='selection'
   AND s.status IN ` + openStatusList + `
`

	startSql := `UPDATE sessions SET status='in_progress', updated_at=? WHERE id=? AND status='pending'`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, removeSql, sessionID, photoID, sessionID, tenantID)
	if err != nil {
		return nil, models.Transient(err, "error removing photo %d from selection of session %d", photoID, sessionID)
	}

	changed := rowsAffected(result) > 0

	if !changed {
		if result, err = s.db.Exec(ctx, addSql, now, photoID, sessionID, tenantID); err != nil {
			return nil, models.Transient(err, "error adding photo %d to selection of session %d", photoID, sessionID)
		}

		if changed = rowsAffected(result) > 0; changed {
			if _, err = s.db.Exec(ctx, startSql, now, sessionID); err != nil {
				return nil, models.Transient(err, "error starting selection of session %d", sessionID)
			}
		}
	}

	if session, err = s.Get(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	// A toggle that landed stands even if the session closed right after it.
	if changed {
		return session, nil
	}

	if err = selectionGuard(session); err != nil {
		return nil, err
	}

	if !hasPhoto(session, photoID) {
		return nil, models.NotFound("photo not found")
	}

	return session, nil
}

/*
transition runs a compare-and-set update. When no row matched, the current
session is loaded and explain decides which error the caller gets.
*/
func (s SessionService) transition(ctx context.Context, tenantID, sessionID uint, sql string, args []any, explain func(session *models.Session) error) (*models.Session, error) {
	var (
		err     error
		session *models.Session
	)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return nil, models.Transient(err, "error updating session %d", sessionID)
	}

	if session, err = s.Get(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	if rowsAffected(result) == 0 {
		return nil, explain(session)
	}

	return session, nil
}

/*
selectionGuard explains why a session's selection cannot change, or returns
nil when it can.
*/
func selectionGuard(session *models.Session) error {
	if session.Mode == models.SessionModeGallery {
		return models.InvalidTransition(models.ReasonGalleryOnly)
	}

	switch session.Status {
	case models.SessionStatusPending, models.SessionStatusInProgress:
		return nil
	case models.SessionStatusSubmitted:
		return models.InvalidTransition(models.ReasonSelectionSubmitted)
	case models.SessionStatusDelivered:
		return models.InvalidTransition(models.ReasonAlreadyDelivered)
	default:
		return models.InvalidTransition(models.ReasonSelectionClosed)
	}
}

func hasPhoto(session *models.Session, photoID uint) bool {
	for _, photo := range session.Photos {
		if photo.ID == photoID {
			return true
		}
	}

	return false
}
