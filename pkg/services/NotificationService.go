package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/rfberaldo/sqlz"
)

/*
NotificationServicer records side effects for the provider. Emitting never
returns an error: a failed write is logged and the transition that caused it
stands.
*/
type NotificationServicer interface {
	Emit(ctx context.Context, notification models.Notification)
	EmitInTx(ctx context.Context, tx *sqlz.Tx, notification models.Notification) (models.Notification, bool)
	List(ctx context.Context, tenantID uint, limit int) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, tenantID uint) (int64, error)
	Mirror(notification models.Notification)
	Stop()
	UnreadCount(ctx context.Context, tenantID uint) (int, error)
}

type NotificationServiceConfig struct {
	DB             *sqlz.DB
	Mailer         Mailer
	MaxMailWorkers int
}

type NotificationService struct {
	db       *sqlz.DB
	mailer   Mailer
	mailPool pond.Pool
}

type tenantContact struct {
	Name  string `db:"name"`
	Email string `db:"email"`
}

const defaultNotificationLimit = 100

func NewNotificationService(config NotificationServiceConfig) NotificationService {
	result := NotificationService{
		db:     config.DB,
		mailer: config.Mailer,
	}

	if config.Mailer != nil {
		result.mailPool = pond.NewPool(max(1, config.MaxMailWorkers))
	}

	return result
}

func (s NotificationService) Emit(ctx context.Context, notification models.Notification) {
	stored, ok := s.insert(ctx, s.db, notification)

	if ok {
		s.Mirror(stored)
	}
}

/*
EmitInTx writes the notification inside the caller's transaction so it
commits together with the state change that raised it. The caller mirrors
it after commit.
*/
func (s NotificationService) EmitInTx(ctx context.Context, tx *sqlz.Tx, notification models.Notification) (models.Notification, bool) {
	return s.insert(ctx, tx, notification)
}

func (s NotificationService) List(ctx context.Context, tenantID uint, limit int) ([]models.Notification, error) {
	result := []models.Notification{}

	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	sql := `
SELECT
   n.id
   , n.tenant_id
   , n.type
   , n.session_id
   , n.album_id
   , n.message
   , n.is_read
   , n.created_at
FROM notifications AS n
WHERE 1=1
   AND n.tenant_id=?
ORDER BY n.created_at DESC, n.rowid DESC
LIMIT ?
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := queryAll(ctx, s.db, &result, sql, tenantID, limit); err != nil {
		return nil, models.Transient(err, "error querying notifications for tenant %d", tenantID)
	}

	return result, nil
}

func (s NotificationService) MarkAllRead(ctx context.Context, tenantID uint) (int64, error) {
	sql := `UPDATE notifications SET is_read=1 WHERE tenant_id=? AND is_read=0`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, tenantID)

	if err != nil {
		return 0, models.Transient(err, "error marking notifications read for tenant %d", tenantID)
	}

	return rowsAffected(result), nil
}

/*
Mirror sends the notification to the tenant's email in the background when
a mailer is configured.
*/
func (s NotificationService) Mirror(notification models.Notification) {
	if s.mailer == nil || s.mailPool == nil {
		return
	}

	s.mailPool.Submit(func() {
		contact := tenantContact{}

		ctx, cancel := withTimeout(context.Background())
		defer cancel()

		if err := s.db.QueryRow(ctx, &contact, `SELECT name, email FROM tenants WHERE id=?`, notification.TenantID); err != nil {
			slog.Error("error looking up tenant for notification email", "tenantID", notification.TenantID, "error", err)
			return
		}

		if contact.Email == "" {
			return
		}

		if err := s.mailer.SendNotification(contact.Name, contact.Email, notification); err != nil {
			slog.Error("failed to send notification email", "error", err, "tenantID", notification.TenantID, "type", notification.Type)
		}
	})
}

func (s NotificationService) Stop() {
	if s.mailPool != nil {
		_ = s.mailPool.Stop().Wait()
	}
}

func (s NotificationService) UnreadCount(ctx context.Context, tenantID uint) (int, error) {
	row := countRow{}

	sql := `SELECT COUNT(*) AS count FROM notifications WHERE tenant_id=? AND is_read=0`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.QueryRow(ctx, &row, sql, tenantID); err != nil {
		return 0, models.Transient(err, "error counting unread notifications for tenant %d", tenantID)
	}

	return row.Count, nil
}

func (s NotificationService) insert(ctx context.Context, ex execer, notification models.Notification) (models.Notification, bool) {
	notification.ID = uuid.NewString()
	notification.CreatedAt = time.Now().UTC().Truncate(time.Second)
	notification.IsRead = false

	sql := `
INSERT INTO notifications (
   id
   , tenant_id
   , type
   , session_id
   , album_id
   , message
   , is_read
   , created_at
) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := ex.Exec(
		ctx,
		sql,
		notification.ID,
		notification.TenantID,
		string(notification.Type),
		notification.SessionID,
		notification.AlbumID,
		notification.Message,
		database.Timestamp(notification.CreatedAt),
	)

	if err != nil {
		slog.Error("failed to write notification", "error", err, "tenantID", notification.TenantID, "type", notification.Type)
		return notification, false
	}

	return notification, true
}
