package models

import "time"

type NotificationType string

const (
	NotificationSelectionSubmitted NotificationType = "selection_submitted"
	NotificationReopenRequested    NotificationType = "reopen_requested"
	NotificationDeadlineWarning    NotificationType = "deadline_warning"
	NotificationDeadlineExpired    NotificationType = "deadline_expired"
	NotificationRevisionRequested  NotificationType = "revision_requested"
	NotificationAlbumApproved      NotificationType = "album_approved"
)

/*
Notification is a side-effect record for the provider. Only IsRead ever
changes after creation.
*/
type Notification struct {
	ID        string           `db:"id"`
	TenantID  uint             `db:"tenant_id"`
	Type      NotificationType `db:"type"`
	SessionID *uint            `db:"session_id"`
	AlbumID   *uint            `db:"album_id"`
	Message   string           `db:"message"`
	IsRead    bool             `db:"is_read"`
	CreatedAt time.Time        `db:"created_at"`
}

func SessionNotification(session *Session, notificationType NotificationType, message string) Notification {
	id := session.ID

	return Notification{
		TenantID:  session.TenantID,
		Type:      notificationType,
		SessionID: &id,
		Message:   message,
	}
}

func AlbumNotification(album *Album, notificationType NotificationType, message string) Notification {
	id := album.ID

	return Notification{
		TenantID: album.TenantID,
		Type:     notificationType,
		AlbumID:  &id,
		Message:  message,
	}
}
