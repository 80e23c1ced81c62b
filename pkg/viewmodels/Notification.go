package viewmodels

import (
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/models"
)

type NotificationView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID *uint     `json:"sessionId,omitempty"`
	AlbumID   *uint     `json:"albumId,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

func NewNotificationViews(notifications []models.Notification) []NotificationView {
	return slices.Map(notifications, func(n models.Notification, index int) NotificationView {
		return NotificationView{
			ID:        n.ID,
			Type:      string(n.Type),
			SessionID: n.SessionID,
			AlbumID:   n.AlbumID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	})
}
