package models

import (
	"fmt"
	"time"
)

type SessionMode string

const (
	SessionModeSelection SessionMode = "selection"
	SessionModeGallery   SessionMode = "gallery"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
	SessionStatusDelivered  SessionStatus = "delivered"
	SessionStatusExpired    SessionStatus = "expired"
)

/*
Session is one batch of photos handed to a client. In selection mode the
client picks photos against a package limit; gallery mode is view only.
*/
type Session struct {
	BaseModel

	TenantID            uint          `db:"tenant_id"`
	AccessCode          string        `db:"access_code"`
	Name                string        `db:"name"`
	SessionType         string        `db:"session_type"`
	SessionDate         *time.Time    `db:"session_date"`
	CoverPhoto          string        `db:"cover_photo"`
	Mode                SessionMode   `db:"mode"`
	PackageLimit        int           `db:"package_limit"`
	ExtraUnitPriceCents int64         `db:"extra_unit_price_cents"`
	Status              SessionStatus `db:"status"`
	SubmittedAt         *time.Time    `db:"submitted_at"`
	DeliveredAt         *time.Time    `db:"delivered_at"`
	Deadline            *time.Time    `db:"deadline"`
	WarningSent         bool          `db:"warning_sent"`
	ExpiredSent         bool          `db:"expired_sent"`
	IsActive            bool          `db:"is_active"`

	Photos           []Photo `db:"-"`
	SelectedPhotoIDs []uint  `db:"-"`
}

type Photo struct {
	ID           uint      `db:"id"`
	SessionID    uint      `db:"session_id"`
	Position     int       `db:"position"`
	ThumbnailKey string    `db:"thumbnail_key"`
	OriginalKey  string    `db:"original_key"`
	CreatedAt    time.Time `db:"created_at"`
	Comments     []Comment `db:"-"`
}

/*
SelectionOpen reports whether the selection set may still change.
*/
func (s *Session) SelectionOpen() bool {
	return s.Status == SessionStatusPending || s.Status == SessionStatusInProgress
}

func (s *Session) DeadlinePassed(now time.Time) bool {
	return s.Deadline != nil && !now.Before(*s.Deadline)
}

/*
IsWatermarked is true until the session is delivered. Asset serving uses it
to decide whether originals may be handed out.
*/
func (s *Session) IsWatermarked() bool {
	return s.Status != SessionStatusDelivered
}

func (s *Session) IsSelected(photoID uint) bool {
	for _, id := range s.SelectedPhotoIDs {
		if id == photoID {
			return true
		}
	}

	return false
}

func (s *Session) ExtraPhotoCount() int {
	return max(0, len(s.SelectedPhotoIDs)-s.PackageLimit)
}

func (s *Session) ExtraCostCents() int64 {
	return int64(s.ExtraPhotoCount()) * s.ExtraUnitPriceCents
}

/*
ExtraInfo is the client-facing overage line, e.g. "+3 fotos extras (R$ 30.00)".
It is empty when the selection fits in the package.
*/
func (s *Session) ExtraInfo() string {
	count := s.ExtraPhotoCount()

	if count == 0 {
		return ""
	}

	noun := "fotos extras"
	if count == 1 {
		noun = "foto extra"
	}

	return fmt.Sprintf("+%d %s (%s)", count, noun, FormatMoney(s.ExtraCostCents()))
}

func FormatMoney(cents int64) string {
	return fmt.Sprintf("R$ %d.%02d", cents/100, cents%100)
}

/*
OpenSessionStatuses are the statuses the selection flow and the deadline
sweeper treat as still open.
*/
var OpenSessionStatuses = []SessionStatus{SessionStatusPending, SessionStatusInProgress}
