package models

import "time"

type SheetStatus string

const (
	SheetStatusAwaitingReview    SheetStatus = "awaiting_review"
	SheetStatusApproved          SheetStatus = "approved"
	SheetStatusRevisionRequested SheetStatus = "revision_requested"
)

type AlbumStatus string

const (
	AlbumStatusDraft             AlbumStatus = "draft"
	AlbumStatusSent              AlbumStatus = "sent"
	AlbumStatusInReview          AlbumStatus = "in_review"
	AlbumStatusApproved          AlbumStatus = "approved"
	AlbumStatusRevisionRequested AlbumStatus = "revision_requested"
)

/*
Album is a set of proof sheets the client approves page by page. The
album-level status is not stored; see Status.
*/
type Album struct {
	BaseModel

	TenantID    uint       `db:"tenant_id"`
	ClientRef   string     `db:"client_ref"`
	AccessCode  string     `db:"access_code"`
	Name        string     `db:"name"`
	WelcomeText string     `db:"welcome_text"`
	Version     int64      `db:"version"`
	SentAt      *time.Time `db:"sent_at"`
	ApprovedAt  *time.Time `db:"approved_at"`
	IsActive    bool       `db:"is_active"`

	Sheets []Sheet `db:"-"`
}

type Sheet struct {
	BaseModel

	AlbumID  uint        `db:"album_id"`
	ImageKey string      `db:"image_key"`
	Position int         `db:"position"`
	Status   SheetStatus `db:"status"`

	Comments []Comment `db:"-"`
}

/*
Status derives the album-level status from the send/approve stamps and the
sheet statuses, so it can never drift from the sheets.
*/
func (a *Album) Status() AlbumStatus {
	return DeriveAlbumStatus(a.SentAt != nil, a.ApprovedAt != nil, a.Sheets)
}

func (a *Album) IsFinalized() bool {
	return a.ApprovedAt != nil
}

func DeriveAlbumStatus(sent, approved bool, sheets []Sheet) AlbumStatus {
	if !sent {
		return AlbumStatusDraft
	}

	if approved {
		return AlbumStatusApproved
	}

	anyApproved := false

	for _, sheet := range sheets {
		switch sheet.Status {
		case SheetStatusRevisionRequested:
			return AlbumStatusRevisionRequested
		case SheetStatusApproved:
			anyApproved = true
		}
	}

	if anyApproved {
		return AlbumStatusInReview
	}

	return AlbumStatusSent
}
