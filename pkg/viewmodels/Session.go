package viewmodels

import (
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/models"
)

/*
SessionView is what a client sees of a session. OriginalURL is only filled
once the session is delivered; until then only previews are handed out.
*/
type SessionView struct {
	ID               uint        `json:"id"`
	Name             string      `json:"name"`
	SessionType      string      `json:"sessionType"`
	SessionDate      *time.Time  `json:"sessionDate,omitempty"`
	CoverURL         string      `json:"coverUrl"`
	Mode             string      `json:"mode"`
	Status           string      `json:"status"`
	PackageLimit     int         `json:"packageLimit"`
	ExtraUnitPrice   string      `json:"extraUnitPrice"`
	SelectedCount    int         `json:"selectedCount"`
	ExtraCount       int         `json:"extraCount"`
	ExtraCostCents   int64       `json:"extraCostCents"`
	ExtraInfo        string      `json:"extraInfo"`
	Watermarked      bool        `json:"watermarked"`
	Deadline         *time.Time  `json:"deadline,omitempty"`
	SubmittedAt      *time.Time  `json:"submittedAt,omitempty"`
	DeliveredAt      *time.Time  `json:"deliveredAt,omitempty"`
	SelectedPhotoIDs []uint      `json:"selectedPhotoIds"`
	Photos           []PhotoView `json:"photos"`
}

type PhotoView struct {
	ID          uint          `json:"id"`
	Position    int           `json:"position"`
	PreviewURL  string        `json:"previewUrl"`
	OriginalURL string        `json:"originalUrl,omitempty"`
	Selected    bool          `json:"selected"`
	Comments    []CommentView `json:"comments"`
}

/*
StudioSessionView adds what only the provider may see.
*/
type StudioSessionView struct {
	SessionView

	AccessCode  string `json:"accessCode"`
	IsActive    bool   `json:"isActive"`
	WarningSent bool   `json:"warningSent"`
	ExpiredSent bool   `json:"expiredSent"`
}

type NewSessionRequest struct {
	Name                string     `json:"name" validate:"required,max=200"`
	SessionType         string     `json:"sessionType" validate:"max=100"`
	SessionDate         *time.Time `json:"sessionDate"`
	CoverPhoto          string     `json:"coverPhoto" validate:"max=1024"`
	Mode                string     `json:"mode" validate:"omitempty,oneof=selection gallery"`
	PackageLimit        int        `json:"packageLimit" validate:"gte=0"`
	ExtraUnitPriceCents int64      `json:"extraUnitPriceCents" validate:"gte=0"`
	Deadline            *time.Time `json:"deadline"`
}

type NewPhotoRequest struct {
	OriginalKey  string `json:"originalKey" validate:"required,max=1024"`
	ThumbnailKey string `json:"thumbnailKey" validate:"max=1024"`
}

type DeadlineRequest struct {
	Deadline *time.Time `json:"deadline"`
}

type ToggleRequest struct {
	PhotoID uint `json:"photoId" validate:"required"`
}

func NewSessionView(session *models.Session, url URLFunc) SessionView {
	delivered := !session.IsWatermarked()

	selected := session.SelectedPhotoIDs
	if selected == nil {
		selected = []uint{}
	}

	return SessionView{
		ID:               session.ID,
		Name:             session.Name,
		SessionType:      session.SessionType,
		SessionDate:      session.SessionDate,
		CoverURL:         url(session.CoverPhoto),
		Mode:             string(session.Mode),
		Status:           string(session.Status),
		PackageLimit:     session.PackageLimit,
		ExtraUnitPrice:   models.FormatMoney(session.ExtraUnitPriceCents),
		SelectedCount:    len(session.SelectedPhotoIDs),
		ExtraCount:       session.ExtraPhotoCount(),
		ExtraCostCents:   session.ExtraCostCents(),
		ExtraInfo:        session.ExtraInfo(),
		Watermarked:      session.IsWatermarked(),
		Deadline:         session.Deadline,
		SubmittedAt:      session.SubmittedAt,
		DeliveredAt:      session.DeliveredAt,
		SelectedPhotoIDs: selected,
		Photos: slices.Map(session.Photos, func(photo models.Photo, index int) PhotoView {
			result := PhotoView{
				ID:         photo.ID,
				Position:   photo.Position,
				PreviewURL: url(photo.ThumbnailKey),
				Selected:   session.IsSelected(photo.ID),
				Comments:   NewCommentViews(photo.Comments),
			}

			if delivered {
				result.OriginalURL = url(photo.OriginalKey)
			}

			return result
		}),
	}
}

/*
NewStudioSessionView always exposes originals; the provider owns them.
*/
func NewStudioSessionView(session *models.Session, url URLFunc) StudioSessionView {
	result := StudioSessionView{
		SessionView: NewSessionView(session, url),
		AccessCode:  session.AccessCode,
		IsActive:    session.IsActive,
		WarningSent: session.WarningSent,
		ExpiredSent: session.ExpiredSent,
	}

	for index, photo := range session.Photos {
		result.Photos[index].OriginalURL = url(photo.OriginalKey)
	}

	return result
}
