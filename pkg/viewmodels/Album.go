package viewmodels

import (
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/models"
)

type AlbumView struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	ClientRef   string      `json:"clientRef"`
	WelcomeText string      `json:"welcomeText"`
	Status      string      `json:"status"`
	Version     int64       `json:"version"`
	SentAt      *time.Time  `json:"sentAt,omitempty"`
	ApprovedAt  *time.Time  `json:"approvedAt,omitempty"`
	Sheets      []SheetView `json:"sheets"`
}

type SheetView struct {
	ID       uint          `json:"id"`
	Position int           `json:"position"`
	Status   string        `json:"status"`
	ImageURL string        `json:"imageUrl"`
	Comments []CommentView `json:"comments"`
}

type StudioAlbumView struct {
	AlbumView

	AccessCode string `json:"accessCode"`
	IsActive   bool   `json:"isActive"`
}

type NewAlbumRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	ClientRef   string `json:"clientRef" validate:"max=200"`
	WelcomeText string `json:"welcomeText" validate:"max=4000"`
}

type NewSheetRequest struct {
	ImageKey string `json:"imageKey" validate:"required,max=1024"`
}

type RevisionRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

func NewAlbumView(album *models.Album, url URLFunc) AlbumView {
	return AlbumView{
		ID:          album.ID,
		Name:        album.Name,
		ClientRef:   album.ClientRef,
		WelcomeText: album.WelcomeText,
		Status:      string(album.Status()),
		Version:     album.Version,
		SentAt:      album.SentAt,
		ApprovedAt:  album.ApprovedAt,
		Sheets: slices.Map(album.Sheets, func(sheet models.Sheet, index int) SheetView {
			return SheetView{
				ID:       sheet.ID,
				Position: sheet.Position,
				Status:   string(sheet.Status),
				ImageURL: url(sheet.ImageKey),
				Comments: NewCommentViews(sheet.Comments),
			}
		}),
	}
}

func NewStudioAlbumView(album *models.Album, url URLFunc) StudioAlbumView {
	return StudioAlbumView{
		AlbumView:  NewAlbumView(album, url),
		AccessCode: album.AccessCode,
		IsActive:   album.IsActive,
	}
}
