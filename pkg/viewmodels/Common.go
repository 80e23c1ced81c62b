package viewmodels

import (
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/pkg/models"
)

/*
URLFunc turns a storage key into a URL the browser can fetch. An empty key
must give an empty URL.
*/
type URLFunc func(key string) string

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type VerifyResponse struct {
	ID uint `json:"id"`
}

type CommentView struct {
	ID        uint      `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewCommentView(comment models.Comment) CommentView {
	return CommentView{
		ID:        comment.ID,
		Author:    string(comment.Author),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func NewCommentViews(comments []models.Comment) []CommentView {
	return slices.Map(comments, func(comment models.Comment, index int) CommentView {
		return NewCommentView(comment)
	})
}

type CommentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}
