package models

import "time"

type CommentAuthor string

const (
	CommentAuthorClient CommentAuthor = "client"
	CommentAuthorAdmin  CommentAuthor = "admin"
)

type CommentSubject string

const (
	CommentSubjectPhoto CommentSubject = "photo"
	CommentSubjectSheet CommentSubject = "sheet"
)

/*
Comment is one entry in the append-only thread attached to a session photo
or an album sheet. Comments never move any state machine.
*/
type Comment struct {
	ID          uint           `db:"id"`
	SubjectType CommentSubject `db:"subject_type"`
	SubjectID   uint           `db:"subject_id"`
	Author      CommentAuthor  `db:"author"`
	Body        string         `db:"body"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (a CommentAuthor) Valid() bool {
	return a == CommentAuthorClient || a == CommentAuthorAdmin
}
