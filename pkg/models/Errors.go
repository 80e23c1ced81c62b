package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindValidation        ErrorKind = "validation"
	KindTransient         ErrorKind = "transient"
)

/*
WorkflowError carries the kind of failure plus a reason that is safe to
show to a client. errors.Is matches on kind alone, so callers compare
against the Err* sentinels below.
*/
type WorkflowError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

var (
	ErrNotFound          = &WorkflowError{Kind: KindNotFound}
	ErrInvalidTransition = &WorkflowError{Kind: KindInvalidTransition}
	ErrValidation        = &WorkflowError{Kind: KindValidation}
	ErrTransient         = &WorkflowError{Kind: KindTransient}
)

const (
	ReasonCodeInvalid          = "code invalid"
	ReasonSelectionSubmitted   = "selection already submitted"
	ReasonSelectionClosed      = "selection is closed"
	ReasonGalleryOnly          = "session is gallery only"
	ReasonDeadlinePassed       = "selection deadline has passed"
	ReasonNotSubmitted         = "selection has not been submitted"
	ReasonAlreadyDelivered     = "session already delivered"
	ReasonAlbumAlreadySent     = "album already sent"
	ReasonAlbumNotSent         = "album has not been sent"
	ReasonAlbumApproved        = "album already approved"
	ReasonAlbumHasNoSheets     = "album has no sheets"
	ReasonRevisionNeedsComment = "a comment is required to request a revision"
	ReasonTryAgain             = "temporary failure, please try again"
)

func (e *WorkflowError) Error() string {
	msg := string(e.Kind)

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func NotFound(reason string) error {
	return &WorkflowError{Kind: KindNotFound, Reason: reason}
}

func InvalidTransition(reason string) error {
	return &WorkflowError{Kind: KindInvalidTransition, Reason: reason}
}

func Validation(reason string) error {
	return &WorkflowError{Kind: KindValidation, Reason: reason}
}

func Transient(err error, format string, args ...any) error {
	return &WorkflowError{Kind: KindTransient, Reason: fmt.Sprintf(format, args...), Err: err}
}

/*
KindOf reports the workflow kind of err. Anything that is not a
WorkflowError is treated as transient: an unexpected storage or network
failure the caller may retry.
*/
func KindOf(err error) ErrorKind {
	var we *WorkflowError

	if errors.As(err, &we) {
		return we.Kind
	}

	return KindTransient
}

/*
ReasonOf returns the client-safe reason carried by err, or an empty string.
*/
func ReasonOf(err error) string {
	var we *WorkflowError

	if errors.As(err, &we) {
		return we.Reason
	}

	return ""
}
