package viewer

import (
	"errors"

	"github.com/adampresley/proofingdesk/pkg/models"
)

const (
	MessageCodeInvalid = "This access code is not valid. Please check it and try again."
	MessageTryAgain    = "Something went wrong. Please try again in a moment."
)

var transitionMessages = map[string]string{
	models.ReasonSelectionSubmitted:   "Your selection was already submitted.",
	models.ReasonSelectionClosed:      "This selection is closed.",
	models.ReasonGalleryOnly:          "This gallery is for viewing only.",
	models.ReasonDeadlinePassed:       "The deadline for this selection has passed.",
	models.ReasonNotSubmitted:         "Your selection has not been submitted yet.",
	models.ReasonAlreadyDelivered:     "These photos were already delivered.",
	models.ReasonAlbumApproved:        "This album was already approved.",
	models.ReasonRevisionNeedsComment: "Please tell us what should change.",
}

/*
UserMessage turns an error into what the client surface shows. Workflow
refusals get a specific message; everything else gets a generic retry.
*/
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, models.ErrNotFound) {
		return MessageCodeInvalid
	}

	if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrValidation) {
		if msg, ok := transitionMessages[models.ReasonOf(err)]; ok {
			return msg
		}

		if reason := models.ReasonOf(err); reason != "" {
			return reason
		}
	}

	return MessageTryAgain
}
