package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowErrorMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("toggling photo: %w", models.InvalidTransition(models.ReasonSelectionSubmitted))

	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.False(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(err, models.InvalidTransition(models.ReasonSelectionSubmitted)))
	assert.False(t, errors.Is(err, models.InvalidTransition(models.ReasonAlreadyDelivered)))
	assert.Equal(t, models.KindInvalidTransition, models.KindOf(err))
	assert.Equal(t, models.ReasonSelectionSubmitted, models.ReasonOf(err))
}

func TestUnknownErrorsAreTransient(t *testing.T) {
	err := errors.New("disk I/O error")

	assert.Equal(t, models.KindTransient, models.KindOf(err))
	assert.Equal(t, "", models.ReasonOf(err))
}

func TestTransientUnwraps(t *testing.T) {
	cause := errors.New("database is locked")
	err := models.Transient(cause, "updating session %d", 4)

	assert.True(t, errors.Is(err, models.ErrTransient))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "updating session 4")
}
