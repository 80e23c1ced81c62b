package models_test

import (
	"testing"
	"time"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/stretchr/testify/assert"
)

func selectedIDs(n int) []uint {
	result := make([]uint, 0, n)

	for i := 1; i <= n; i++ {
		result = append(result, uint(i))
	}

	return result
}

func TestExtraCost(t *testing.T) {
	tests := []struct {
		name         string
		limit        int
		priceCents   int64
		selected     int
		wantCount    int
		wantCents    int64
		wantExtraMsg string
	}{
		{name: "under limit", limit: 20, priceCents: 1000, selected: 5, wantCount: 0, wantCents: 0, wantExtraMsg: ""},
		{name: "at limit", limit: 20, priceCents: 1000, selected: 20, wantCount: 0, wantCents: 0, wantExtraMsg: ""},
		{name: "one over", limit: 20, priceCents: 1000, selected: 21, wantCount: 1, wantCents: 1000, wantExtraMsg: "+1 foto extra (R$ 10.00)"},
		{name: "three over", limit: 20, priceCents: 1000, selected: 23, wantCount: 3, wantCents: 3000, wantExtraMsg: "+3 fotos extras (R$ 30.00)"},
		{name: "zero limit", limit: 0, priceCents: 250, selected: 3, wantCount: 3, wantCents: 750, wantExtraMsg: "+3 fotos extras (R$ 7.50)"},
		{name: "free extras", limit: 2, priceCents: 0, selected: 4, wantCount: 2, wantCents: 0, wantExtraMsg: "+2 fotos extras (R$ 0.00)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := models.Session{
				PackageLimit:        tt.limit,
				ExtraUnitPriceCents: tt.priceCents,
				SelectedPhotoIDs:    selectedIDs(tt.selected),
			}

			assert.Equal(t, tt.wantCount, session.ExtraPhotoCount())
			assert.Equal(t, tt.wantCents, session.ExtraCostCents())
			assert.GreaterOrEqual(t, session.ExtraCostCents(), int64(0))
			assert.Equal(t, tt.wantExtraMsg, session.ExtraInfo())
		})
	}
}

func TestSelectionOpen(t *testing.T) {
	open := map[models.SessionStatus]bool{
		models.SessionStatusPending:    true,
		models.SessionStatusInProgress: true,
		models.SessionStatusSubmitted:  false,
		models.SessionStatusDelivered:  false,
		models.SessionStatusExpired:    false,
	}

	for status, want := range open {
		session := models.Session{Status: status}
		assert.Equal(t, want, session.SelectionOpen(), string(status))
	}
}

func TestWatermarkLiftsOnlyWhenDelivered(t *testing.T) {
	session := models.Session{Status: models.SessionStatusSubmitted}
	assert.True(t, session.IsWatermarked())

	session.Status = models.SessionStatusDelivered
	assert.False(t, session.IsWatermarked())
}

func TestDeadlinePassed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&models.Session{}).DeadlinePassed(now))
	assert.True(t, (&models.Session{Deadline: &past}).DeadlinePassed(now))
	assert.True(t, (&models.Session{Deadline: &now}).DeadlinePassed(now))
	assert.False(t, (&models.Session{Deadline: &future}).DeadlinePassed(now))
}
