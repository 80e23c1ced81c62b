package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	access := services.NewAccessService(services.AccessServiceConfig{})
	seen := map[string]bool{}

	for i := 0; i < 200; i++ {
		code, err := access.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 8)

		for _, r := range code {
			assert.True(t, strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r), "unexpected rune %q", r)
		}

		seen[code] = true
	}

	assert.Greater(t, len(seen), 190)
}

func TestResolveSessionCodeIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.newSession(t, services.NewSession{Name: "Ensaio", PackageLimit: 10}, 1)

	id, err := f.access.ResolveSessionCode(ctx, f.tenant.ID, session.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, session.ID, id)

	_, crossErr := f.access.ResolveSessionCode(ctx, f.otherTenant.ID, session.AccessCode)
	_, missingErr := f.access.ResolveSessionCode(ctx, f.otherTenant.ID, "ZZZZZZZZ")

	assert.ErrorIs(t, crossErr, models.ErrNotFound)
	assert.ErrorIs(t, missingErr, models.ErrNotFound)
	assert.Equal(t, missingErr.Error(), crossErr.Error())
	assert.Equal(t, models.ReasonCodeInvalid, models.ReasonOf(crossErr))
}

func TestResolveSessionCodeNormalizesInput(t *testing.T) {
	f := newFixture(t)
	session := f.newSession(t, services.NewSession{Name: "Ensaio"}, 0)

	id, err := f.access.ResolveSessionCode(context.Background(), f.tenant.ID, "  "+strings.ToLower(session.AccessCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, session.ID, id)
}

func TestVerifySessionRejectsCodeOfAnotherSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.newSession(t, services.NewSession{Name: "First"}, 0)
	second := f.newSession(t, services.NewSession{Name: "Second"}, 0)

	require.NoError(t, f.access.VerifySession(ctx, f.tenant.ID, first.ID, first.AccessCode))

	err := f.access.VerifySession(ctx, f.tenant.ID, first.ID, second.AccessCode)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInactiveSessionDoesNotResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.newSession(t, services.NewSession{Name: "Ensaio"}, 0)

	require.NoError(t, f.sessions.Deactivate(ctx, f.tenant.ID, session.ID))

	_, err := f.access.ResolveSessionCode(ctx, f.tenant.ID, session.AccessCode)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDraftAlbumDoesNotResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	album, err := f.albums.Create(ctx, f.tenant.ID, services.NewAlbum{Name: "Draft"})
	require.NoError(t, err)

	_, err = f.access.ResolveAlbumCode(ctx, f.tenant.ID, album.AccessCode)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.albums.AddSheet(ctx, f.tenant.ID, album.ID, services.NewSheet{ImageKey: "sheet-01.jpg"})
	require.NoError(t, err)

	_, err = f.albums.Send(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)

	id, err := f.access.ResolveAlbumCode(ctx, f.tenant.ID, album.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, album.ID, id)

	_, err = f.access.ResolveAlbumCode(ctx, f.otherTenant.ID, album.AccessCode)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
