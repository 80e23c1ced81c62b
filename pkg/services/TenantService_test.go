package services_test

import (
	"context"
	"testing"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenants := services.NewTenantService(services.TenantServiceConfig{DB: f.db})

	tenant, err := tenants.Authenticate(ctx, " Studio-A ", "secret-a")
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, tenant.ID)

	_, wrongPassword := tenants.Authenticate(ctx, "studio-a", "secret-b")
	_, unknownSlug := tenants.Authenticate(ctx, "studio-z", "secret-a")

	assert.ErrorIs(t, wrongPassword, models.ErrNotFound)
	assert.ErrorIs(t, unknownSlug, models.ErrNotFound)
}

func TestCreateTenantRejectsDuplicateSlug(t *testing.T) {
	f := newFixture(t)
	tenants := services.NewTenantService(services.TenantServiceConfig{DB: f.db})

	_, err := tenants.Create(context.Background(), "STUDIO-A", "Copy", "", "pw")
	assert.ErrorIs(t, err, models.ErrValidation)

	all, err := tenants.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPreviewKey(t *testing.T) {
	assert.Equal(t, "1/7/thumbnails/IMG_0001.jpg", services.PreviewKey("1/7/originals/IMG_0001.jpg"))
}
