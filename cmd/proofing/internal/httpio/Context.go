package httpio

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

type contextKey string

const (
	tenantKey contextKey = "tenant"
	studioKey contextKey = "studio"
)

/*
StudioUser is what the studio cookie carries once a provider has logged in.
*/
type StudioUser struct {
	TenantID uint
	Slug     string
	Name     string
}

func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

/*
GetTenantFromContext returns the tenant resolved from the URL. Client
routes are only reachable through the tenant middleware, so a missing value
means a wiring mistake and yields an empty tenant that matches nothing.
*/
func GetTenantFromContext(r *http.Request) *models.Tenant {
	if result, ok := r.Context().Value(tenantKey).(*models.Tenant); ok {
		return result
	}

	return &models.Tenant{}
}

func WithStudioUser(ctx context.Context, user *StudioUser) context.Context {
	return context.WithValue(ctx, studioKey, user)
}

func GetStudioUserFromContext(r *http.Request) *StudioUser {
	if result, ok := r.Context().Value(studioKey).(*StudioUser); ok {
		return result
	}

	return &StudioUser{}
}

/*
AssetURLs adapts the asset collaborator to the view models. A key that
cannot be turned into a URL renders as an empty link.
*/
func AssetURLs(assets services.AssetServicer) viewmodels.URLFunc {
	return func(key string) string {
		u, err := assets.URL(key)

		if err != nil {
			slog.Error("error building asset URL", "key", key, "error", err)
			return ""
		}

		return u
	}
}
