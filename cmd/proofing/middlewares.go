package main

import (
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

/*
newTenantMiddleware resolves the {tenant} path segment. An unknown tenant is
answered exactly like a bad access code.
*/
func newTenantMiddleware(tenantService services.TenantServicer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := httphelpers.GetFromRequest[string](r, "tenant")

			tenant, err := tenantService.GetBySlug(r.Context(), slug)
			if err != nil {
				if models.KindOf(err) == models.KindNotFound {
					err = models.NotFound(models.ReasonCodeInvalid)
				}

				httpio.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(httpio.WithTenant(r.Context(), tenant)))
		})
	}
}

func newStudioAccessMiddleware(studioSession sessions.Session[*httpio.StudioUser]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := studioSession.Get(r)

			if err != nil || user == nil || user.TenantID == 0 {
				httpio.WriteJSON(w, http.StatusUnauthorized, viewmodels.ErrorResponse{
					Error:   "unauthorized",
					Message: "login required",
				})

				return
			}

			next.ServeHTTP(w, r.WithContext(httpio.WithStudioUser(r.Context(), user)))
		})
	}
}
