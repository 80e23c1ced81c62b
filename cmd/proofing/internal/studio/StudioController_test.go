package studio_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/studio"
	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urlAssets struct{}

func (urlAssets) Delete(keys []string) error                  { return nil }
func (urlAssets) EnsureBucket() error                         { return nil }
func (urlAssets) Get(key string) (io.ReadCloser, error)       { return nil, fmt.Errorf("not found") }
func (urlAssets) ListImages(string) ([]services.Asset, error) { return nil, nil }
func (urlAssets) Put(string, io.Reader) error                 { return nil }
func (urlAssets) Stat(string) (*services.Asset, error)        { return nil, nil }
func (urlAssets) URL(key string) (string, error)              { return "https://assets.test/" + key, nil }

type harness struct {
	mux      *http.ServeMux
	tenant   *models.Tenant
	sessions services.SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open("file:" + filepath.Join(t.TempDir(), "proofing.db"))
	require.NoError(t, err)

	tenants := services.NewTenantService(services.TenantServiceConfig{DB: db})
	tenant, err := tenants.Create(context.Background(), "studio-a", "Studio A", "a@example.com", "secret")
	require.NoError(t, err)

	access := services.NewAccessService(services.AccessServiceConfig{DB: db})
	notifications := services.NewNotificationService(services.NotificationServiceConfig{DB: db})

	sessions := services.NewSessionService(services.SessionServiceConfig{
		AccessService: access,
		Assets:        urlAssets{},
		DB:            db,
		Notifications: notifications,
	})

	albums := services.NewAlbumService(services.AlbumServiceConfig{
		AccessService: access,
		Assets:        urlAssets{},
		DB:            db,
		Notifications: notifications,
	})

	controller := studio.NewStudioController(studio.StudioControllerConfig{
		AlbumService:        albums,
		Assets:              urlAssets{},
		NotificationService: notifications,
		SessionService:      sessions,
		TenantService:       tenants,
	})

	user := &httpio.StudioUser{TenantID: tenant.ID, Slug: tenant.Slug, Name: tenant.Name}

	loggedIn := func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(httpio.WithStudioUser(r.Context(), user)))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /studio/sessions", loggedIn(controller.ListSessions))
	mux.Handle("POST /studio/sessions", loggedIn(controller.CreateSession))
	mux.Handle("GET /studio/sessions/{id}", loggedIn(controller.GetSession))
	mux.Handle("DELETE /studio/sessions/{id}", loggedIn(controller.DeleteSession))
	mux.Handle("POST /studio/sessions/{id}/photos", loggedIn(controller.AddPhoto))
	mux.Handle("PUT /studio/sessions/{id}/deadline", loggedIn(controller.SetDeadline))
	mux.Handle("POST /studio/sessions/{id}/deliver", loggedIn(controller.Deliver))
	mux.Handle("POST /studio/sessions/{id}/reopen", loggedIn(controller.Reopen))
	mux.Handle("POST /studio/sessions/{id}/deactivate", loggedIn(controller.Deactivate))
	mux.Handle("POST /studio/albums", loggedIn(controller.CreateAlbum))
	mux.Handle("POST /studio/albums/{id}/sheets", loggedIn(controller.AddSheet))
	mux.Handle("POST /studio/albums/{id}/send", loggedIn(controller.SendAlbum))
	mux.Handle("GET /studio/notifications", loggedIn(controller.ListNotifications))
	mux.Handle("GET /studio/notifications/unread-count", loggedIn(controller.UnreadCount))
	mux.Handle("POST /studio/notifications/read-all", loggedIn(controller.MarkAllRead))

	return &harness{mux: mux, tenant: tenant, sessions: sessions}
}

func (h *harness) call(t *testing.T, method, path string, body any, dest any) int {
	t.Helper()

	var reader io.Reader = http.NoBody

	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	if dest != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	}

	return rec.Code
}

func TestCreateSessionValidates(t *testing.T) {
	h := newHarness(t)
	problem := viewmodels.ErrorResponse{}

	code := h.call(t, http.MethodPost, "/studio/sessions", viewmodels.NewSessionRequest{Name: "x", Mode: "slideshow"}, &problem)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(models.KindValidation), problem.Error)

	code = h.call(t, http.MethodPost, "/studio/sessions", viewmodels.NewSessionRequest{PackageLimit: 3}, &problem)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, problem.Message, "name")
}

func TestSessionLifecycleFromStudio(t *testing.T) {
	h := newHarness(t)
	created := viewmodels.StudioSessionView{}

	code := h.call(t, http.MethodPost, "/studio/sessions", viewmodels.NewSessionRequest{
		Name:                "Ensaio",
		PackageLimit:        10,
		ExtraUnitPriceCents: 1000,
	}, &created)

	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, string(models.SessionModeSelection), created.Mode)
	assert.Len(t, created.AccessCode, 8)
	assert.True(t, created.IsActive)

	path := fmt.Sprintf("/studio/sessions/%d", created.ID)
	withPhoto := viewmodels.StudioSessionView{}

	code = h.call(t, http.MethodPost, path+"/photos", viewmodels.NewPhotoRequest{OriginalKey: "1/1/originals/a.jpg"}, &withPhoto)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, withPhoto.Photos, 1)
	assert.Equal(t, "https://assets.test/1/1/originals/a.jpg", withPhoto.Photos[0].OriginalURL)

	problem := viewmodels.ErrorResponse{}
	code = h.call(t, http.MethodPost, path+"/deliver", nil, &problem)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, models.ReasonNotSubmitted, problem.Message)

	_, err := h.sessions.SubmitSelection(context.Background(), h.tenant.ID, created.ID)
	require.NoError(t, err)

	reopened := viewmodels.StudioSessionView{}
	code = h.call(t, http.MethodPost, path+"/reopen", nil, &reopened)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(models.SessionStatusInProgress), reopened.Status)

	deactivated := viewmodels.StudioSessionView{}
	code = h.call(t, http.MethodPost, path+"/deactivate", nil, &deactivated)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, deactivated.IsActive)

	list := []viewmodels.StudioSessionView{}
	code = h.call(t, http.MethodGet, "/studio/sessions", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1)

	code = h.call(t, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code = h.call(t, http.MethodGet, path, nil, &problem)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSendAlbumNeedsSheets(t *testing.T) {
	h := newHarness(t)
	album := viewmodels.StudioAlbumView{}

	code := h.call(t, http.MethodPost, "/studio/albums", viewmodels.NewAlbumRequest{Name: "Wedding"}, &album)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, string(models.AlbumStatusDraft), album.Status)

	path := fmt.Sprintf("/studio/albums/%d", album.ID)
	problem := viewmodels.ErrorResponse{}

	code = h.call(t, http.MethodPost, path+"/send", nil, &problem)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, models.ReasonAlbumHasNoSheets, problem.Message)

	code = h.call(t, http.MethodPost, path+"/sheets", viewmodels.NewSheetRequest{ImageKey: "sheet-1.jpg"}, &album)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, album.Sheets, 1)

	code = h.call(t, http.MethodPost, path+"/send", nil, &album)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(models.AlbumStatusSent), album.Status)
}

func TestNotificationRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Create(ctx, h.tenant.ID, services.NewSession{Name: "Ensaio"})
	require.NoError(t, err)

	_, err = h.sessions.SubmitSelection(ctx, h.tenant.ID, session.ID)
	require.NoError(t, err)

	unread := viewmodels.UnreadCountResponse{}
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/studio/notifications/unread-count", nil, &unread))
	assert.Equal(t, 1, unread.Count)

	list := []viewmodels.NotificationView{}
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/studio/notifications?limit=10", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, string(models.NotificationSelectionSubmitted), list[0].Type)
	assert.False(t, list[0].IsRead)

	marked := viewmodels.MarkAllReadResponse{}
	require.Equal(t, http.StatusOK, h.call(t, http.MethodPost, "/studio/notifications/read-all", nil, &marked))
	assert.Equal(t, int64(1), marked.Updated)

	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/studio/notifications/unread-count", nil, &unread))
	assert.Equal(t, 0, unread.Count)
}
