package studio

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

type StudioControllerConfig struct {
	AlbumService        services.AlbumServicer
	Assets              services.AssetServicer
	NotificationService services.NotificationServicer
	SessionService      services.SessionServicer
	StudioSession       sessions.Session[*httpio.StudioUser]
	TenantService       services.TenantServicer
}

/*
StudioController serves the provider's side: login, managing sessions and
albums, and reading notifications. Every handler except Login runs behind
the studio middleware and is scoped to the logged-in tenant.
*/
type StudioController struct {
	albumService        services.AlbumServicer
	notificationService services.NotificationServicer
	sessionService      services.SessionServicer
	studioSession       sessions.Session[*httpio.StudioUser]
	tenantService       services.TenantServicer
	urls                viewmodels.URLFunc
}

func NewStudioController(config StudioControllerConfig) StudioController {
	return StudioController{
		albumService:        config.AlbumService,
		notificationService: config.NotificationService,
		sessionService:      config.SessionService,
		studioSession:       config.StudioSession,
		tenantService:       config.TenantService,
		urls:                httpio.AssetURLs(config.Assets),
	}
}

/*
POST /studio/login
*/
func (c StudioController) Login(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.LoginRequest{}

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	tenant, err := c.tenantService.Authenticate(r.Context(), request.Tenant, request.Password)
	if err != nil {
		slog.Info("studio login failed", "tenant", request.Tenant)
		httpio.WriteError(w, r, models.NotFound("invalid tenant or password"))
		return
	}

	user := &httpio.StudioUser{
		TenantID: tenant.ID,
		Slug:     tenant.Slug,
		Name:     tenant.Name,
	}

	if err = c.studioSession.Set(r, user); err != nil {
		slog.Error("error setting studio session", "error", err)
	}

	if err = c.studioSession.Save(w, r); err != nil {
		slog.Error("error saving studio session", "error", err)
	}

	httpio.OK(w, viewmodels.LoginResponse{Tenant: tenant.Slug, Name: tenant.Name})
}

/*
POST /studio/logout
*/
func (c StudioController) Logout(w http.ResponseWriter, r *http.Request) {
	_ = c.studioSession.Destroy(w, r)
	_ = c.studioSession.Save(w, r)
	httpio.NoContent(w)
}

/*
GET /studio/sessions
*/
func (c StudioController) ListSessions(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)

	list, err := c.sessionService.List(r.Context(), user.TenantID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, slices.Map(list, func(session *models.Session, index int) viewmodels.StudioSessionView {
		return viewmodels.NewStudioSessionView(session, c.urls)
	}))
}

/*
POST /studio/sessions
*/
func (c StudioController) CreateSession(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.NewSessionRequest{}
	user := httpio.GetStudioUserFromContext(r)

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	input := services.NewSession{
		Name:                request.Name,
		SessionType:         request.SessionType,
		SessionDate:         request.SessionDate,
		CoverPhoto:          request.CoverPhoto,
		Mode:                request.Mode,
		PackageLimit:        request.PackageLimit,
		ExtraUnitPriceCents: request.ExtraUnitPriceCents,
		Deadline:            request.Deadline,
	}

	input.Normalize()

	if err := httpio.Validate(&input); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	session, err := c.sessionService.Create(r.Context(), user.TenantID, input)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	slog.Info("session created", "tenantID", user.TenantID, "sessionID", session.ID)
	httpio.Created(w, viewmodels.NewStudioSessionView(session, c.urls))
}

/*
GET /studio/sessions/{id}
*/
func (c StudioController) GetSession(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	session, err := c.sessionService.Get(r.Context(), user.TenantID, sessionID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewStudioSessionView(session, c.urls))
}

/*
DELETE /studio/sessions/{id}
*/
func (c StudioController) DeleteSession(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.sessionService.Delete(r.Context(), user.TenantID, sessionID); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	slog.Info("session deleted", "tenantID", user.TenantID, "sessionID", sessionID)
	httpio.NoContent(w)
}

/*
POST /studio/sessions/{id}/photos
*/
func (c StudioController) AddPhoto(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.NewPhotoRequest{}
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	input := services.NewPhoto{
		OriginalKey:  request.OriginalKey,
		ThumbnailKey: request.ThumbnailKey,
	}

	if _, err := c.sessionService.AddPhoto(r.Context(), user.TenantID, sessionID, input); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	c.GetSession(w, r)
}

/*
PUT /studio/sessions/{id}/deadline
*/
func (c StudioController) SetDeadline(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.DeadlineRequest{}
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	session, err := c.sessionService.SetDeadline(r.Context(), user.TenantID, sessionID, request.Deadline)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewStudioSessionView(session, c.urls))
}

/*
POST /studio/sessions/{id}/reopen
*/
func (c StudioController) Reopen(w http.ResponseWriter, r *http.Request) {
	c.sessionTransition(w, r, c.sessionService.Reopen)
}

/*
POST /studio/sessions/{id}/deliver
*/
func (c StudioController) Deliver(w http.ResponseWriter, r *http.Request) {
	c.sessionTransition(w, r, c.sessionService.Deliver)
}

/*
POST /studio/sessions/{id}/deactivate
*/
func (c StudioController) Deactivate(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.sessionService.Deactivate(r.Context(), user.TenantID, sessionID); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	c.GetSession(w, r)
}

/*
POST /studio/sessions/{id}/photos/{photoId}/comments
*/
func (c StudioController) CommentOnPhoto(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.CommentRequest{}
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")
	photoID := httphelpers.GetFromRequest[uint](r, "photoId")

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	comment, err := c.sessionService.AddComment(r.Context(), user.TenantID, sessionID, photoID, models.CommentAuthorAdmin, request.Body)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.Created(w, viewmodels.NewCommentView(*comment))
}

/*
GET /studio/albums
*/
func (c StudioController) ListAlbums(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)

	list, err := c.albumService.List(r.Context(), user.TenantID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, slices.Map(list, func(album *models.Album, index int) viewmodels.StudioAlbumView {
		return viewmodels.NewStudioAlbumView(album, c.urls)
	}))
}

/*
POST /studio/albums
*/
func (c StudioController) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.NewAlbumRequest{}
	user := httpio.GetStudioUserFromContext(r)

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	album, err := c.albumService.Create(r.Context(), user.TenantID, services.NewAlbum{
		Name:        request.Name,
		ClientRef:   request.ClientRef,
		WelcomeText: request.WelcomeText,
	})

	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	slog.Info("album created", "tenantID", user.TenantID, "albumID", album.ID)
	httpio.Created(w, viewmodels.NewStudioAlbumView(album, c.urls))
}

/*
GET /studio/albums/{id}
*/
func (c StudioController) GetAlbum(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	album, err := c.albumService.Get(r.Context(), user.TenantID, albumID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewStudioAlbumView(album, c.urls))
}

/*
DELETE /studio/albums/{id}
*/
func (c StudioController) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.albumService.Delete(r.Context(), user.TenantID, albumID); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	slog.Info("album deleted", "tenantID", user.TenantID, "albumID", albumID)
	httpio.NoContent(w)
}

/*
POST /studio/albums/{id}/sheets
*/
func (c StudioController) AddSheet(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.NewSheetRequest{}
	user := httpio.GetStudioUserFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	if _, err := c.albumService.AddSheet(r.Context(), user.TenantID, albumID, services.NewSheet{ImageKey: request.ImageKey}); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	c.GetAlbum(w, r)
}

/*
POST /studio/albums/{id}/send
*/
func (c StudioController) SendAlbum(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	album, err := c.albumService.Send(r.Context(), user.TenantID, albumID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	slog.Info("album sent", "tenantID", user.TenantID, "albumID", albumID)
	httpio.OK(w, viewmodels.NewStudioAlbumView(album, c.urls))
}

/*
POST /studio/albums/{id}/sheets/{sheetId}/comments
*/
func (c StudioController) CommentOnSheet(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.CommentRequest{}
	user := httpio.GetStudioUserFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")
	sheetID := httphelpers.GetFromRequest[uint](r, "sheetId")

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	comment, err := c.albumService.AddComment(r.Context(), user.TenantID, albumID, sheetID, models.CommentAuthorAdmin, request.Body)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.Created(w, viewmodels.NewCommentView(*comment))
}

/*
GET /studio/notifications
*/
func (c StudioController) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)
	limit := httphelpers.GetFromRequest[int](r, "limit")

	list, err := c.notificationService.List(r.Context(), user.TenantID, limit)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewNotificationViews(list))
}

/*
GET /studio/notifications/unread-count
*/
func (c StudioController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)

	count, err := c.notificationService.UnreadCount(r.Context(), user.TenantID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.UnreadCountResponse{Count: count})
}

/*
POST /studio/notifications/read-all
*/
func (c StudioController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := httpio.GetStudioUserFromContext(r)

	updated, err := c.notificationService.MarkAllRead(r.Context(), user.TenantID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.MarkAllReadResponse{Updated: updated})
}

func (c StudioController) sessionTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, tenantID, sessionID uint) (*models.Session, error)) {
	user := httpio.GetStudioUserFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	session, err := transition(r.Context(), user.TenantID, sessionID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewStudioSessionView(session, c.urls))
}
