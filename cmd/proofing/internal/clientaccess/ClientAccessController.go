package clientaccess

import (
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
)

type ClientAccessControllerConfig struct {
	AccessService  services.AccessServicer
	AlbumService   services.AlbumServicer
	Assets         services.AssetServicer
	SessionService services.SessionServicer
}

/*
ClientAccessController serves everything a client holding an access code
can do. No session or token is kept: every request carries the code and
is checked against the tenant in the URL before anything else happens.
*/
type ClientAccessController struct {
	accessService  services.AccessServicer
	albumService   services.AlbumServicer
	sessionService services.SessionServicer
	urls           viewmodels.URLFunc
}

func NewClientAccessController(config ClientAccessControllerConfig) ClientAccessController {
	return ClientAccessController{
		accessService:  config.AccessService,
		albumService:   config.AlbumService,
		sessionService: config.SessionService,
		urls:           httpio.AssetURLs(config.Assets),
	}
}

/*
POST /t/{tenant}/sessions/verify
*/
func (c ClientAccessController) VerifySession(w http.ResponseWriter, r *http.Request) {
	tenant := httpio.GetTenantFromContext(r)

	sessionID, err := c.accessService.ResolveSessionCode(r.Context(), tenant.ID, code(r))
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.VerifyResponse{ID: sessionID})
}

/*
GET /t/{tenant}/sessions/{id}
*/
func (c ClientAccessController) GetSession(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, ok := c.verifySession(w, r)
	if !ok {
		return
	}

	session, err := c.sessionService.Get(r.Context(), tenantID, sessionID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewSessionView(session, c.urls))
}

/*
POST /t/{tenant}/sessions/{id}/toggle
*/
func (c ClientAccessController) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.ToggleRequest{}

	tenantID, sessionID, ok := c.verifySession(w, r)
	if !ok {
		return
	}

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	session, err := c.sessionService.ToggleSelection(r.Context(), tenantID, sessionID, request.PhotoID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewSessionView(session, c.urls))
}

/*
POST /t/{tenant}/sessions/{id}/submit
*/
func (c ClientAccessController) SubmitSelection(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, ok := c.verifySession(w, r)
	if !ok {
		return
	}

	session, err := c.sessionService.SubmitSelection(r.Context(), tenantID, sessionID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewSessionView(session, c.urls))
}

/*
POST /t/{tenant}/sessions/{id}/request-reopen
*/
func (c ClientAccessController) RequestReopen(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, ok := c.verifySession(w, r)
	if !ok {
		return
	}

	if err := c.sessionService.RequestReopen(r.Context(), tenantID, sessionID); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.NoContent(w)
}

/*
POST /t/{tenant}/sessions/{id}/photos/{photoId}/comments
*/
func (c ClientAccessController) CommentOnPhoto(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.CommentRequest{}

	tenantID, sessionID, ok := c.verifySession(w, r)
	if !ok {
		return
	}

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	photoID := httphelpers.GetFromRequest[uint](r, "photoId")

	comment, err := c.sessionService.AddComment(r.Context(), tenantID, sessionID, photoID, models.CommentAuthorClient, request.Body)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.Created(w, viewmodels.NewCommentView(*comment))
}

/*
POST /t/{tenant}/albums/verify
*/
func (c ClientAccessController) VerifyAlbum(w http.ResponseWriter, r *http.Request) {
	tenant := httpio.GetTenantFromContext(r)

	albumID, err := c.accessService.ResolveAlbumCode(r.Context(), tenant.ID, code(r))
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.VerifyResponse{ID: albumID})
}

/*
GET /t/{tenant}/albums/{id}
*/
func (c ClientAccessController) GetAlbum(w http.ResponseWriter, r *http.Request) {
	tenantID, albumID, ok := c.verifyAlbum(w, r)
	if !ok {
		return
	}

	album, err := c.albumService.Get(r.Context(), tenantID, albumID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewAlbumView(album, c.urls))
}

/*
POST /t/{tenant}/albums/{id}/sheets/{sheetId}/approve
*/
func (c ClientAccessController) ApproveSheet(w http.ResponseWriter, r *http.Request) {
	tenantID, albumID, ok := c.verifyAlbum(w, r)
	if !ok {
		return
	}

	sheetID := httphelpers.GetFromRequest[uint](r, "sheetId")

	album, err := c.albumService.ApproveSheet(r.Context(), tenantID, albumID, sheetID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewAlbumView(album, c.urls))
}

/*
POST /t/{tenant}/albums/{id}/sheets/{sheetId}/revision
*/
func (c ClientAccessController) RequestRevision(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.RevisionRequest{}

	tenantID, albumID, ok := c.verifyAlbum(w, r)
	if !ok {
		return
	}

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, models.Validation(models.ReasonRevisionNeedsComment))
		return
	}

	sheetID := httphelpers.GetFromRequest[uint](r, "sheetId")

	album, err := c.albumService.RequestRevision(r.Context(), tenantID, albumID, sheetID, request.Comment)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewAlbumView(album, c.urls))
}

/*
POST /t/{tenant}/albums/{id}/sheets/{sheetId}/comments
*/
func (c ClientAccessController) CommentOnSheet(w http.ResponseWriter, r *http.Request) {
	request := viewmodels.CommentRequest{}

	tenantID, albumID, ok := c.verifyAlbum(w, r)
	if !ok {
		return
	}

	if err := httpio.ReadJSON(r, &request); err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	sheetID := httphelpers.GetFromRequest[uint](r, "sheetId")

	comment, err := c.albumService.AddComment(r.Context(), tenantID, albumID, sheetID, models.CommentAuthorClient, request.Body)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.Created(w, viewmodels.NewCommentView(*comment))
}

/*
POST /t/{tenant}/albums/{id}/approve-all
*/
func (c ClientAccessController) ApproveAll(w http.ResponseWriter, r *http.Request) {
	tenantID, albumID, ok := c.verifyAlbum(w, r)
	if !ok {
		return
	}

	album, err := c.albumService.ApproveAll(r.Context(), tenantID, albumID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}

	httpio.OK(w, viewmodels.NewAlbumView(album, c.urls))
}

func (c ClientAccessController) verifySession(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	tenant := httpio.GetTenantFromContext(r)
	sessionID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.accessService.VerifySession(r.Context(), tenant.ID, sessionID, code(r)); err != nil {
		httpio.WriteError(w, r, err)
		return 0, 0, false
	}

	return tenant.ID, sessionID, true
}

func (c ClientAccessController) verifyAlbum(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	tenant := httpio.GetTenantFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.accessService.VerifyAlbum(r.Context(), tenant.ID, albumID, code(r)); err != nil {
		httpio.WriteError(w, r, err)
		return 0, 0, false
	}

	return tenant.ID, albumID, true
}

func code(r *http.Request) string {
	return httphelpers.GetFromRequest[string](r, "code")
}
