package proofclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
	"github.com/goccy/go-json"
)

/*
Client talks to the client-facing routes of one tenant on behalf of a
person holding an access code. The code is sent on every call; the server
hands out no tokens.
*/
type Client struct {
	base   *url.URL
	tenant string
	code   string
	http   *http.Client
}

type ClientConfig struct {
	BaseURL    string
	Tenant     string
	Code       string
	HTTPClient *http.Client
}

func New(config ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(config.BaseURL)

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing base URL '%s': %w", config.BaseURL, err)
	}

	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		base:   base,
		tenant: strings.TrimSpace(config.Tenant),
		code:   strings.TrimSpace(config.Code),
		http:   httpClient,
	}, nil
}

func (c *Client) VerifySession(ctx context.Context) (uint, error) {
	result := viewmodels.VerifyResponse{}
	err := c.do(ctx, http.MethodPost, "sessions/verify", nil, &result)
	return result.ID, err
}

func (c *Client) GetSession(ctx context.Context, sessionID uint) (viewmodels.SessionView, error) {
	result := viewmodels.SessionView{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("sessions/%d", sessionID), nil, &result)
	return result, err
}

func (c *Client) ToggleSelection(ctx context.Context, sessionID, photoID uint) (viewmodels.SessionView, error) {
	result := viewmodels.SessionView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%d/toggle", sessionID), viewmodels.ToggleRequest{PhotoID: photoID}, &result)
	return result, err
}

func (c *Client) SubmitSelection(ctx context.Context, sessionID uint) (viewmodels.SessionView, error) {
	result := viewmodels.SessionView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%d/submit", sessionID), nil, &result)
	return result, err
}

func (c *Client) RequestReopen(ctx context.Context, sessionID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%d/request-reopen", sessionID), nil, nil)
}

func (c *Client) CommentOnPhoto(ctx context.Context, sessionID, photoID uint, body string) (viewmodels.CommentView, error) {
	result := viewmodels.CommentView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%d/photos/%d/comments", sessionID, photoID), viewmodels.CommentRequest{Body: body}, &result)
	return result, err
}

func (c *Client) VerifyAlbum(ctx context.Context) (uint, error) {
	result := viewmodels.VerifyResponse{}
	err := c.do(ctx, http.MethodPost, "albums/verify", nil, &result)
	return result.ID, err
}

func (c *Client) GetAlbum(ctx context.Context, albumID uint) (viewmodels.AlbumView, error) {
	result := viewmodels.AlbumView{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("albums/%d", albumID), nil, &result)
	return result, err
}

func (c *Client) ApproveSheet(ctx context.Context, albumID, sheetID uint) (viewmodels.AlbumView, error) {
	result := viewmodels.AlbumView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("albums/%d/sheets/%d/approve", albumID, sheetID), nil, &result)
	return result, err
}

func (c *Client) RequestRevision(ctx context.Context, albumID, sheetID uint, comment string) (viewmodels.AlbumView, error) {
	result := viewmodels.AlbumView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("albums/%d/sheets/%d/revision", albumID, sheetID), viewmodels.RevisionRequest{Comment: comment}, &result)
	return result, err
}

func (c *Client) CommentOnSheet(ctx context.Context, albumID, sheetID uint, body string) (viewmodels.CommentView, error) {
	result := viewmodels.CommentView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("albums/%d/sheets/%d/comments", albumID, sheetID), viewmodels.CommentRequest{Body: body}, &result)
	return result, err
}

func (c *Client) ApproveAll(ctx context.Context, albumID uint) (viewmodels.AlbumView, error) {
	result := viewmodels.AlbumView{}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("albums/%d/approve-all", albumID), nil, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var (
		err     error
		reader  io.Reader
		payload []byte
	)

	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("error encoding request for %s: %w", path, err)
		}

		reader = bytes.NewReader(payload)
	}

	values := url.Values{}
	values.Set("code", c.code)

	endpoint := *c.base
	endpoint.Path = c.base.Path + "/t/" + url.PathEscape(c.tenant) + "/" + path
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("error building request for %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Transient(err, models.ReasonTryAgain)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return models.Transient(err, "error decoding response for %s", path)
	}

	return nil
}

/*
decodeError maps a failed response back onto the workflow error kinds so
callers can use errors.Is the same way the server does.
*/
func decodeError(resp *http.Response) error {
	payload := viewmodels.ErrorResponse{}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return models.NotFound(payload.Message)
	case http.StatusConflict:
		return models.InvalidTransition(payload.Message)
	case http.StatusBadRequest:
		return models.Validation(payload.Message)
	case http.StatusTooManyRequests:
		return models.Transient(fmt.Errorf("status %d", resp.StatusCode), "too many attempts, wait a moment")
	default:
		return models.Transient(fmt.Errorf("status %d", resp.StatusCode), models.ReasonTryAgain)
	}
}
