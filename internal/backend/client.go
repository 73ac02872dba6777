package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

const (
	profileSecretHeader = "profile-secret"
	maxErrorBody        = 64 << 10
)

// Observer receives one event per backend call.
type Observer interface {
	ObserveBackendCall(operation, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	ProfileSecret string
	Timeout       time.Duration
	Observer      Observer
	HTTPClient    *http.Client
}

// Client wraps interactions with the pointage REST API.
type Client struct {
	baseURL       string
	profileSecret string
	httpClient    *http.Client
	observer      Observer
	lists         singleflight.Group
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		profileSecret: opts.ProfileSecret,
		httpClient:    httpClient,
		observer:      opts.Observer,
	}
}

// SignInResponse is the body returned by POST /auth/signin.
type SignInResponse struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context, username, password string) (SignInResponse, error) {
	var out SignInResponse
	err := c.do(ctx, call{
		operation: "signin",
		method:    http.MethodPost,
		path:      "/auth/signin",
		body:      signInRequest{Username: username, Password: password},
		out:       &out,
	})
	return out, err
}

// List fetches every record of the descriptor's entity. Identical concurrent
// fetches made with the same token share one request.
func (c *Client) List(ctx context.Context, token string, d entity.Descriptor) ([]entity.Record, error) {
	key := d.Tag.String() + "|" + token
	resultChan := c.lists.DoChan(key, func() (interface{}, error) {
		var raw json.RawMessage
		err := c.do(context.WithoutCancel(ctx), call{
			operation:     d.Tag.String() + ".list",
			method:        http.MethodGet,
			path:          d.Endpoints.List,
			token:         token,
			profileSecret: d.Endpoints.ProfileSecret,
			out:           &raw,
		})
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 || string(raw) == "null" {
			return []entity.Record{}, nil
		}
		return d.DecodeList(raw)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entity.Record), nil
	}
}

// Create submits payload to the descriptor's create endpoint.
func (c *Client) Create(ctx context.Context, token string, d entity.Descriptor, payload any) error {
	return c.do(ctx, call{
		operation:     d.Tag.String() + ".create",
		method:        http.MethodPost,
		path:          d.Endpoints.Create,
		token:         token,
		profileSecret: d.Endpoints.ProfileSecret,
		body:          payload,
	})
}

// Update submits payload to the descriptor's update endpoint for id.
func (c *Client) Update(ctx context.Context, token string, d entity.Descriptor, id string, payload any) error {
	return c.do(ctx, call{
		operation:     d.Tag.String() + ".update",
		method:        http.MethodPut,
		path:          d.Endpoints.UpdatePath(url.PathEscape(id)),
		token:         token,
		profileSecret: d.Endpoints.ProfileSecret,
		body:          payload,
	})
}

// Delete removes record id.
func (c *Client) Delete(ctx context.Context, token string, d entity.Descriptor, id string) error {
	return c.do(ctx, call{
		operation:     d.Tag.String() + ".delete",
		method:        http.MethodDelete,
		path:          d.Endpoints.DeletePath(url.PathEscape(id)),
		token:         token,
		profileSecret: d.Endpoints.ProfileSecret,
	})
}

// PointageDetails returns the per-day attendance of matricule for an ISO week.
func (c *Client) PointageDetails(ctx context.Context, token, matricule string, year, week int) ([]entity.PointageDetail, error) {
	query := url.Values{}
	query.Set("matricule", matricule)
	query.Set("annee", strconv.Itoa(year))
	query.Set("semaine", strconv.Itoa(week))

	var out []entity.PointageDetail
	err := c.do(ctx, call{
		operation: "pointage.details",
		method:    http.MethodGet,
		path:      "/pointage/details?" + query.Encode(),
		token:     token,
		out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type call struct {
	operation     string
	method        string
	path          string
	token         string
	profileSecret bool
	body          any
	out           any
}

func (c *Client) do(ctx context.Context, in call) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveBackendCall(in.operation, outcome(err), time.Since(start))
		}
	}()

	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", in.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}
	if in.profileSecret && c.profileSecret != "" {
		req.Header.Set(profileSecretHeader, c.profileSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNetworkUnavailable, in.method, in.path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", in.operation, ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if in.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read %s: %w", in.operation, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, in.out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", in.operation, err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func outcome(err error) string {
	var serverErr *ServerError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNetworkUnavailable):
		return "unreachable"
	case errors.As(err, &serverErr):
		return "status_" + strconv.Itoa(serverErr.Status)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}
