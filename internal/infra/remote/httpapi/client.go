// Package httpapi implements the remote record store as a JSON client of the
// placekit record API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"placekit/internal/remote/core"
	"placekit/pkg/domain"
)

const (
	driverName = string(core.DriverHTTP)
	basePath   = "/v1/records/"
	maxErrBody = 4 << 10
)

// Client talks to a record API server rooted at baseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client. A nil httpClient selects http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// Driver returns the remote driver identifier.
func (c *Client) Driver() core.Driver { return core.DriverHTTP }

// ListResponse is the body of GET /v1/records/{type}.
type ListResponse struct {
	Records []domain.PlacedObject `json:"records"`
}

// DeleteAllResponse is the body of DELETE /v1/records/{type}.
type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("record api: %d %s", e.Code, e.Message)
}

func (c *Client) endpoint(recordType string, id ...string) string {
	u := c.baseURL + basePath + url.PathEscape(recordType)
	for _, seg := range id {
		u += "/" + url.PathEscape(seg)
	}
	return u
}

// FetchAll returns every record of recordType.
func (c *Client) FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error) {
	var out ListResponse
	if _, err := c.do(ctx, "fetch", http.MethodGet, c.endpoint(recordType), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Upsert creates or replaces a record.
func (c *Client) Upsert(ctx context.Context, recordType string, obj domain.PlacedObject) error {
	if obj.ID == "" {
		return fmt.Errorf("upsert %s: empty id", recordType)
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return &domain.SerializationError{Op: "encode record " + obj.ID, Err: err}
	}
	_, err = c.do(ctx, "upsert", http.MethodPut, c.endpoint(recordType, obj.ID), body, nil, http.StatusNoContent, http.StatusOK)
	return err
}

// Delete removes one record; a 404 reply reports false.
func (c *Client) Delete(ctx context.Context, recordType, id string) (bool, error) {
	code, err := c.do(ctx, "delete", http.MethodDelete, c.endpoint(recordType, id), nil, nil, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return code == http.StatusNoContent, nil
}

// DeleteAll removes every record of recordType.
func (c *Client) DeleteAll(ctx context.Context, recordType string) (int, error) {
	var out DeleteAllResponse
	if _, err := c.do(ctx, "delete_all", http.MethodDelete, c.endpoint(recordType), nil, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte, into any, accept ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, domain.Unavailable(driverName, op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if !accepted(resp.StatusCode, accept) {
		return resp.StatusCode, domain.Unavailable(driverName, op, readStatusError(resp))
	}
	if into != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return resp.StatusCode, &domain.SerializationError{Op: "decode " + op + " response", Err: err}
		}
	}
	return resp.StatusCode, nil
}

func accepted(code int, accept []int) bool {
	for _, want := range accept {
		if code == want {
			return true
		}
	}
	return false
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	var payload ErrorResponse
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
