// Package client talks to a qrlink gateway over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/api"
)

// Client calls the gateway endpoints. It implements qrlink.Storer so a
// Session can upload through a remote gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps gateway statuses back onto the qrlink sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return qrlink.ErrNotFound
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusRequestEntityTooLarge:
		return qrlink.ErrValidation
	case strings.Contains(strings.ToLower(e.Message), "not configured"):
		return qrlink.ErrStorageUnavailable
	default:
		return qrlink.ErrStoreFailed
	}
}

// Store uploads data through POST /store.
func (c *Client) Store(ctx context.Context, contentKey, displayName, mimeType string, data []byte) (*qrlink.StoreResult, error) {
	body := api.StoreFileRequest{
		FileID: contentKey,
		Name:   displayName,
		Type:   mimeType,
		Data:   qrlink.EncodeDataURI(mimeType, data),
	}

	var resp api.StoreFileResponse
	if err := c.postJSON(ctx, "/store", body, &resp); err != nil {
		return nil, err
	}
	return &qrlink.StoreResult{
		ContentKey: resp.FileID,
		Pathname:   qrlink.CanonicalKey(contentKey, displayName),
		URL:        resp.URL,
	}, nil
}

// Resolve asks the gateway to resolve a selection.
func (c *Client) Resolve(ctx context.Context, kind qrlink.ContentKind, urlText string, file *qrlink.UploadedFile) (*qrlink.Resolution, error) {
	var resp qrlink.Resolution
	err := c.postJSON(ctx, "/resolve", api.ResolveRequest{ContentType: string(kind), URL: urlText, File: file}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Diagnostics lists a few stored objects.
func (c *Client) Diagnostics(ctx context.Context) (*api.DiagnosticsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/diagnostics/blob", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var resp api.DiagnosticsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Locate returns where GET /file/{contentKey} redirects to. Gateways that
// serve bytes directly yield the locator URL itself.
func (c *Client) Locate(ctx context.Context, contentKey string) (string, error) {
	locator := c.baseURL + "/file/" + contentKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently:
		return resp.Header.Get("Location"), nil
	case resp.StatusCode == http.StatusOK:
		return locator, nil
	default:
		return "", newAPIError(resp)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))

	var errResp api.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
