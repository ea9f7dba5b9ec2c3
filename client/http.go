package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zidanaetrna/givebit-sdk/session"
)

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	Timeout   time.Duration // default 10s
}

// API makes REST calls to the GiveBit backend. Every request carries
// the bearer token and project id headers.
type API struct {
	baseURL   string
	apiKey    string
	projectID string
	client    *http.Client
}

// NewAPI creates a client targeting cfg.BaseURL.
func NewAPI(cfg APIConfig) *API {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &API{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		projectID: cfg.ProjectID,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateSessionRequest is the payload for creating a donation session.
type CreateSessionRequest struct {
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	ChainID   int64             `json:"chainId"`
	Recipient string            `json:"recipient"`
	Donor     string            `json:"donor,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CreateSession sends POST /v1/donations. Retries are safe: each call
// carries a fresh Idempotency-Key.
func (a *API) CreateSession(ctx context.Context, req CreateSessionRequest) (*session.Session, error) {
	var out session.Session
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	if err := a.post(ctx, "/v1/donations", req, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches GET /v1/donations/{id}.
func (a *API) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var out session.Session
	if err := a.get(ctx, "/v1/donations/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches GET /v1/donations, most recent first. A limit of 0
// leaves the page size to the server.
func (a *API) History(ctx context.Context, limit int) ([]session.Session, error) {
	path := "/v1/donations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []session.Session
	if err := a.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	a.setHeaders(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) post(ctx context.Context, path string, body, out any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	a.setHeaders(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (a *API) setHeaders(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	if a.projectID != "" {
		req.Header.Set("X-Project-ID", a.projectID)
	}
}
