package missionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sidequest/internal/domain"
)

// Client is a minimal Sidequest HTTP API client. It satisfies the wizard's
// mission-creation collaborator against a real backend.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateMission publishes a mission attributed to the given device.
func (c *Client) CreateMission(ctx context.Context, payload domain.MissionInput, ownerDeviceID string) (domain.Mission, error) {
	_ = ownerDeviceID // attribution travels in the bearer token's subject
	var resp domain.Mission
	err := c.do(ctx, http.MethodPost, "v0/missions", payload, &resp)
	return resp, err
}

// GetMission fetches a mission by id.
func (c *Client) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	var resp domain.Mission
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/missions/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListMissions returns missions, optionally filtered by tag.
func (c *Client) ListMissions(ctx context.Context, tag string) ([]domain.Mission, error) {
	endpoint := "v0/missions"
	if tag != "" {
		endpoint += "?tag=" + url.QueryEscape(tag)
	}
	var resp struct {
		Missions []domain.Mission `json:"missions"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Missions, err
}

// Events returns recent backend events.
func (c *Client) Events(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	endpoint := "v0/events"
	sep := "?"
	if limit > 0 {
		endpoint += fmt.Sprintf("%slimit=%d", sep, limit)
		sep = "&"
	}
	if evtType != "" {
		endpoint += sep + "type=" + url.QueryEscape(evtType)
	}
	var resp struct {
		Events []domain.Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

// Health checks backend reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "v0/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
