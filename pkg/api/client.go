package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"carbonseed.io/console/pkg/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 10 << 20
)

// ClientConfig holds the configuration for the Client.
type ClientConfig struct {
	Logger *slog.Logger

	// HTTPClient overrides the default transport (optional).
	HTTPClient *http.Client

	// BaseURL is the backend root, e.g. http://localhost:8000.
	BaseURL string

	// Timeout applies when HTTPClient is not set.
	Timeout time.Duration
}

// Client talks to the Carbonseed REST backend. It holds no session state:
// every authenticated call takes the bearer token explicitly.
type Client struct {
	logger  *slog.Logger
	http    *http.Client
	base    *url.URL
	metrics *metrics.APIClientMetrics
}

// NewClient creates a new backend Client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		logger: cfg.Logger,
		http:   httpClient,
		base:   base,
	}, nil
}

// SetMetrics sets the metrics collector for this client.
func (c *Client) SetMetrics(m *metrics.APIClientMetrics) {
	c.metrics = m
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Token, error) {
	var tok Token
	if err := c.do(ctx, call{name: "login", method: http.MethodPost, path: "/auth/login", body: creds}, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &tok, nil
}

// Me returns the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, call{name: "me", method: http.MethodGet, path: "/auth/me", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Users lists all accounts. Admin only.
func (c *Client) Users(ctx context.Context, token string) ([]User, error) {
	var users []User
	err := c.do(ctx, call{name: "users", method: http.MethodGet, path: "/auth/users", token: token}, &users)
	return users, err
}

// UpdateUserRole changes the role of user id.
func (c *Client) UpdateUserRole(ctx context.Context, token string, id int, role Role) error {
	return c.do(ctx, call{
		name:   "update_user_role",
		method: http.MethodPut,
		path:   fmt.Sprintf("/auth/users/%d/role", id),
		query:  url.Values{"role": {string(role)}},
		token:  token,
	}, nil)
}

// Factories lists the factories visible to token.
func (c *Client) Factories(ctx context.Context, token string) ([]Factory, error) {
	var factories []Factory
	err := c.do(ctx, call{name: "factories", method: http.MethodGet, path: "/factories", token: token}, &factories)
	return factories, err
}

// Devices lists the devices visible to token.
func (c *Client) Devices(ctx context.Context, token string) ([]Device, error) {
	var devices []Device
	err := c.do(ctx, call{name: "devices", method: http.MethodGet, path: "/devices", token: token}, &devices)
	return devices, err
}

// Latest returns the fleet summary.
func (c *Client) Latest(ctx context.Context, token string) (*LatestData, error) {
	var latest LatestData
	if err := c.do(ctx, call{name: "latest", method: http.MethodGet, path: "/data/latest", token: token}, &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

// TimeSeries returns up to limit readings of one device.
func (c *Client) TimeSeries(ctx context.Context, token string, deviceID, limit int) ([]Reading, error) {
	var readings []Reading
	err := c.do(ctx, call{
		name:   "timeseries",
		method: http.MethodGet,
		path:   "/data/timeseries",
		query: url.Values{
			"device_id": {strconv.Itoa(deviceID)},
			"limit":     {strconv.Itoa(limit)},
		},
		token: token,
	}, &readings)
	return readings, err
}

// Alerts lists alerts, optionally filtered by status.
func (c *Client) Alerts(ctx context.Context, token string, status AlertStatus) ([]Alert, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}
	var alerts []Alert
	err := c.do(ctx, call{name: "alerts", method: http.MethodGet, path: "/alerts", query: query, token: token}, &alerts)
	return alerts, err
}

// Bulk posts a raw JSON document to one of the bulk endpoints. An accepted
// upload whose answer is not a BulkResult returns a nil result and no error.
func (c *Client) Bulk(ctx context.Context, token, endpoint string, payload json.RawMessage) (*BulkResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{name: "bulk", method: http.MethodPost, path: endpoint, token: token, body: payload}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var res BulkResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("bulk upload accepted with an unexpected answer", "endpoint", endpoint, "error", err)
		return nil, nil
	}
	return &res, nil
}

// BulkReadings posts readings to /data/bulk.
func (c *Client) BulkReadings(ctx context.Context, token string, readings []Reading) (*BulkResult, error) {
	payload, err := json.Marshal(struct {
		Readings []Reading `json:"readings"`
	}{Readings: readings})
	if err != nil {
		return nil, fmt.Errorf("failed to encode readings: %w", err)
	}
	return c.Bulk(ctx, token, "/data/bulk", payload)
}

// Report fetches a generated report as raw JSON.
func (c *Client) Report(ctx context.Context, token, reportType string) (json.RawMessage, error) {
	if !ValidReportType(reportType) {
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}
	var report json.RawMessage
	err := c.do(ctx, call{name: "report", method: http.MethodGet, path: "/reports/" + reportType, token: token}, &report)
	return report, err
}

type call struct {
	body   any
	query  url.Values
	name   string
	method string
	path   string
	token  string
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if c.metrics != nil {
		timer := prometheus.NewTimer(c.metrics.Duration.WithLabelValues(cl.name))
		defer timer.ObserveDuration()
	}

	u := c.base.JoinPath(cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", cl.name, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", cl.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(cl.name, "transport")
		c.logger.Debug("backend unreachable", "endpoint", cl.path, "error", err)
		return &TransportError{Endpoint: cl.path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.observe(cl.name, "transport")
		return &TransportError{Endpoint: cl.path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.observe(cl.name, statusClass(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("backend rejected request",
			"endpoint", cl.path,
			"status", resp.StatusCode,
		)
		return &StatusError{
			Endpoint:   cl.path,
			StatusCode: resp.StatusCode,
			Detail:     detailFromBody(raw),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	// Raw answers are handed over undecoded.
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], raw...)
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cl.name, err)
	}

	return nil
}

func (c *Client) observe(name, status string) {
	if c.metrics != nil {
		c.metrics.Calls.WithLabelValues(name, status).Inc()
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
