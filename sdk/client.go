// SPDX-License-Identifier: MIT

// Package sdk is a client for Eureka-compatible service registries:
// register an instance, renew its lease on a schedule, deregister on
// shutdown and query the registry for other instances.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btouchard/eureka/pkg/api"
)

// Config holds the identity and connection settings for a Client.
type Config struct {
	// ServerURL is the base URL of the registry, without the /eureka
	// suffix (e.g. "http://localhost:8761").
	ServerURL string

	// AppName is used to register and to find the app by name.
	AppName string

	// Port the application is reachable on.
	Port int

	// IPAddr is the remotely accessible IP address.
	IPAddr string

	// Hostname of the machine. If not reachable by DNS use the IP;
	// defaults to IPAddr when empty.
	Hostname string

	// InstanceID pins the identity to an existing registration. When
	// empty a unique id is generated once at construction.
	InstanceID string

	// HealthCheckURL is optional, but if set it should answer 2xx.
	HealthCheckURL string

	// StatusPageURL defaults to http://{ip}:{port}/info. Some server
	// UIs crash without it, even though the endpoint need not exist.
	StatusPageURL string

	// HTTPClient is the transport handle the client issues requests
	// on. It is owned by the caller and shared for connection
	// pooling; nil falls back to a client with a 10s timeout.
	HTTPClient *http.Client

	// Logger for debug output, nil means slog.Default().
	Logger *slog.Logger
}

// RegisterOptions tunes a Register call.
type RegisterOptions struct {
	// Metadata is an open key/value mapping attached to the instance.
	Metadata map[string]any

	// LeaseDuration is the lease length in seconds (default 60).
	// Renewals must arrive within this window or the registry evicts
	// the instance.
	LeaseDuration int

	// RenewalInterval tells the server how often to expect renewals,
	// in seconds (default 15).
	RenewalInterval int
}

// Client talks to one Eureka registry on behalf of one instance
// identity. Every operation is a single HTTP round trip; there are no
// retries and no backoff. Operations are safe for concurrent use, the
// client itself holds no mutable state.
type Client struct {
	baseURL        string
	appName        string
	port           int
	ipAddr         string
	hostname       string
	instanceID     string
	healthCheckURL string
	statusPageURL  string
	http           *http.Client
	logger         *slog.Logger
}

// New builds a Client and resolves its instance identity. The id is
// fixed here, once, for the lifetime of the client: registration,
// renewal, deregistration and status calls are always scoped to it.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("eureka: ServerURL is required")
	}
	if cfg.AppName == "" {
		return nil, fmt.Errorf("eureka: AppName is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname = cfg.IPAddr
	}

	statusPage := cfg.StatusPageURL
	if statusPage == "" && cfg.IPAddr != "" {
		statusPage = fmt.Sprintf("http://%s:%d/info", cfg.IPAddr, cfg.Port)
		logger.Debug("status page not provided, defaulting", "url", statusPage)
	}

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = newInstanceID(cfg.AppName, cfg.Port)
		logger.Debug("generated instance id", "instance_id", instanceID, "app", cfg.AppName)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.ServerURL, "/") + "/eureka",
		appName:        cfg.AppName,
		port:           cfg.Port,
		ipAddr:         cfg.IPAddr,
		hostname:       hostname,
		instanceID:     instanceID,
		healthCheckURL: cfg.HealthCheckURL,
		statusPageURL:  statusPage,
		http:           httpClient,
		logger:         logger,
	}, nil
}

// InstanceID returns the identity the client operates on.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// AppName returns the app name the client operates on.
func (c *Client) AppName() string {
	return c.appName
}

// Register announces the instance to the registry. The lease is
// limited: renew it on a schedule shorter than opts.LeaseDuration, and
// deregister before shutdown to avoid the gateway handing out 500s.
func (c *Client) Register(ctx context.Context, opts RegisterOptions) error {
	if opts.LeaseDuration == 0 {
		opts.LeaseDuration = 60
	}
	if opts.RenewalInterval == 0 {
		opts.RenewalInterval = 15
	}

	inst := api.Instance{
		InstanceID: c.instanceID,
		App:        c.appName,
		HostName:   c.hostname,
		IPAddr:     c.ipAddr,
		VipAddress: c.appName,
		Port: &api.Port{
			Value:   c.port,
			Enabled: c.port != 0,
		},
		LeaseInfo: &api.LeaseInfo{
			DurationInSecs:        opts.LeaseDuration,
			RenewalIntervalInSecs: opts.RenewalInterval,
		},
		DataCenterInfo: api.DefaultDataCenterInfo(),
		HealthCheckURL: c.healthCheckURL,
		StatusPageURL:  c.statusPageURL,
		Metadata:       opts.Metadata,
	}

	body, err := json.Marshal(api.InstanceEnvelope{Instance: inst})
	if err != nil {
		return fmt.Errorf("eureka: encode instance descriptor: %w", err)
	}

	c.logger.Debug("registering", "app", c.appName, "instance_id", c.instanceID)
	return c.do(ctx, http.MethodPost, "/apps/"+url.PathEscape(c.appName), body, nil)
}

// Renew extends the instance's lease. A NotFound APIError means the
// lease already expired server-side; treat it as "needs
// re-registration", not as a transient fault.
func (c *Client) Renew(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, c.instancePath(), nil, nil)
}

// Deregister removes the instance from the registry. Calling it when
// already deregistered yields a clean NotFound error.
func (c *Client) Deregister(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.instancePath(), nil, nil)
}

// SetStatusOverride forces the instance status independently of the
// registry's computed health. Generally used to pull an instance out
// of commission, not to fake an UP.
func (c *Client) SetStatusOverride(ctx context.Context, status api.Status) error {
	if !status.Valid() {
		return fmt.Errorf("eureka: invalid status %q", status)
	}
	path := c.instancePath() + "/status?value=" + url.QueryEscape(status.String())
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// RemoveStatusOverride clears a previously set status override.
func (c *Client) RemoveStatusOverride(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.instancePath()+"/status", nil, nil)
}

// UpdateMetadata sets a single metadata key on the instance.
func (c *Client) UpdateMetadata(ctx context.Context, key, value string) error {
	path := c.instancePath() + "/metadata?" + url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// Apps lists every application known to the registry.
func (c *Client) Apps(ctx context.Context) (*api.Applications, error) {
	var out api.ApplicationsEnvelope
	if err := c.do(ctx, http.MethodGet, "/apps", nil, &out); err != nil {
		return nil, err
	}
	return &out.Applications, nil
}

// App returns one application and its instances. An empty name
// defaults to the client's own app name.
func (c *Client) App(ctx context.Context, appName string) (*api.Application, error) {
	if appName == "" {
		appName = c.appName
	}
	var out api.ApplicationEnvelope
	if err := c.do(ctx, http.MethodGet, "/apps/"+url.PathEscape(appName), nil, &out); err != nil {
		return nil, err
	}
	return &out.Application, nil
}

// AppInstance returns a specific instance, narrowed by app name.
// Empty parameters default to the client's own identity.
func (c *Client) AppInstance(ctx context.Context, appName, instanceID string) (*api.Instance, error) {
	if appName == "" {
		appName = c.appName
	}
	if instanceID == "" {
		instanceID = c.instanceID
	}
	path := "/apps/" + url.PathEscape(appName) + "/" + url.PathEscape(instanceID)
	var out api.InstanceEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Instance, nil
}

// Instance returns a specific instance without needing the app name.
func (c *Client) Instance(ctx context.Context, instanceID string) (*api.Instance, error) {
	if instanceID == "" {
		instanceID = c.instanceID
	}
	var out api.InstanceEnvelope
	if err := c.do(ctx, http.MethodGet, "/instances/"+url.PathEscape(instanceID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Instance, nil
}

// ByVIP lists all instances grouped under a virtual IP address. An
// empty vip defaults to the client's own app name.
func (c *Client) ByVIP(ctx context.Context, vipAddress string) (*api.Applications, error) {
	if vipAddress == "" {
		vipAddress = c.appName
	}
	var out api.ApplicationsEnvelope
	if err := c.do(ctx, http.MethodGet, "/vips/"+url.PathEscape(vipAddress), nil, &out); err != nil {
		return nil, err
	}
	return &out.Applications, nil
}

// BySVIP lists all instances grouped under a secure virtual IP
// address. An empty svip defaults to the client's own app name.
func (c *Client) BySVIP(ctx context.Context, svipAddress string) (*api.Applications, error) {
	if svipAddress == "" {
		svipAddress = c.appName
	}
	var out api.ApplicationsEnvelope
	if err := c.do(ctx, http.MethodGet, "/svips/"+url.PathEscape(svipAddress), nil, &out); err != nil {
		return nil, err
	}
	return &out.Applications, nil
}

func (c *Client) instancePath() string {
	return "/apps/" + url.PathEscape(c.appName) + "/" + url.PathEscape(c.instanceID)
}

// do performs one request against the registry. Any status in
// [400,600) becomes an *APIError carrying the status code and body;
// transport errors propagate untouched.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("eureka request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	c.logger.Debug("eureka response", "method", method, "path", path, "status", resp.StatusCode)

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("eureka: decode response: %w", err)
		}
	}
	return nil
}
