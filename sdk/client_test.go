// SPDX-License-Identifier: MIT

package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btouchard/eureka/pkg/api"
)

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func TestNew_GeneratesInstanceID(t *testing.T) {
	client, err := New(Config{
		ServerURL: "http://localhost:8761",
		AppName:   "orders",
		Port:      8080,
		IPAddr:    "10.0.0.5",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	id := client.InstanceID()
	if id == "" {
		t.Fatal("InstanceID should not be empty")
	}
	if !strings.HasSuffix(id, ":orders:8080") {
		t.Errorf("InstanceID = %q, want suffix ':orders:8080'", id)
	}

	// Stable across repeated reads
	if client.InstanceID() != id {
		t.Error("InstanceID should be stable across reads")
	}
}

func TestNew_SuppliedInstanceID(t *testing.T) {
	client, err := New(Config{
		ServerURL:  "http://localhost:8761",
		AppName:    "orders",
		InstanceID: "my-fixed-id",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.InstanceID() != "my-fixed-id" {
		t.Errorf("InstanceID = %q, want 'my-fixed-id'", client.InstanceID())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing server url", Config{AppName: "orders"}},
		{"missing app name", Config{ServerURL: "http://localhost:8761"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	client, err := New(Config{
		ServerURL: "http://localhost:8761/",
		AppName:   "orders",
		Port:      8080,
		IPAddr:    "10.0.0.5",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.hostname != "10.0.0.5" {
		t.Errorf("hostname = %q, want IP fallback '10.0.0.5'", client.hostname)
	}
	if client.statusPageURL != "http://10.0.0.5:8080/info" {
		t.Errorf("statusPageURL = %q, want default info page", client.statusPageURL)
	}
	if client.baseURL != "http://localhost:8761/eureka" {
		t.Errorf("baseURL = %q, want trailing slash stripped and /eureka appended", client.baseURL)
	}
}

// =============================================================================
// REGISTRATION TESTS
// =============================================================================

func TestRegister_SendsInstanceDescriptor(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := New(Config{
		ServerURL: server.URL,
		AppName:   "orders",
		Port:      8080,
		IPAddr:    "10.0.0.5",
	})

	if err := client.Register(context.Background(), RegisterOptions{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/eureka/apps/orders" {
		t.Errorf("path = %q, want /eureka/apps/orders", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var envelope api.InstanceEnvelope
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("body is not a valid instance envelope: %v", err)
	}

	inst := envelope.Instance
	if inst.App != "orders" {
		t.Errorf("app = %q, want 'orders'", inst.App)
	}
	if inst.IPAddr != "10.0.0.5" {
		t.Errorf("ipAddr = %q, want '10.0.0.5'", inst.IPAddr)
	}
	if inst.InstanceID == "" {
		t.Error("instanceId should not be empty")
	}
	if inst.Port == nil || inst.Port.Value != 8080 || !inst.Port.Enabled {
		t.Errorf("port = %+v, want {$:8080 @enabled:true}", inst.Port)
	}
	if inst.VipAddress != "orders" {
		t.Errorf("vipAddress = %q, want 'orders'", inst.VipAddress)
	}
	if inst.DataCenterInfo.Name != "MyOwn" {
		t.Errorf("dataCenterInfo.name = %q, want 'MyOwn'", inst.DataCenterInfo.Name)
	}
	if inst.DataCenterInfo.Class != "com.netflix.appinfo.MyDataCenterInfo" {
		t.Errorf("dataCenterInfo.@class = %q", inst.DataCenterInfo.Class)
	}
	if inst.LeaseInfo == nil || inst.LeaseInfo.DurationInSecs != 60 || inst.LeaseInfo.RenewalIntervalInSecs != 15 {
		t.Errorf("leaseInfo = %+v, want default 60/15", inst.LeaseInfo)
	}
	if inst.StatusPageURL != "http://10.0.0.5:8080/info" {
		t.Errorf("statusPageUrl = %q, want default info page", inst.StatusPageURL)
	}
}

func TestRegister_VerbatimInstanceIDAndMetadata(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := New(Config{
		ServerURL:  server.URL,
		AppName:    "orders",
		InstanceID: "orders-01",
	})

	err := client.Register(context.Background(), RegisterOptions{
		Metadata:        map[string]any{"zone": "eu-west-1"},
		LeaseDuration:   90,
		RenewalInterval: 30,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var envelope api.InstanceEnvelope
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if envelope.Instance.InstanceID != "orders-01" {
		t.Errorf("instanceId = %q, want verbatim 'orders-01'", envelope.Instance.InstanceID)
	}
	if envelope.Instance.Metadata["zone"] != "eu-west-1" {
		t.Errorf("metadata = %v, want zone=eu-west-1", envelope.Instance.Metadata)
	}
	if envelope.Instance.LeaseInfo.DurationInSecs != 90 {
		t.Errorf("durationInSecs = %d, want 90", envelope.Instance.LeaseInfo.DurationInSecs)
	}
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestWriteOps_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"200 ok", http.StatusOK, false},
		{"201 created", http.StatusCreated, false},
		{"204 no content", http.StatusNoContent, false},
		{"404 not found", http.StatusNotFound, true},
		{"500 server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
			err := client.Renew(context.Background())

			if tt.wantErr {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want *APIError", err)
				}
				if apiErr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAPIError_PreservesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("instance not found"))
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	err := client.Deregister(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.NotFound() {
		t.Error("NotFound() should be true for a 404")
	}
	if apiErr.Body != "instance not found" {
		t.Errorf("Body = %q, want server payload preserved", apiErr.Body)
	}
}

func TestRenew_404DoesNotMutateIdentity(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders", Port: 8080, IPAddr: "10.0.0.5"})
	idBefore := client.InstanceID()

	if err := client.Renew(context.Background()); err == nil {
		t.Fatal("expected 404 error")
	}
	if client.InstanceID() != idBefore {
		t.Error("a failed renew must not change the instance id")
	}

	// A fresh register with the same identity succeeds independently.
	if err := client.Register(context.Background(), RegisterOptions{}); err != nil {
		t.Errorf("Register() after 404 renew: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestTransportError_NotWrapped(t *testing.T) {
	// Point at a closed server so the dial fails.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	err := client.Renew(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("transport failures must not be reclassified as APIError")
	}
}

// =============================================================================
// LIFECYCLE PATH TESTS
// =============================================================================

func TestLifecycleOps_Paths(t *testing.T) {
	client := func(serverURL string) *Client {
		c, _ := New(Config{ServerURL: serverURL, AppName: "orders", InstanceID: "orders-01"})
		return c
	}

	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{
			name:       "renew",
			call:       func(c *Client) error { return c.Renew(context.Background()) },
			wantMethod: http.MethodPut,
			wantPath:   "/eureka/apps/orders/orders-01",
		},
		{
			name:       "deregister",
			call:       func(c *Client) error { return c.Deregister(context.Background()) },
			wantMethod: http.MethodDelete,
			wantPath:   "/eureka/apps/orders/orders-01",
		},
		{
			name: "set status override",
			call: func(c *Client) error {
				return c.SetStatusOverride(context.Background(), api.StatusOutOfService)
			},
			wantMethod: http.MethodPut,
			wantPath:   "/eureka/apps/orders/orders-01/status",
			wantQuery:  "value=OUT_OF_SERVICE",
		},
		{
			name:       "remove status override",
			call:       func(c *Client) error { return c.RemoveStatusOverride(context.Background()) },
			wantMethod: http.MethodDelete,
			wantPath:   "/eureka/apps/orders/orders-01/status",
		},
		{
			name:       "update metadata",
			call:       func(c *Client) error { return c.UpdateMetadata(context.Background(), "zone", "eu") },
			wantMethod: http.MethodPut,
			wantPath:   "/eureka/apps/orders/orders-01/metadata",
			wantQuery:  "zone=eu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath, gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			if err := tt.call(client(server.URL)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotMethod != tt.wantMethod {
				t.Errorf("method = %s, want %s", gotMethod, tt.wantMethod)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
			if gotQuery != tt.wantQuery {
				t.Errorf("query = %q, want %q", gotQuery, tt.wantQuery)
			}
		})
	}
}

func TestSetStatusOverride_RejectsUnknownValue(t *testing.T) {
	client, _ := New(Config{ServerURL: "http://localhost:8761", AppName: "orders"})
	if err := client.SetStatusOverride(context.Background(), api.Status("BROKEN")); err == nil {
		t.Error("expected validation error for unknown status")
	}
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestApp_DefaultsToOwnAppName(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(api.ApplicationEnvelope{
			Application: api.Application{Name: "ORDERS"},
		})
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	app, err := client.App(context.Background(), "")
	if err != nil {
		t.Fatalf("App() error = %v", err)
	}
	if gotPath != "/eureka/apps/orders" {
		t.Errorf("path = %q, want the configured app name", gotPath)
	}
	if app.Name != "ORDERS" {
		t.Errorf("app.Name = %q, want 'ORDERS'", app.Name)
	}
}

func TestApps_ParsesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eureka/apps" {
			t.Errorf("path = %q, want /eureka/apps", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		_ = json.NewEncoder(w).Encode(api.ApplicationsEnvelope{
			Applications: api.Applications{
				Applications: []api.Application{
					{Name: "ORDERS", Instances: []api.Instance{{InstanceID: "orders-01", App: "ORDERS"}}},
					{Name: "BILLING"},
				},
			},
		})
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	apps, err := client.Apps(context.Background())
	if err != nil {
		t.Fatalf("Apps() error = %v", err)
	}
	if len(apps.Applications) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps.Applications))
	}
	if apps.Applications[0].Instances[0].InstanceID != "orders-01" {
		t.Errorf("instance id = %q", apps.Applications[0].Instances[0].InstanceID)
	}
}

func TestQueries_DefaultIdentity(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders", InstanceID: "orders-01"})
	ctx := context.Background()

	if _, err := client.AppInstance(ctx, "", ""); err != nil {
		t.Fatalf("AppInstance() error = %v", err)
	}
	if _, err := client.Instance(ctx, ""); err != nil {
		t.Fatalf("Instance() error = %v", err)
	}
	if _, err := client.ByVIP(ctx, ""); err != nil {
		t.Fatalf("ByVIP() error = %v", err)
	}
	if _, err := client.BySVIP(ctx, ""); err != nil {
		t.Fatalf("BySVIP() error = %v", err)
	}

	want := []string{
		"/eureka/apps/orders/orders-01",
		"/eureka/instances/orders-01",
		"/eureka/vips/orders",
		"/eureka/svips/orders",
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("call %d path = %q, want %q", i, paths[i], p)
		}
	}
}

func TestQuery_ErrorOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such app", http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	_, err := client.App(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want *APIError with 404", err)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Renew(ctx); err == nil {
		t.Error("expected context error")
	}
}
