// SPDX-License-Identifier: AGPL-3.0-or-later

// Package http provides the Eureka REST endpoints. Handlers parse the
// resource paths and delegate to the application services.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/btouchard/eureka/internal/app"
	"github.com/btouchard/eureka/internal/domain"
	"github.com/btouchard/eureka/pkg/api"
)

// Handlers holds HTTP handlers and their dependencies.
type Handlers struct {
	registry *app.RegistryService
	stats    *app.StatsService
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers with the given services.
func NewHandlers(registry *app.RegistryService, stats *app.StatsService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		registry: registry,
		stats:    stats,
		logger:   logger,
	}
}

// Healthcheck returns a simple health status.
func (h *Handlers) Healthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Apps handles GET /eureka/apps — the full registry listing.
func (h *Handlers) Apps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	regs, err := h.registry.ListAll(r.Context())
	if err != nil {
		h.fail(w, "list apps", err)
		return
	}
	writeJSON(w, api.ApplicationsEnvelope{Applications: toWireApplications(regs)})
}

// AppsRoute dispatches the /eureka/apps/ subtree:
//
//	POST   /eureka/apps/{app}                    register
//	GET    /eureka/apps/{app}                    app listing
//	PUT    /eureka/apps/{app}/{id}               renew
//	DELETE /eureka/apps/{app}/{id}               deregister
//	GET    /eureka/apps/{app}/{id}               instance
//	PUT    /eureka/apps/{app}/{id}/status        set status override
//	DELETE /eureka/apps/{app}/{id}/status        clear status override
//	PUT    /eureka/apps/{app}/{id}/metadata      update metadata
func (h *Handlers) AppsRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/eureka/apps/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(segments) == 1 && segments[0] != "":
		h.appResource(w, r, segments[0])
	case len(segments) == 2:
		h.instanceResource(w, r, segments[0], segments[1])
	case len(segments) == 3 && segments[2] == "status":
		h.statusResource(w, r, segments[0], segments[1])
	case len(segments) == 3 && segments[2] == "metadata":
		h.metadataResource(w, r, segments[0], segments[1])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) appResource(w http.ResponseWriter, r *http.Request, appName string) {
	switch r.Method {
	case http.MethodPost:
		h.register(w, r, appName)
	case http.MethodGet:
		regs, err := h.registry.GetApp(r.Context(), appName)
		if err != nil {
			h.fail(w, "get app", err)
			return
		}
		apps := toWireApplications(regs)
		writeJSON(w, api.ApplicationEnvelope{Application: apps.Applications[0]})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request, appName string) {
	var envelope api.InstanceEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("invalid JSON", "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	inst := envelope.Instance
	if inst.App == "" {
		inst.App = appName
	}

	input := app.RegisterInput{
		InstanceID:     inst.InstanceID,
		AppName:        inst.App,
		Hostname:       inst.HostName,
		IPAddr:         inst.IPAddr,
		VIPAddress:     inst.VipAddress,
		SVIPAddress:    inst.SecureVipAddress,
		Status:         string(inst.Status),
		Metadata:       inst.Metadata,
		HealthCheckURL: inst.HealthCheckURL,
		StatusPageURL:  inst.StatusPageURL,
		HomePageURL:    inst.HomePageURL,
	}
	if inst.Port != nil {
		input.Port = inst.Port.Value
		input.PortEnabled = inst.Port.Enabled
	}
	if inst.SecurePort != nil {
		input.SecurePort = inst.SecurePort.Value
		input.SecurePortEnabled = inst.SecurePort.Enabled
	}
	if inst.LeaseInfo != nil {
		input.LeaseDurationSecs = inst.LeaseInfo.DurationInSecs
		input.RenewalIntervalSecs = inst.LeaseInfo.RenewalIntervalInSecs
	}

	if err := h.registry.Register(r.Context(), input); err != nil {
		h.fail(w, "register", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) instanceResource(w http.ResponseWriter, r *http.Request, appName, instanceID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodPut:
		if err := h.registry.Renew(ctx, appName, instanceID); err != nil {
			h.fail(w, "renew", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if err := h.registry.Deregister(ctx, appName, instanceID); err != nil {
			h.fail(w, "deregister", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		reg, err := h.registry.GetAppInstance(ctx, appName, instanceID)
		if err != nil {
			h.fail(w, "get instance", err)
			return
		}
		writeJSON(w, api.InstanceEnvelope{Instance: toWireInstance(reg)})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) statusResource(w http.ResponseWriter, r *http.Request, appName, instanceID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodPut:
		value := r.URL.Query().Get("value")
		if value == "" {
			http.Error(w, "Missing status value", http.StatusBadRequest)
			return
		}
		if err := h.registry.SetStatusOverride(ctx, appName, instanceID, value); err != nil {
			h.fail(w, "set status override", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if err := h.registry.ClearStatusOverride(ctx, appName, instanceID); err != nil {
			h.fail(w, "clear status override", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) metadataResource(w http.ResponseWriter, r *http.Request, appName, instanceID string) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if len(query) == 0 {
		http.Error(w, "Missing metadata parameters", http.StatusBadRequest)
		return
	}

	for key, values := range query {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		if err := h.registry.UpdateMetadata(r.Context(), appName, instanceID, key, value); err != nil {
			h.fail(w, "update metadata", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// InstancesRoute handles GET /eureka/instances/{id}.
func (h *Handlers) InstancesRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	instanceID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/eureka/instances/"), "/")
	if instanceID == "" {
		http.NotFound(w, r)
		return
	}

	reg, err := h.registry.GetInstance(r.Context(), instanceID)
	if err != nil {
		h.fail(w, "get instance", err)
		return
	}
	writeJSON(w, api.InstanceEnvelope{Instance: toWireInstance(reg)})
}

// VIPsRoute handles GET /eureka/vips/{vip}.
func (h *Handlers) VIPsRoute(w http.ResponseWriter, r *http.Request) {
	h.vipListing(w, r, "/eureka/vips/", h.registry.GetByVIP)
}

// SVIPsRoute handles GET /eureka/svips/{svip}.
func (h *Handlers) SVIPsRoute(w http.ResponseWriter, r *http.Request) {
	h.vipListing(w, r, "/eureka/svips/", h.registry.GetBySVIP)
}

func (h *Handlers) vipListing(
	w http.ResponseWriter,
	r *http.Request,
	prefix string,
	list func(ctx context.Context, addr string) ([]*domain.Registration, error),
) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if addr == "" {
		http.NotFound(w, r)
		return
	}

	regs, err := list(r.Context(), addr)
	if err != nil {
		h.fail(w, "list by vip", err)
		return
	}
	writeJSON(w, api.ApplicationsEnvelope{Applications: toWireApplications(regs)})
}

// AdminStats handles GET /api/v1/admin/stats.
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	writeJSON(w, stats)
}

// fail maps application errors onto HTTP status codes.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case app.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidRegistration), errors.Is(err, domain.ErrInvalidStatus):
		h.logger.Warn(op+" rejected", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(op+" failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
