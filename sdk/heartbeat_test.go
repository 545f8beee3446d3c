// SPDX-License-Identifier: MIT

package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// recordingRegistry counts lifecycle calls and lets tests script the
// renewal responses.
type recordingRegistry struct {
	mu          sync.Mutex
	registers   int
	renews      int
	deregisters int
	renewStatus []int
}

func (r *recordingRegistry) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()

		switch req.Method {
		case http.MethodPost:
			r.registers++
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPut:
			status := http.StatusOK
			if r.renews < len(r.renewStatus) {
				status = r.renewStatus[r.renews]
			}
			r.renews++
			w.WriteHeader(status)
		case http.MethodDelete:
			r.deregisters++
			w.WriteHeader(http.StatusOK)
		}
	}
}

func (r *recordingRegistry) counts() (registers, renews, deregisters int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registers, r.renews, r.deregisters
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHeartbeat_RegistersThenRenews(t *testing.T) {
	registry := &recordingRegistry{}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders", InstanceID: "orders-01"})
	hb := NewHeartbeat(client, 10*time.Millisecond, RegisterOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Run(ctx) }()

	waitFor(t, func() bool {
		_, renews, _ := registry.counts()
		return renews >= 3
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	registers, _, deregisters := registry.counts()
	if registers != 1 {
		t.Errorf("registers = %d, want 1", registers)
	}
	if deregisters != 1 {
		t.Errorf("deregisters = %d, want deregistration on shutdown", deregisters)
	}
}

func TestHeartbeat_ReRegistersAfter404(t *testing.T) {
	registry := &recordingRegistry{renewStatus: []int{http.StatusNotFound}}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders", InstanceID: "orders-01"})
	hb := NewHeartbeat(client, 10*time.Millisecond, RegisterOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hb.Run(ctx) }()

	// Initial register, a 404 renew, then the re-register.
	waitFor(t, func() bool {
		registers, _, _ := registry.counts()
		return registers >= 2
	})
}

func TestHeartbeat_SurvivesRenewErrors(t *testing.T) {
	registry := &recordingRegistry{renewStatus: []int{
		http.StatusInternalServerError,
		http.StatusInternalServerError,
	}}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders", InstanceID: "orders-01"})
	hb := NewHeartbeat(client, 10*time.Millisecond, RegisterOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hb.Run(ctx) }()

	// The loop must keep ticking past the scripted failures.
	waitFor(t, func() bool {
		_, renews, _ := registry.counts()
		return renews >= 4
	})
}

func TestHeartbeat_InitialRegisterFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "registry full", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := New(Config{ServerURL: server.URL, AppName: "orders"})
	hb := NewHeartbeat(client, 10*time.Millisecond, RegisterOptions{}, nil)

	if err := hb.Run(context.Background()); err == nil {
		t.Error("Run() should surface the initial registration failure")
	}
}
