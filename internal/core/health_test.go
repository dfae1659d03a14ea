package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubProbe struct {
	name string
	err  error
}

func (p *stubProbe) Name() string                    { return p.name }
func (p *stubProbe) Check(ctx context.Context) error { return p.err }

type hangingProbe struct{ name string }

func (p *hangingProbe) Name() string { return p.name }
func (p *hangingProbe) Check(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func runHealth(t *testing.T, s *Server) (*http.Response, healthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := w.Result()
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return resp, body
}

func TestHandleHealth_NoProbes(t *testing.T) {
	s := newTestServer(t)

	resp, body := runHealth(t, s)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body.Status != "healthy" {
		t.Errorf("body status = %q", body.Status)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{
		&stubProbe{name: "database"},
		&stubProbe{name: "mail"},
	}

	resp, body := runHealth(t, s)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body.Components["database"].Status != "healthy" {
		t.Errorf("database = %+v", body.Components["database"])
	}
	if body.Components["mail"].Status != "healthy" {
		t.Errorf("mail = %+v", body.Components["mail"])
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{
		&stubProbe{name: "database", err: errors.New("connection refused")},
		&stubProbe{name: "mail"},
	}

	resp, body := runHealth(t, s)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if body.Status != "unhealthy" {
		t.Errorf("body status = %q", body.Status)
	}
	if body.Components["database"].Message != "connection refused" {
		t.Errorf("database message = %q", body.Components["database"].Message)
	}
	if body.Components["mail"].Status != "healthy" {
		t.Errorf("mail = %+v", body.Components["mail"])
	}
}

func TestHandleHealth_ProbeTimeout(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{&hangingProbe{name: "database"}}

	resp, body := runHealth(t, s)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if body.Components["database"].Status != "unhealthy" {
		t.Errorf("database = %+v", body.Components["database"])
	}
}

func TestHandleHealth_ProbePanicIsContained(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{&panicProbe{}}

	resp, body := runHealth(t, s)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if body.Components["flaky"].Status != "unhealthy" {
		t.Errorf("flaky = %+v", body.Components["flaky"])
	}
}

type panicProbe struct{}

func (p *panicProbe) Name() string                    { return "flaky" }
func (p *panicProbe) Check(ctx context.Context) error { panic("probe exploded") }
