package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Health(ctx context.Context) error { return p.err }

func TestHandleHealth_HealthySummary(t *testing.T) {
	mgr := seedProgress(t, 1000, 1050)
	s := NewServer(NewMonitor([]string{"polygon"}, mgr, &stubQueue{}), &stubPinger{}, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sum summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if sum.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", sum.Status)
	}
	if sum.Database != "ok" {
		t.Errorf("expected database ok, got %q", sum.Database)
	}
	if sum.Sources[StatusHealthy] != 1 {
		t.Errorf("expected 1 healthy source, got %+v", sum.Sources)
	}
}

func TestHandleHealth_DatabaseUnreachableIsCritical(t *testing.T) {
	mgr := seedProgress(t, 1000, 1050)
	pinger := &stubPinger{err: errors.New("dial tcp: connection refused")}
	s := NewServer(NewMonitor([]string{"polygon"}, mgr, &stubQueue{}), pinger, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var sum summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if sum.Status != StatusCritical {
		t.Errorf("expected critical, got %s", sum.Status)
	}
	if sum.Database != "unreachable" {
		t.Errorf("expected database unreachable, got %q", sum.Database)
	}
}

func TestHandleHealth_NoDatabaseOmitsProbe(t *testing.T) {
	mgr := seedProgress(t, 1000, 1050)
	s := NewServer(NewMonitor([]string{"polygon"}, mgr, &stubQueue{}), nil, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sum summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if sum.Database != "" {
		t.Errorf("expected no database field in memory mode, got %q", sum.Database)
	}
}

func TestHandleDetailed_IncludesPerSourceReport(t *testing.T) {
	mgr := seedProgress(t, 1000, 500_000)
	s := NewServer(NewMonitor([]string{"polygon"}, mgr, &stubQueue{}), &stubPinger{}, 0)

	rec := httptest.NewRecorder()
	s.handleDetailed(rec, httptest.NewRequest("GET", "/health/detailed", nil))

	var resp struct {
		Summary summary                 `json:"summary"`
		Sources map[string]SourceHealth `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	src, ok := resp.Sources["polygon"]
	if !ok {
		t.Fatal("expected polygon in detailed report")
	}
	if src.Status != StatusCritical {
		t.Errorf("expected critical source, got %s", src.Status)
	}
	if resp.Summary.Status != StatusCritical {
		t.Errorf("expected critical summary, got %s", resp.Summary.Status)
	}
}
