package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

type fakeReports struct {
	reportCalls int
	points      []core.ReportPoint
	series      []core.SeriesPoint
	notOwned    bool
}

func (f *fakeReports) Report(_ context.Context, q core.ReportQuery) ([]core.ReportPoint, error) {
	f.reportCalls++
	return f.points, nil
}

func (f *fakeReports) EntitySeries(_ context.Context, q core.SeriesQuery) ([]core.SeriesPoint, error) {
	if f.notOwned {
		return nil, nil
	}
	if f.series == nil {
		return []core.SeriesPoint{}, nil
	}
	return f.series, nil
}

func (f *fakeReports) KindSeries(_ context.Context, q core.SeriesQuery) ([]core.SeriesPoint, error) {
	return f.series, nil
}

type fakeDispatcher struct {
	calls  int
	owners []int64
}

func (f *fakeDispatcher) DispatchRebuild(_ context.Context, ownerID int64, reason string) error {
	f.calls++
	f.owners = append(f.owners, ownerID)
	return nil
}

func newTestServer(reports *fakeReports, dispatcher *fakeDispatcher) *Server {
	return NewServer(":0", reports, dispatcher, 16, time.Minute)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&fakeReports{}, &fakeDispatcher{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReportRequiresOwner(t *testing.T) {
	s := newTestServer(&fakeReports{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "owner") {
		t.Fatalf("body = %s, want owner error", rec.Body.String())
	}
}

func TestReportReturnsPoints(t *testing.T) {
	reports := &fakeReports{points: []core.ReportPoint{{
		PeriodStart: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Key:         core.EntityKey(core.KindBank, 1),
		Name:        "Checking",
		Amount:      decimal.RequireFromString("70.25"),
	}}}
	s := newTestServer(reports, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/report?owner=1&kinds=bank", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Points []struct {
			PeriodStart string `json:"period_start"`
			Name        string `json:"name"`
			Amount      string `json:"amount"`
		} `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(resp.Points))
	}
	p := resp.Points[0]
	if p.PeriodStart != "2024-03-01" || p.Name != "Checking" || p.Amount != "70.25" {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestReportInvalidKind(t *testing.T) {
	s := newTestServer(&fakeReports{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/report?owner=1&kinds=stocks", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReportCachedUntilRebuild(t *testing.T) {
	reports := &fakeReports{points: []core.ReportPoint{}}
	dispatcher := &fakeDispatcher{}
	s := newTestServer(reports, dispatcher)

	get := func() {
		req := httptest.NewRequest(http.MethodGet, "/api/report?owner=1&kinds=bank", nil)
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("report status = %d", rec.Code)
		}
	}

	get()
	get()
	if reports.reportCalls != 1 {
		t.Fatalf("expected second read served from cache, got %d service calls", reports.reportCalls)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/rebuild", strings.NewReader(`{"owner_id": 1, "reason": "test"}`))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("rebuild status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if dispatcher.calls != 1 || dispatcher.owners[0] != 1 {
		t.Fatalf("dispatcher calls = %+v", dispatcher)
	}

	get()
	if reports.reportCalls != 2 {
		t.Fatalf("expected cache purged by rebuild, got %d service calls", reports.reportCalls)
	}
}

func TestReportCacheKeyIgnoresParamOrder(t *testing.T) {
	reports := &fakeReports{points: []core.ReportPoint{}}
	s := newTestServer(reports, &fakeDispatcher{})

	for _, query := range []string{"owner=1&kinds=bank", "kinds=bank&owner=1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/report?"+query, nil)
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("report status = %d for %q", rec.Code, query)
		}
	}

	if reports.reportCalls != 1 {
		t.Fatalf("expected one service call for reordered params, got %d", reports.reportCalls)
	}
}

func TestEntitySeriesNotFound(t *testing.T) {
	s := newTestServer(&fakeReports{notOwned: true}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/series?owner=1&kind=bank&entity_id=5", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestKindSeries(t *testing.T) {
	reports := &fakeReports{series: []core.SeriesPoint{{
		PeriodStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(125),
	}}}
	s := newTestServer(reports, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/series/total?owner=1&kind=bank", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "2024-01-01") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRebuildRejectsBadBody(t *testing.T) {
	s := newTestServer(&fakeReports{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/rebuild", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/rebuild", strings.NewReader(`{"owner_id": 0}`))
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRebuildMethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeReports{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/rebuild", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
