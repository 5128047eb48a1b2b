package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"ioc-registry/pkg/database"
	"ioc-registry/pkg/models"
	"ioc-registry/pkg/threat"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "threats.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(threat.NewService(db, logger), logger)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateThreat(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/threats",
		`{"type": "IP", "value": "203.0.113.7", "severity": "High", "source": "Firewall-01"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]interface{}
	decodeBody(t, rec, &body)

	for _, key := range []string{"id", "type", "value", "severity", "source", "date_detected"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q key: %v", key, body)
		}
	}
	if body["value"] != "203.0.113.7" || body["type"] != "IP" || body["severity"] != "High" {
		t.Errorf("response = %v", body)
	}
	if body["source"] != "Firewall-01" {
		t.Errorf("source = %v, want Firewall-01", body["source"])
	}
}

func TestCreateThreat_NullSource(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/threats",
		`{"type": "Domain", "value": "c2.example.net", "severity": "Medium"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if source, ok := body["source"]; !ok || source != nil {
		t.Errorf("source = %v, want null", source)
	}
}

func TestCreateThreat_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/threats", `{"type": `)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestCreateThreat_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"whitespace value", `{"type": "IP", "value": "   ", "severity": "High"}`},
		{"unknown type", `{"type": "Botnet", "value": "203.0.113.9", "severity": "High"}`},
		{"lowercase severity", `{"type": "IP", "value": "203.0.113.9", "severity": "high"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/threats", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d, body %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
			}

			var body map[string]string
			decodeBody(t, rec, &body)
			if body["detail"] == "" {
				t.Error("error response missing detail")
			}
		})
	}
}

// TestThreatLifecycle walks the registry through a full create, conflict,
// fetch, delete and re-fetch sequence.
func TestThreatLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/threats",
		`{"type": "IP", "value": "198.51.100.23", "severity": "High", "source": "SIEM"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var created models.Threat
	decodeBody(t, rec, &created)
	if created.ID == 0 {
		t.Fatal("create did not assign an id")
	}

	// A duplicate value is rejected and names the surviving record,
	// whatever its type and severity.
	rec = doRequest(s, http.MethodPost, "/api/threats",
		`{"type": "URL", "value": "198.51.100.23", "severity": "Low"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var conflict map[string]string
	decodeBody(t, rec, &conflict)
	wantDetail := fmt.Sprintf("IOC with value '198.51.100.23' already exists (ID: %d)", created.ID)
	if conflict["detail"] != wantDetail {
		t.Errorf("conflict detail = %q, want %q", conflict["detail"], wantDetail)
	}

	rec = doRequest(s, http.MethodGet, fmt.Sprintf("/api/threats/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doRequest(s, http.MethodDelete, fmt.Sprintf("/api/threats/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusOK)
	}

	var deleted struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	decodeBody(t, rec, &deleted)
	wantMessage := fmt.Sprintf("Threat %d deleted successfully", created.ID)
	if deleted.Message != wantMessage || deleted.ID != created.ID {
		t.Errorf("delete response = %+v, want message %q id %d", deleted, wantMessage, created.ID)
	}

	wantDetail = fmt.Sprintf("Threat with ID %d not found", created.ID)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = doRequest(s, method, fmt.Sprintf("/api/threats/%d", created.ID), "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete status = %d, want %d", method, rec.Code, http.StatusNotFound)
		}
		var notFound map[string]string
		decodeBody(t, rec, &notFound)
		if notFound["detail"] != wantDetail {
			t.Errorf("%s after delete detail = %q, want %q", method, notFound["detail"], wantDetail)
		}
	}
}

func TestGetThreat_NonNumericID(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/threats/abc", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["detail"] == "" {
		t.Errorf("error body = %q, want a detail field", rec.Body.String())
	}
}

func TestUnroutedRequests_JSONErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown path", http.MethodGet, "/api/unknown", http.StatusNotFound},
		{"method mismatch", http.MethodPut, "/api/threats", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, tt.method, tt.path, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body map[string]string
			decodeBody(t, rec, &body)
			if body["detail"] == "" {
				t.Errorf("error body = %q, want a detail field", rec.Body.String())
			}
		})
	}
}

func TestListThreats_EmptyRegistry(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/threats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestListThreats_Filters(t *testing.T) {
	s := newTestServer(t)

	seed := []string{
		`{"type": "IP", "value": "192.0.2.10", "severity": "High"}`,
		`{"type": "IP", "value": "192.0.2.11", "severity": "Low"}`,
		`{"type": "Hash", "value": "d41d8cd98f00b204e9800998ecf8427e", "severity": "High"}`,
	}
	for _, body := range seed {
		if rec := doRequest(s, http.MethodPost, "/api/threats", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d, body %s", rec.Code, rec.Body.String())
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no filter", "", 3},
		{"type filter", "?type=IP", 2},
		{"severity filter", "?severity=High", 2},
		{"combined filter", "?type=IP&severity=High", 1},
		{"unmatched filter", "?type=URL", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/api/threats"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			var threats []models.Threat
			decodeBody(t, rec, &threats)
			if len(threats) != tt.want {
				t.Errorf("got %d threats, want %d", len(threats), tt.want)
			}
		})
	}
}

func TestListThreats_InvalidParams(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"negative skip", "?skip=-1"},
		{"zero limit", "?limit=0"},
		{"limit above cap", "?limit=1001"},
		{"non-numeric skip", "?skip=abc"},
		{"unknown type", "?type=Botnet"},
		{"unknown severity", "?severity=critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/api/threats"+tt.query, "")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d, body %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
			}
		})
	}
}

// TestListThreats_Pagination registers 150 threats and checks that the
// second page of 100 holds exactly the 50 records the full listing ends
// with, in the same order.
func TestListThreats_Pagination(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 150; i++ {
		body := fmt.Sprintf(`{"type": "IP", "value": "203.0.113.%d", "severity": "Low"}`, i)
		if i >= 100 {
			body = fmt.Sprintf(`{"type": "IP", "value": "198.51.100.%d", "severity": "Low"}`, i-100)
		}
		if rec := doRequest(s, http.MethodPost, "/api/threats", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(s, http.MethodGet, "/api/threats?limit=1000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("full listing status = %d", rec.Code)
	}
	var all []models.Threat
	decodeBody(t, rec, &all)
	if len(all) != 150 {
		t.Fatalf("full listing returned %d threats, want 150", len(all))
	}

	rec = doRequest(s, http.MethodGet, "/api/threats?skip=100&limit=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("page status = %d", rec.Code)
	}
	var page []models.Threat
	decodeBody(t, rec, &page)

	if len(page) != 50 {
		t.Fatalf("page returned %d threats, want 50", len(page))
	}
	for i, got := range page {
		if got.ID != all[100+i].ID {
			t.Errorf("page[%d].ID = %d, want %d", i, got.ID, all[100+i].ID)
		}
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	s := newTestServer(t)

	seed := []string{
		`{"type": "IP", "value": "192.0.2.30", "severity": "High"}`,
		`{"type": "IP", "value": "192.0.2.31", "severity": "High"}`,
		`{"type": "IP", "value": "192.0.2.32", "severity": "High"}`,
		`{"type": "Hash", "value": "aaaa", "severity": "Low"}`,
		`{"type": "Hash", "value": "bbbb", "severity": "Low"}`,
	}
	for _, body := range seed {
		if rec := doRequest(s, http.MethodPost, "/api/threats", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d, body %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(s, http.MethodGet, "/api/threats/stats/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var stats struct {
		Total      int            `json:"total"`
		ByType     map[string]int `json:"by_type"`
		BySeverity map[string]int `json:"by_severity"`
	}
	decodeBody(t, rec, &stats)

	if stats.Total != 5 {
		t.Errorf("total = %d, want 5", stats.Total)
	}
	if stats.ByType["IP"] != 3 || stats.ByType["Hash"] != 2 || stats.ByType["URL"] != 0 || stats.ByType["Domain"] != 0 {
		t.Errorf("by_type = %v", stats.ByType)
	}
	if len(stats.ByType) != 4 {
		t.Errorf("by_type has %d keys, want all 4 types", len(stats.ByType))
	}
	if stats.BySeverity["High"] != 3 || stats.BySeverity["Low"] != 2 || stats.BySeverity["Medium"] != 0 {
		t.Errorf("by_severity = %v", stats.BySeverity)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var health struct {
		Status    string `json:"status"`
		Database  string `json:"database"`
		Timestamp string `json:"timestamp"`
	}
	decodeBody(t, rec, &health)

	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Database != "connected" {
		t.Errorf("database = %q, want connected", health.Database)
	}
	if health.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestAPIRoot(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if !strings.Contains(body["message"], "IOC Manager API") {
		t.Errorf("message = %q", body["message"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	echo := httptest.NewRecorder()
	s.Router().ServeHTTP(echo, req)
	if got := echo.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("X-Request-ID = %q, want caller-supplied", got)
	}
}
