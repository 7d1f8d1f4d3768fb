package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/datasource"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/internal/scan"
	"github.com/seenimoa/goldenkey/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type fakeScanner struct {
	mu        sync.Mutex
	scans     int
	refines   int
	prevs     []*scan.Session
	canRefine bool
	scanErr   error
	block     chan struct{}
	started   chan struct{}
	news      map[string][]string
	indices   []models.IndexQuote
	themes    []models.ThemeQuote
}

func (f *fakeScanner) Scan(ctx context.Context, prev *scan.Session) (*scan.Session, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	f.prevs = append(f.prevs, prev)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &scan.Session{
		ID:     "scan-" + string(rune('0'+f.scans)),
		Quotes: []models.Quote{testQuote("알파")},
	}, nil
}

func (f *fakeScanner) Refine(ctx context.Context, s *scan.Session) (*scan.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refines++
	return &scan.Session{
		ID:        s.ID + "-refined",
		ParentID:  s.ID,
		RefinedAt: time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC),
		Quotes:    s.Quotes,
	}, nil
}

func (f *fakeScanner) ResolveIndices(ctx context.Context) []models.IndexQuote { return f.indices }
func (f *fakeScanner) ResolveThemes(ctx context.Context) []models.ThemeQuote   { return f.themes }
func (f *fakeScanner) News(ctx context.Context, name string) []string         { return f.news[name] }
func (f *fakeScanner) CanRefine() bool                                        { return f.canRefine }

func testQuote(name string) models.Quote {
	return models.Quote{
		Name:          name,
		Market:        models.MarketKOSPI,
		ChangePercent: decimal.NewNullDecimal(decimal.RequireFromString("7.5")),
		TradedValue:   decimal.NewNullDecimal(decimal.NewFromInt(12000)),
		Sectors:       []string{"반도체"},
	}
}

func testServer(t *testing.T, sc *fakeScanner) *Server {
	t.Helper()
	cfg := &config.Config{
		Scan: config.ScanConfig{
			FallbackSector: models.FallbackSector,
			MergePolicy:    "overwrite",
			RequestDelay:   300 * time.Millisecond,
			Rules:          config.DefaultRules,
		},
		Indices: models.DefaultIndices,
		LLM: config.LLMConfig{
			Primary:   "openai",
			Model:     "gpt-4o-mini",
			OpenAIKey: "sk-test-secret-123456",
		},
	}
	return NewServer(cfg, sc, logger.Discard())
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) scan.Session {
	t.Helper()
	var resp struct {
		Success bool         `json:"success"`
		Data    scan.Session `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success=true")
	}
	return resp.Data
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, &fakeScanner{canRefine: true})

	for _, path := range []string{"/health", "/api/health"} {
		rec := do(t, srv, http.MethodGet, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status: got %d, want %d", path, rec.Code, http.StatusOK)
		}
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Fatalf("%s: expected success=true", path)
		}
		data, ok := resp.Data.(map[string]any)
		if !ok {
			t.Fatalf("%s: data should be an object, got %T", path, resp.Data)
		}
		if data["status"] != "ok" {
			t.Errorf("status: got %v", data["status"])
		}
		if data["refine_enabled"] != true {
			t.Errorf("refine_enabled: got %v", data["refine_enabled"])
		}
		if _, ok := data["market_status"].(string); !ok {
			t.Errorf("market_status missing: %v", data)
		}
		if _, ok := data["latest_session"]; ok {
			t.Error("latest_session should be absent before any scan")
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Scan
// ════════════════════════════════════════════════════════════════════

func TestHandleScan(t *testing.T) {
	sc := &fakeScanner{}
	srv := testServer(t, sc)

	rec := do(t, srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	sess := decodeSession(t, rec)
	if sess.ID != "scan-1" {
		t.Errorf("id: got %q", sess.ID)
	}
	if len(sess.Quotes) != 1 || sess.Quotes[0].Name != "알파" {
		t.Errorf("quotes: got %+v", sess.Quotes)
	}
	if sc.refines != 0 {
		t.Errorf("refine should not run without ?refine, ran %d times", sc.refines)
	}
	if srv.Latest() == nil || srv.Latest().ID != "scan-1" {
		t.Errorf("latest not stored: %+v", srv.Latest())
	}

	// The second scan receives the first as its predecessor.
	do(t, srv, http.MethodPost, "/api/scan")
	if len(sc.prevs) != 2 || sc.prevs[0] != nil || sc.prevs[1] == nil || sc.prevs[1].ID != "scan-1" {
		t.Errorf("predecessors: got %+v", sc.prevs)
	}
}

func TestHandleScan_WithRefine(t *testing.T) {
	sc := &fakeScanner{canRefine: true}
	srv := testServer(t, sc)

	rec := do(t, srv, http.MethodPost, "/api/scan?refine=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	sess := decodeSession(t, rec)
	if sess.ID != "scan-1-refined" || sess.ParentID != "scan-1" {
		t.Errorf("session: got id=%q parent=%q", sess.ID, sess.ParentID)
	}
	if sc.refines != 1 {
		t.Errorf("refines: got %d, want 1", sc.refines)
	}
}

func TestHandleScan_Conflict(t *testing.T) {
	sc := &fakeScanner{block: make(chan struct{}), started: make(chan struct{})}
	srv := testServer(t, sc)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- do(t, srv, http.MethodPost, "/api/scan") }()
	<-sc.started

	rec := do(t, srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
	if resp := decodeResponse(t, rec); resp.Success || !strings.Contains(resp.Error, "in progress") {
		t.Errorf("unexpected response: %+v", resp)
	}

	close(sc.block)
	if first := <-done; first.Code != http.StatusOK {
		t.Errorf("first scan status: got %d", first.Code)
	}
}

func TestHandleScan_Cancelled(t *testing.T) {
	srv := testServer(t, &fakeScanner{scanErr: context.DeadlineExceeded})

	rec := do(t, srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}
	if srv.Latest() != nil {
		t.Error("a failed scan must not replace the latest session")
	}
}

// ════════════════════════════════════════════════════════════════════
// Latest / Refine
// ════════════════════════════════════════════════════════════════════

func TestHandleLatest_NoScan(t *testing.T) {
	srv := testServer(t, &fakeScanner{})

	rec := do(t, srv, http.MethodGet, "/api/scan/latest")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = do(t, srv, http.MethodPost, "/api/scan/latest/refine")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("refine status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleLatest_AndRefine(t *testing.T) {
	sc := &fakeScanner{canRefine: true}
	srv := testServer(t, sc)
	do(t, srv, http.MethodPost, "/api/scan")

	rec := do(t, srv, http.MethodGet, "/api/scan/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if sess := decodeSession(t, rec); sess.ID != "scan-1" {
		t.Errorf("latest: got %q", sess.ID)
	}

	rec = do(t, srv, http.MethodPost, "/api/scan/latest/refine")
	if rec.Code != http.StatusOK {
		t.Fatalf("refine status: got %d", rec.Code)
	}
	if sess := decodeSession(t, rec); !sess.Refined() || sess.ParentID != "scan-1" {
		t.Errorf("refined session: %+v", sess)
	}
	if srv.Latest().ID != "scan-1-refined" {
		t.Errorf("latest after refine: got %q", srv.Latest().ID)
	}
}

// ════════════════════════════════════════════════════════════════════
// Indices / News
// ════════════════════════════════════════════════════════════════════

func TestHandleIndices(t *testing.T) {
	sc := &fakeScanner{indices: []models.IndexQuote{
		{Label: "KOSPI", Ticker: "^KS11", Value: "2,650.12", ChangeDisplay: "+0.52%", SourceUsed: "yahoo-quote"},
		datasource.Unavailable(models.IndexSpec{Label: "KOSDAQ", Ticker: "^KQ11"}),
	}}
	srv := testServer(t, sc)

	rec := do(t, srv, http.MethodGet, "/api/indices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Data []models.IndexQuote `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("indices: got %d, want 2", len(resp.Data))
	}
	if resp.Data[1].Value != models.IndexUnavailable || resp.Data[1].SourceUsed != models.IndexSourceNone {
		t.Errorf("unavailable index: got %+v", resp.Data[1])
	}
}

func TestHandleThemes(t *testing.T) {
	spec := models.IndexSpec{Label: "반도체 (SOXX)", Ticker: "SOXX", MarketHint: models.MarketHintUS, Sector: "반도체"}
	sc := &fakeScanner{themes: []models.ThemeQuote{
		models.NewThemeQuote(spec, models.IndexQuote{Label: spec.Label, Ticker: "SOXX", Value: "231.40", ChangeDisplay: "-1.20%", SourceUsed: "yahoo-chart"}),
	}}
	srv := testServer(t, sc)

	rec := do(t, srv, http.MethodGet, "/api/themes")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Data []models.ThemeQuote `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("themes: got %d, want 1", len(resp.Data))
	}
	got := resp.Data[0]
	if got.Sector != "반도체" || got.Color != "#dbeafe" || got.ChangeDisplay != "-1.20%" {
		t.Errorf("theme: got %+v", got)
	}
}

func TestHandleNews(t *testing.T) {
	sc := &fakeScanner{news: map[string][]string{
		"삼성전자": {"삼성전자, HBM 공급 확대", "삼성전자 신고가"},
		"베타":   {datasource.HeadlineCollectionFailed},
	}}
	srv := testServer(t, sc)

	tests := []struct {
		name       string
		path       string
		wantName   string
		wantCount  int
		wantFailed bool
	}{
		{"escaped korean name", "/api/news/%EC%82%BC%EC%84%B1%EC%A0%84%EC%9E%90", "삼성전자", 2, false},
		{"collection failure", "/api/news/%EB%B2%A0%ED%83%80", "베타", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d", rec.Code)
			}
			var resp struct {
				Data NewsResponse `json:"data"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data.Name != tt.wantName {
				t.Errorf("name: got %q, want %q", resp.Data.Name, tt.wantName)
			}
			if len(resp.Data.Headlines) != tt.wantCount {
				t.Errorf("headlines: got %d, want %d", len(resp.Data.Headlines), tt.wantCount)
			}
			if resp.Data.Failed != tt.wantFailed {
				t.Errorf("failed: got %v, want %v", resp.Data.Failed, tt.wantFailed)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Config
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig_NoSecrets(t *testing.T) {
	srv := testServer(t, &fakeScanner{canRefine: true})

	rec := do(t, srv, http.MethodGet, "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "sk-test-secret") {
		t.Fatal("config response leaks an API key")
	}

	var resp struct {
		Data ConfigView `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Scan.RequestDelay != "300ms" {
		t.Errorf("request_delay: got %q", resp.Data.Scan.RequestDelay)
	}
	if !resp.Data.LLM.RefineEnabled {
		t.Error("refine_enabled: want true")
	}
	if len(resp.Data.Scan.Rules) != len(config.DefaultRules) {
		t.Errorf("rules: got %d", len(resp.Data.Scan.Rules))
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv := testServer(t, &fakeScanner{})

	rec := do(t, srv, http.MethodGet, "/api/config/keys")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Data []config.KeyStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("keys: got %d, want 3", len(resp.Data))
	}
	if !resp.Data[0].IsSet || resp.Data[0].Masked != "sk-...456" {
		t.Errorf("openai key: got %+v", resp.Data[0])
	}
	if resp.Data[1].IsSet {
		t.Errorf("gemini key should be unset: %+v", resp.Data[1])
	}
}

func TestHandleSectorColors(t *testing.T) {
	srv := testServer(t, &fakeScanner{})

	rec := do(t, srv, http.MethodGet, "/api/sectors/colors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != len(models.SectorColors) {
		t.Errorf("colors: got %d, want %d", len(resp.Data), len(models.SectorColors))
	}
}

// ════════════════════════════════════════════════════════════════════
// writeJSON / writeError tests
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{
		Success: true,
		Data:    "hello",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.Data != "hello" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error != "not found" {
		t.Errorf("error: got %q, want %q", resp.Error, "not found")
	}
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	srv := testServer(t, &fakeScanner{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
