package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/kv"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		UI:     config.UIConfig{PageSize: 10, ErrorSummary: 3, MaxImportBytes: 1 << 20},
		Rate:   config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
	}
}

type testServer struct {
	*Server
	svc *core.Service
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	store := core.NewRecordStore(kv.NewMemory(), "")
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	limiter := core.NewRenderLimiter(2, time.Second)
	svc := core.NewService(store, limiter.Wrap(core.NewQRRenderer()), core.ServiceConfig{})
	srv := NewServer(svc, limiter, cfg)
	t.Cleanup(func() {
		svc.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testServer{Server: srv, svc: svc}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seed(t *testing.T, raw string) []core.Record {
	t.Helper()
	res, err := ts.svc.Import(context.Background(), raw)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	return res.Added
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestDashboard_Empty(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No records yet") {
		t.Error("empty state not shown")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("CSP missing")
	}
}

func TestImportForm_RedirectsWithNotice(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(postForm("/import", url.Values{"text": {"A1\t138\nbad\nA2  139"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "added=2") || !strings.Contains(loc, "skipped=1") {
		t.Errorf("Location = %q", loc)
	}

	page := ts.do(httptest.NewRequest(http.MethodGet, loc, nil))
	body := page.Body.String()
	for _, want := range []string{"Imported 2 records, skipped 1 line", "line 2: wrong column count", "A1", "A2"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestImportForm_NoValidRowsKeepsInput(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(postForm("/import", url.Values{"text": {"only-one-column"}}))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"IMP002", "only-one-column", "line 1: wrong column count"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if ts.svc.Store().Len() != 0 {
		t.Error("records committed on failed import")
	}
}

func TestAPIImport(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"text":"A1\t138\nx\n"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got importResponse
	decodeJSON(t, rec, &got)
	if got.Added != 1 || got.Total != 1 || len(got.Records) != 1 {
		t.Errorf("response = %+v", got)
	}
	want := []core.ParseError{{LineNumber: 2, Reason: core.ReasonWrongColumnCount}}
	if diff := cmp.Diff(want, got.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIImport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
		lines  int
	}{
		{"empty", `{"text":"  "}`, http.StatusUnprocessableEntity, "IMP001", 0},
		{"no valid rows", `{"text":"a\nb\t"}`, http.StatusUnprocessableEntity, "IMP002", 2},
		{"malformed json", `{`, http.StatusBadRequest, "ERR000", 0},
		{"too large", `{"text":"` + strings.Repeat("x", 300) + `"}`, http.StatusRequestEntityTooLarge, "IMP003", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.UI.MaxImportBytes = 256
			ts := newTestServer(t, cfg)

			rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body)
			}
			var got ErrorResponse
			decodeJSON(t, rec, &got)
			if got.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Code, tt.code)
			}
			if len(got.Lines) != tt.lines {
				t.Errorf("lines = %d, want %d", len(got.Lines), tt.lines)
			}
		})
	}
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAPIImportFile_StripsBOM(t *testing.T) {
	ts := newTestServer(t, testConfig())

	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("A1\t138\r\nA2\t13\xff9\r\n")...)
	body, ctype := multipartBody(t, "file", "orders.tsv", content)
	req := httptest.NewRequest(http.MethodPost, "/api/import/file", body)
	req.Header.Set("Content-Type", ctype)
	rec := ts.do(req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := ts.svc.Records()
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].OrderID != "A1" {
		t.Errorf("first order id = %q, want A1", got[0].OrderID)
	}
	if got[1].Phone != "13?9" {
		t.Errorf("sanitized phone = %q, want 13?9", got[1].Phone)
	}
}

func TestAPIImportFile_MissingFile(t *testing.T) {
	ts := newTestServer(t, testConfig())

	body, ctype := multipartBody(t, "other", "x.txt", []byte("A1\t138"))
	req := httptest.NewRequest(http.MethodPost, "/api/import/file", body)
	req.Header.Set("Content-Type", ctype)
	rec := ts.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var got ErrorResponse
	decodeJSON(t, rec, &got)
	if got.Code != "IMP004" {
		t.Errorf("code = %q, want IMP004", got.Code)
	}
}

func TestAPIRecords_Pagination(t *testing.T) {
	ts := newTestServer(t, testConfig())
	var b strings.Builder
	for i := range 25 {
		b.WriteString("A")
		b.WriteString(strings.Repeat("1", i+1))
		b.WriteString("\t138\n")
	}
	ts.seed(t, b.String())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/records?page=3", nil))

	var got core.Page
	decodeJSON(t, rec, &got)
	if got.Page != 3 || got.TotalPages != 3 || got.Total != 25 || len(got.Records) != 5 || got.Offset != 20 {
		t.Errorf("page = %+v", got)
	}
}

func TestCodePayload(t *testing.T) {
	cfg := testConfig()
	cfg.Security.TrustedProxies = []string{"10.0.0.0/8"}
	ts := newTestServer(t, cfg)
	recs := ts.seed(t, "A&B\t138转5")
	id := recs[0].ID

	tests := []struct {
		name   string
		mode   string
		remote string
		proto  string
		want   string
	}{
		{"direct dial", "direct-dial", "", "", "tel:138,5"},
		{"link from client", "link-redirect", "", "", "http://example.com/call?phone=138%2C5&orderId=A%26B"},
		{"proto from trusted proxy", "link-redirect", "10.1.2.3:443", "https", "https://example.com/call?phone=138%2C5&orderId=A%26B"},
		{"proto from untrusted client ignored", "link-redirect", "203.0.113.9:5000", "https", "http://example.com/call?phone=138%2C5&orderId=A%26B"},
		{"unknown proto ignored", "link-redirect", "10.1.2.3:443", "javascript", "http://example.com/call?phone=138%2C5&orderId=A%26B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/codes/"+id+"/payload?mode="+tt.mode, nil)
			if tt.remote != "" {
				req.RemoteAddr = tt.remote
			}
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			rec := ts.do(req)

			var got payloadResponse
			decodeJSON(t, rec, &got)
			if got.Payload != tt.want {
				t.Errorf("payload = %q, want %q", got.Payload, tt.want)
			}
		})
	}
}

func TestCodePayload_Errors(t *testing.T) {
	ts := newTestServer(t, testConfig())
	recs := ts.seed(t, "A1\t138")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/codes/missing/payload", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d", rec.Code)
	}
	var got ErrorResponse
	decodeJSON(t, rec, &got)
	if got.Code != "STO001" {
		t.Errorf("code = %q, want STO001", got.Code)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/codes/"+recs[0].ID+"/payload?mode=sms", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d", rec.Code)
	}
}

func TestCodeImage_Download(t *testing.T) {
	ts := newTestServer(t, testConfig())
	recs := ts.seed(t, "A/1\t138")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/codes/"+recs[0].ID+"/image.png?download=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=qrcode-A_1-138.png` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != core.DefaultCodeSize || b.Dy() != core.DefaultCodeSize {
		t.Errorf("image size = %v", b)
	}
}

func TestCodePage(t *testing.T) {
	ts := newTestServer(t, testConfig())
	recs := ts.seed(t, "A1\t138\nA2\t139")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/codes/"+recs[1].ID+"?mode=link-redirect", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Record 2 of 2", "/call?phone=139&amp;orderId=A2", "qrcode-A2-139.png"} {
		if !strings.Contains(body, want) {
			t.Errorf("code page missing %q", want)
		}
	}
}

func TestCall(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/call?phone=138%2C5&orderId=A%26B", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `href="tel:138,5"`) {
		t.Errorf("tel link missing: %s", rec.Body)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/call?orderId=A1", nil))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid link") {
		t.Errorf("missing phone: status %d", rec.Code)
	}
}

func TestClear(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.seed(t, "A1\t138")

	rec := ts.do(postForm("/clear", url.Values{}))
	if rec.Code != http.StatusSeeOther || ts.svc.Store().Len() != 1 {
		t.Fatalf("unconfirmed clear: status %d, records %d", rec.Code, ts.svc.Store().Len())
	}

	rec = ts.do(postForm("/clear", url.Values{"confirm": {"yes"}}))
	if rec.Code != http.StatusSeeOther || ts.svc.Store().Len() != 0 {
		t.Fatalf("confirmed clear: status %d, records %d", rec.Code, ts.svc.Store().Len())
	}
	if loc := rec.Header().Get("Location"); loc != "/?cleared=1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestAPIClear(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.seed(t, "A1\t138")

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/clear", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.svc.Store().Len() != 0 {
		t.Error("records not cleared")
	}
}

func TestReviewFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.seed(t, "A1\t138\nA2\t139")

	rec := ts.do(postForm("/review", url.Values{"mode": {"direct-dial"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	base := rec.Header().Get("Location")
	if !strings.HasPrefix(base, "/review/") {
		t.Fatalf("Location = %q", base)
	}

	// Previous on the first record is a no-op.
	ts.do(postForm(base+"/prev", nil))
	page := ts.do(httptest.NewRequest(http.MethodGet, base, nil))
	if !strings.Contains(page.Body.String(), "1 / 2") {
		t.Errorf("expected first record: %s", page.Body)
	}

	ts.do(postForm(base+"/next", nil))
	ts.do(postForm(base+"/next", nil))
	page = ts.do(httptest.NewRequest(http.MethodGet, base, nil))
	if !strings.Contains(page.Body.String(), "2 / 2") {
		t.Errorf("expected last record: %s", page.Body)
	}

	ts.do(postForm(base+"/mode", nil))
	page = ts.do(httptest.NewRequest(http.MethodGet, base, nil))
	if !strings.Contains(page.Body.String(), "/call?phone=139") {
		t.Error("mode toggle not applied")
	}

	dl := ts.do(httptest.NewRequest(http.MethodGet, base+"/download", nil))
	if dl.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", dl.Code, dl.Body)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "qrcode-A2-139.png") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if _, err := png.Decode(dl.Body); err != nil {
		t.Errorf("png.Decode() error = %v", err)
	}

	closed := ts.do(postForm(base+"/close", nil))
	if closed.Code != http.StatusSeeOther || ts.svc.ReviewCount() != 0 {
		t.Fatalf("close: status %d, reviews %d", closed.Code, ts.svc.ReviewCount())
	}

	gone := ts.do(httptest.NewRequest(http.MethodGet, base, nil))
	if gone.Code != http.StatusNotFound || !strings.Contains(gone.Body.String(), "REV001") {
		t.Errorf("closed review: status %d", gone.Code)
	}
}

func TestReview_StartFromRecord(t *testing.T) {
	ts := newTestServer(t, testConfig())
	recs := ts.seed(t, "A1\t138\nA2\t139\nA3\t140")

	rec := ts.do(postForm("/review", url.Values{"start": {recs[1].ID}}))
	page := ts.do(httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))

	if !strings.Contains(page.Body.String(), "2 / 3") {
		t.Errorf("review did not start at the chosen record: %s", page.Body)
	}
}

func TestReview_Empty(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(postForm("/review", nil))

	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "REV002") {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.seed(t, "A1\t138")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var got map[string]any
	decodeJSON(t, rec, &got)
	if got["status"] != "ok" || got["records"] != float64(1) {
		t.Errorf("health = %v", got)
	}
}

func TestRecordEvents(t *testing.T) {
	ts := newTestServer(t, testConfig())
	hs := httptest.NewServer(ts.Router())
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/api/records/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "data: ") {
				return strings.TrimPrefix(l, "data: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	var c core.Change
	if err := json.Unmarshal([]byte(next()), &c); err != nil || c.Total != 0 {
		t.Fatalf("snapshot = %+v, %v", c, err)
	}

	ts.seed(t, "A1\t138\nA2\t139")

	if err := json.Unmarshal([]byte(next()), &c); err != nil {
		t.Fatal(err)
	}
	want := core.Change{Kind: core.ChangeAppend, Added: 2, Total: 2}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("change mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := newRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.allow("b") {
		t.Error("other clients are independent")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Error("window should reset")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ImportLimit: 1}
	ts := newTestServer(t, cfg)

	first := ts.do(postForm("/import", url.Values{"text": {"A1\t138"}}))
	if first.Code != http.StatusSeeOther {
		t.Fatalf("first import status = %d", first.Code)
	}

	second := ts.do(postForm("/import", url.Values{"text": {"A2\t139"}}))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second import status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if !strings.Contains(second.Body.String(), "RATE001") {
		t.Error("rate limit code missing")
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/api/records", "", true},
		{"/", "application/json", true},
		{"/", "text/html", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Accept", tt.accept)
		if got := wantsJSON(req); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v", tt.path, tt.accept, got)
		}
	}
}
