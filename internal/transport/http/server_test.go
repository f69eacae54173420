package http

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ioclens/internal/history"
	"ioclens/internal/metrics"
	grpcTransport "ioclens/internal/transport/grpc"
)

const sampleText = "see https://a.example.com/x and 1.2.3.4"

func newTestServer(store *history.Store, m *metrics.Metrics) *grpcTransport.Server {
	return grpcTransport.NewServer(grpcTransport.Options{
		MaxTextBytes: 1 << 10,
		MaxURLLen:    256,
		DecodeRounds: 3,
	}, store, m, zap.NewNop())
}

func newTestGateway(tb testing.TB, opts Options) http.Handler {
	tb.Helper()

	store := history.NewStore(16)
	m := metrics.New()

	gw, err := NewGateway(NewLocalAnalyzer(newTestServer(store, m)), store, m, zap.NewNop(), opts)
	if err != nil {
		tb.Fatalf("failed to build gateway: %v", err)
	}
	gw.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return gw.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	return doAs(h, "", method, target, body)
}

// doAs sends the request within the given session; "" sends none.
func doAs(h http.Handler, session, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return e
}

func TestHTTPGateway_Extract(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodPost, "/api/v1/extract", `{"text":"`+sampleText+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body)
	}

	var resp grpcTransport.ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.URLs) != 1 || resp.URLs[0] != "https://a.example.com/x" {
		t.Errorf("URLs = %v", resp.URLs)
	}
	if len(resp.IPs) != 1 || resp.Total != 3 {
		t.Errorf("IPs = %v, Total = %d", resp.IPs, resp.Total)
	}
}

func TestHTTPGateway_ExtractBadBody(t *testing.T) {
	h := newTestGateway(t, Options{MaxBodyBytes: 64})

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "too large", body: `{"text":"` + strings.Repeat("a", 100) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/extract", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHTTPGateway_Analyze(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodPost, "/api/v1/analyze", `{"url":"hxxp://185[.]193[.]88[.]12/login"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body)
	}

	var resp grpcTransport.AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report.Normalized != "http://185.193.88.12/login" || resp.FlagCount != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPGateway_AnalyzeErrors(t *testing.T) {
	h := newTestGateway(t, Options{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "missing url", body: `{}`, wantMsg: "url is required"},
		{name: "invalid url", body: `{"url":"http://"}`, wantMsg: "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/analyze", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if e := decodeError(t, w); !strings.HasPrefix(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want prefix %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestHTTPGateway_Links(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodGet, "/api/v1/links?kind=ip&value=1.2.3.4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	want := `{"virusTotal":"https://www.virustotal.com/gui/search/1.2.3.4","abuseIPDB":"https://www.abuseipdb.com/check/1.2.3.4"}`
	if body := strings.TrimSpace(w.Body.String()); body != want {
		t.Errorf("body = %s, want %s", body, want)
	}

	if w := do(h, http.MethodGet, "/api/v1/links?kind=nope&value=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHTTPGateway_Exports(t *testing.T) {
	h := newTestGateway(t, Options{DefangDefault: true})

	w := do(h, http.MethodPost, "/api/v1/extract", `{"text":"`+sampleText+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("extract status = %d", w.Code)
	}
	sid := w.Header().Get(sessionHeader)
	if sid == "" {
		t.Fatal("extract did not start a session")
	}

	w = doAs(h, sid, http.MethodGet, "/api/v1/export/iocs.csv?defang=false", "")
	if w.Code != http.StatusOK {
		t.Fatalf("csv status = %d", w.Code)
	}
	wantCSV := "type,value\nurl,https://a.example.com/x\ndomain,a.example.com\nip,1.2.3.4\n"
	if w.Body.String() != wantCSV {
		t.Errorf("csv =\n%s\nwant\n%s", w.Body, wantCSV)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "iocs.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	w = doAs(h, sid, http.MethodGet, "/api/v1/export/iocs.txt", "")
	if !strings.Contains(w.Body.String(), "[Domains]\na[.]example[.]com\n") {
		t.Errorf("txt should be defanged by default:\n%s", w.Body)
	}

	w = doAs(h, sid, http.MethodGet, "/api/v1/export/iocs.json", "")
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("json export: %v", err)
	}
	if doc["createdAt"] != "2024-01-02T03:04:05.000Z" || doc["defanged"] != true {
		t.Errorf("json export = %v", doc)
	}

	if w := doAs(h, sid, http.MethodGet, "/api/v1/export/iocs.json?defang=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad defang status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHTTPGateway_ExportAnalysis(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodGet, "/api/v1/export/url-analysis.json", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status before analyze = %d, want %d", w.Code, http.StatusNotFound)
	}

	sid := do(h, http.MethodPost, "/api/v1/analyze", `{"url":"example.com/a.pdf.exe"}`).Header().Get(sessionHeader)

	w = doAs(h, sid, http.MethodGet, "/api/v1/export/url-analysis.json?defang=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"normalized":"hxxps://example[.]com/a[.]pdf[.]exe"`) {
		t.Errorf("body = %s", w.Body)
	}
}

func TestHTTPGateway_SessionsIsolated(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodPost, "/api/v1/extract", `{"text":"internal-host.corp.example.com 10.20.30.40"}`)
	alice := w.Header().Get(sessionHeader)
	do(h, http.MethodPost, "/api/v1/analyze", `{"url":"https://internal-host.corp.example.com/admin"}`)
	doAs(h, alice, http.MethodPost, "/api/v1/analyze", `{"url":"https://internal-host.corp.example.com/admin"}`)

	// a caller with no session sees nothing of alice's
	for _, path := range []string{"/api/v1/export/iocs.csv", "/api/v1/export/iocs.txt", "/api/v1/export/iocs.json"} {
		w := do(h, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "10.20.30.40") || strings.Contains(w.Body.String(), "corp") {
			t.Errorf("%s leaked another session's data: %s", path, w.Body)
		}
	}
	if w := do(h, http.MethodGet, "/api/v1/export/url-analysis.json", ""); w.Code != http.StatusNotFound {
		t.Errorf("url-analysis without session status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// a second session only gets its own results back
	w = do(h, http.MethodPost, "/api/v1/extract", `{"text":"8.8.8.8"}`)
	bob := w.Header().Get(sessionHeader)
	if bob == "" || bob == alice {
		t.Fatalf("sessions alice = %q, bob = %q", alice, bob)
	}
	if got := doAs(h, bob, http.MethodGet, "/api/v1/export/iocs.csv", "").Body.String(); got != "type,value\nip,8.8.8.8\n" {
		t.Errorf("bob csv = %q", got)
	}
	if w := doAs(h, bob, http.MethodGet, "/api/v1/export/url-analysis.json", ""); w.Code != http.StatusNotFound {
		t.Errorf("bob url-analysis status = %d, want %d", w.Code, http.StatusNotFound)
	}

	got := doAs(h, alice, http.MethodGet, "/api/v1/export/iocs.csv", "").Body.String()
	if !strings.Contains(got, "10.20.30.40") || strings.Contains(got, "8.8.8.8") {
		t.Errorf("alice csv = %q", got)
	}
	if w := doAs(h, alice, http.MethodGet, "/api/v1/export/url-analysis.json", ""); w.Code != http.StatusOK {
		t.Errorf("alice url-analysis status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHTTPGateway_SessionCookie(t *testing.T) {
	h := newTestGateway(t, Options{})

	w := do(h, http.MethodPost, "/api/v1/extract", `{"text":"1.2.3.4"}`)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	if cookies[0].Value != w.Header().Get(sessionHeader) {
		t.Errorf("cookie %q and header %q disagree", cookies[0].Value, w.Header().Get(sessionHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export/iocs.txt", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "1.2.3.4") {
		t.Errorf("cookie session export = %s", rec.Body)
	}

	// a known session is reused without a new cookie
	w = doAs(h, cookies[0].Value, http.MethodPost, "/api/v1/extract", `{"text":"5.6.7.8"}`)
	if len(w.Result().Cookies()) != 0 || w.Header().Get(sessionHeader) != cookies[0].Value {
		t.Errorf("session not reused: cookies %+v, header %q", w.Result().Cookies(), w.Header().Get(sessionHeader))
	}

	// ids that are not UUIDs are replaced
	w = doAs(h, "../../etc", http.MethodPost, "/api/v1/extract", `{"text":"5.6.7.8"}`)
	if got := w.Header().Get(sessionHeader); got == "../../etc" || got == "" {
		t.Errorf("session header = %q", got)
	}
}

func TestHTTPGateway_BodyCapAdmitsEscapedText(t *testing.T) {
	const maxText = 1 << 10
	h := newTestGateway(t, Options{MaxBodyBytes: MaxBodyFor(maxText)})

	// every control byte is sent as \u00XX, six bytes on the wire
	body, err := json.Marshal(grpcTransport.ExtractRequest{Text: strings.Repeat("\x01", maxText)})
	if err != nil {
		t.Fatal(err)
	}
	if len(body) <= maxText+4<<10 {
		t.Fatalf("body of %d bytes does not exercise escaping", len(body))
	}

	if w := do(h, http.MethodPost, "/api/v1/extract", string(body)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body)
	}

	// over the text limit is still refused by the service
	body, _ = json.Marshal(grpcTransport.ExtractRequest{Text: strings.Repeat("a", maxText+1)})
	if w := do(h, http.MethodPost, "/api/v1/extract", string(body)); w.Code != http.StatusBadRequest {
		t.Errorf("oversized text status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHTTPGateway_RateLimit(t *testing.T) {
	h := newTestGateway(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	if w := do(h, http.MethodGet, "/api/v1/links?kind=ip&value=1.2.3.4", ""); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want %d", w.Code, http.StatusOK)
	}
	w := do(h, http.MethodGet, "/api/v1/links?kind=ip&value=1.2.3.4", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// health endpoints are never limited
	if w := do(h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestHTTPGateway_HealthEndpoints(t *testing.T) {
	h := newTestGateway(t, Options{})

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		w := do(h, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Errorf("%s = %d %q, want 200 %q", path, w.Code, w.Body.String(), want)
		}
	}

	do(h, http.MethodPost, "/api/v1/extract", `{"text":"1.2.3.4"}`)
	w := do(h, http.MethodGet, "/metrics", "")
	if !strings.Contains(w.Body.String(), "ioclens_extractions_total 1") {
		t.Errorf("metrics missing extraction counter")
	}
}

func TestReadyz_NotReady(t *testing.T) {
	store := history.NewStore(16)
	m := metrics.New()
	gw, err := NewGateway(NewLocalAnalyzer(newTestServer(store, m)), store, m, zap.NewNop(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	gw.ready = func() bool { return false }

	w := do(gw.Handler(), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHTTPGateway_OverGRPC(t *testing.T) {
	store := history.NewStore(16)
	m := metrics.New()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := grpcTransport.NewGRPCServer(newTestServer(store, m))
	go func() {
		_ = s.Serve(lis)
	}()
	defer s.GracefulStop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	gw, err := NewGateway(NewClientAnalyzer(conn), store, m, zap.NewNop(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	h := gw.Handler()

	w := do(h, http.MethodPost, "/api/v1/extract", `{"text":"`+sampleText+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	holder, ok := store.Lookup(w.Header().Get(sessionHeader))
	if !ok {
		t.Fatal("session not forwarded over gRPC")
	}
	if holder.Extraction().Set.Total() != 3 {
		t.Errorf("history = %+v", holder.Extraction())
	}
	w = doAs(h, w.Header().Get(sessionHeader), http.MethodGet, "/api/v1/export/iocs.txt", "")
	if !strings.Contains(w.Body.String(), "1.2.3.4") {
		t.Errorf("txt export over gRPC = %s", w.Body)
	}

	w = do(h, http.MethodPost, "/api/v1/analyze", `{"url":" "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, w); e.Message != "url is required" {
		t.Errorf("message = %q", e.Message)
	}
}

func BenchmarkHTTPGateway_Extract(b *testing.B) {
	h := newTestGateway(b, Options{})
	body := `{"text":"` + sampleText + `"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := do(h, http.MethodPost, "/api/v1/extract", body)
		if w.Code != http.StatusOK {
			b.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
	}
}
