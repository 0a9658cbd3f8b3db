package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/mailroom/internal/requestinfo"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(true, "")(ok)

	req := httptest.NewRequest(http.MethodPost, "http://news.example.com/subscriptions?x=1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://news.example.com/subscriptions?x=1" {
		t.Fatalf("Location = %q", loc)
	}

	for _, target := range []string{
		"http://localhost:8000/subscriptions",
		"http://news.example.com/health_check",
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rr.Code)
		}
	}

	proxied := httptest.NewRequest(http.MethodGet, "http://news.example.com/subscriptions", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, proxied)
	if rr.Code != http.StatusOK {
		t.Fatalf("proxied: status = %d, want 200", rr.Code)
	}
}

func TestForceHTTPS_Disabled(t *testing.T) {
	rr := httptest.NewRecorder()
	ForceHTTPS(false, "https://news.example.com")(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://news.example.com/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestForceHTTPS_BaseURLHost(t *testing.T) {
	h := ForceHTTPS(true, "https://news.example.com/")(ok)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8000/subscriptions?x=1", nil))
	if rr.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://news.example.com/subscriptions?x=1" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	Security(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{
		"Strict-Transport-Security",
		"Content-Security-Policy",
		"X-Content-Type-Options",
		"Referrer-Policy",
		"Cache-Control",
	} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(0.001, 2)(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/subscriptions", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	Recover(zap.New(core))(boom).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("panic not logged")
	}
}

func TestAccessLog_RequestInfoFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := requestinfo.Enrich(AccessLog(zap.New(core))(ok))

	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/124.0.6367.91 Safari/537.36")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["browser"] != "Chrome" || fields["os"] != "MacOSX" {
		t.Fatalf("ua fields = %v", fields)
	}
	if v, _ := fields["browser_version"].(string); v == "" {
		t.Fatalf("browser_version missing: %v", fields)
	}
	if _, ok := fields["arrived_at"]; !ok {
		t.Fatalf("arrived_at missing: %v", fields)
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Fatalf("status = %v", fields["status"])
	}
}
