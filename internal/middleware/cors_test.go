package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveCORS(origins []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/talk", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(rec, req)
	return rec, reached
}

func TestCORSExplicitOrigin(t *testing.T) {
	rec, reached := serveCORS([]string{"https://app.example"}, http.MethodPost, "https://app.example")

	if !reached {
		t.Fatal("Expected request to reach the next handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Expected origin to be echoed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials for explicit origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Willow-Session-ID") {
		t.Errorf("Expected session header to be allowed, got %q", got)
	}
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	rec, _ := serveCORS([]string{"*"}, http.MethodGet, "https://elsewhere.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://elsewhere.example" {
		t.Errorf("Expected wildcard to allow origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Expected no credentials for wildcard match, got %q", got)
	}
}

func TestCORSWildcardAndExplicit(t *testing.T) {
	rec, _ := serveCORS([]string{"*", "https://app.example"}, http.MethodGet, "https://app.example")

	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected explicit listing to win over wildcard, got %q", got)
	}
}

func TestCORSRejectedOrigin(t *testing.T) {
	rec, reached := serveCORS([]string{"https://app.example"}, http.MethodGet, "https://evil.example")

	if !reached {
		t.Error("Expected disallowed origin to still reach the handler without CORS headers")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec, reached := serveCORS([]string{"https://app.example"}, http.MethodOptions, "https://app.example")

	if reached {
		t.Error("Expected preflight to be answered by the middleware")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}
