package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(r *http.Request) (device, session string, rec *httptest.ResponseRecorder) {
	rec = httptest.NewRecorder()
	Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		device = DeviceIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	})).ServeHTTP(rec, r)
	return device, session, rec
}

func TestMiddlewareIssuesCookieAndUsesDeviceAsSession(t *testing.T) {
	device, session, rec := serve(httptest.NewRequest(http.MethodPost, "/talk", nil))

	if !isValidAnonID(device) {
		t.Fatalf("Expected generated anon id, got %q", device)
	}
	if session != device {
		t.Errorf("Expected session to default to device id, got %q", session)
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, AnonCookieName+"="+device) {
		t.Errorf("Expected cookie for %s, got %q", device, cookie)
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	const id = "anon_0123456789abcdef0123456789abcdef"
	r := httptest.NewRequest(http.MethodPost, "/talk", nil)
	r.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})

	device, _, _ := serve(r)

	if device != id {
		t.Errorf("Expected %s, got %s", id, device)
	}
}

func TestMiddlewareSessionFromHeaderOrQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/talk?session_id=tab-2", nil)
	if _, session, _ := serve(r); session != "tab-2" {
		t.Errorf("Expected query session, got %q", session)
	}

	r = httptest.NewRequest(http.MethodPost, "/talk?session_id=tab-2", nil)
	r.Header.Set(SessionHeaderName, "tab-1")
	if _, session, _ := serve(r); session != "tab-1" {
		t.Errorf("Expected header to win, got %q", session)
	}

	r = httptest.NewRequest(http.MethodPost, "/talk", nil)
	r.Header.Set(SessionHeaderName, "bad id with spaces")
	device, session, _ := serve(r)
	if session != device {
		t.Errorf("Expected invalid header to fall back to device id, got %q", session)
	}
}
