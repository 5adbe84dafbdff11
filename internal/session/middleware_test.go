package session

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func runRequest(t *testing.T, minVersion string, mutate func(*http.Request)) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var gotSession string
	handler := Middleware(minVersion, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotSession
}

func TestMiddleware_MintsSessionCookie(t *testing.T) {
	rec, gotSession := runRequest(t, "", nil)

	if gotSession == "" {
		t.Fatal("no session id in handler context")
	}
	if _, err := uuid.Parse(gotSession); err != nil {
		t.Errorf("session id %q is not a UUID", gotSession)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("cookies = %+v, want one %s cookie", cookies, CookieName)
	}
	if cookies[0].Value != gotSession {
		t.Errorf("cookie value %q != context session %q", cookies[0].Value, gotSession)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
}

func TestMiddleware_ReusesExistingCookie(t *testing.T) {
	existing := uuid.NewString()
	rec, gotSession := runRequest(t, "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: existing})
	})

	if gotSession != existing {
		t.Errorf("session = %q, want existing %q", gotSession, existing)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("re-minted a cookie for a returning shopper")
	}
}

func TestMiddleware_RejectsTamperedCookie(t *testing.T) {
	_, gotSession := runRequest(t, "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "../../etc/passwd"})
	})

	if gotSession == "../../etc/passwd" {
		t.Fatal("tampered cookie value accepted")
	}
	if _, err := uuid.Parse(gotSession); err != nil {
		t.Errorf("replacement session %q is not a UUID", gotSession)
	}
}

func TestMiddleware_OutdatedClientGets426(t *testing.T) {
	rec, _ := runRequest(t, "1.4.0", func(r *http.Request) {
		r.Header.Set(ClientHeader, `version="1.2.0";platform="web"`)
	})

	if rec.Code != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", rec.Code)
	}
}

func TestMiddleware_CurrentClientPasses(t *testing.T) {
	rec, gotSession := runRequest(t, "1.4.0", func(r *http.Request) {
		r.Header.Set(ClientHeader, `version="1.5.1"`)
	})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotSession == "" {
		t.Error("handler not reached")
	}
}

func TestMiddleware_MalformedClientHeaderIs400(t *testing.T) {
	rec, _ := runRequest(t, "1.4.0", func(r *http.Request) {
		r.Header.Set(ClientHeader, `version=`)
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMiddleware_HealthExempt(t *testing.T) {
	handler := Middleware("1.4.0", slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("health check minted a session cookie")
	}
}
