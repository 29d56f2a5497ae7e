package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	calmock "github.com/MrWong99/voxcal/pkg/calendar/mock"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "calendar", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "ledger", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Checks["calendar"] != "ok" {
		t.Errorf("calendar check = %q, want %q", body.Checks["calendar"], "ok")
	}
	if body.Checks["ledger"] != "ok" {
		t.Errorf("ledger check = %q, want %q", body.Checks["ledger"], "ok")
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "calendar", Check: func(_ context.Context) error {
			return errors.New("no usable Google token")
		}},
		Checker{Name: "ledger", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["calendar"] != "fail: no usable Google token" {
		t.Errorf("calendar check = %q, want %q", body.Checks["calendar"], "fail: no usable Google token")
	}
	if body.Checks["ledger"] != "ok" {
		t.Errorf("ledger check = %q, want %q", body.Checks["ledger"], "ok")
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersFail(t *testing.T) {
	h := New(
		Checker{Name: "calendar", Check: func(_ context.Context) error {
			return errors.New("token expired")
		}},
		Checker{Name: "ledger", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["calendar"] != "fail: token expired" {
		t.Errorf("calendar check = %q", body.Checks["calendar"])
	}
	if body.Checks["ledger"] != "fail: connection refused" {
		t.Errorf("ledger check = %q", body.Checks["ledger"])
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCalendarCheck(t *testing.T) {
	creds := &calmock.Credentials{}
	c := CalendarCheck(creds)

	if c.Name != "calendar" {
		t.Errorf("name = %q, want %q", c.Name, "calendar")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}

	creds.CheckErr = errors.New("token file missing")
	if err := c.Check(context.Background()); err == nil || err.Error() != "token file missing" {
		t.Errorf("Check() = %v, want token file missing", err)
	}
	if creds.CheckCount() != 2 {
		t.Errorf("CheckCount() = %d, want 2", creds.CheckCount())
	}
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func TestLedgerCheck(t *testing.T) {
	c := LedgerCheck(fakePinger{})
	if c.Name != "ledger" {
		t.Errorf("name = %q, want %q", c.Name, "ledger")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}

	c = LedgerCheck(fakePinger{err: errors.New("pool closed")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check() = nil, want error")
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestServer_ServesAllEndpoints(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil,
		Checker{Name: "calendar", Check: func(_ context.Context) error { return nil }},
	)

	errc, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error: %v", err)
		}
		if err := <-errc; err != nil {
			t.Errorf("serve error: %v", err)
		}
	}()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get("http://" + srv.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestServer_ReadyzReflectsCheckers(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil,
		Checker{Name: "calendar", Check: func(_ context.Context) error {
			return errors.New("no usable Google token")
		}},
	)

	errc, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error: %v", err)
		}
		<-errc
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["calendar"] != "fail: no usable Google token" {
		t.Errorf("calendar check = %q", body.Checks["calendar"])
	}

	live, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	live.Body.Close()
	if live.StatusCode != http.StatusOK {
		t.Errorf("liveness status = %d, want %d", live.StatusCode, http.StatusOK)
	}
}

func TestServer_AppliesMiddleware(t *testing.T) {
	var hits int
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			next.ServeHTTP(w, r)
		})
	}

	srv := NewServer("127.0.0.1:0", mw)
	errc, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error: %v", err)
		}
		<-errc
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	if hits != 1 {
		t.Errorf("middleware hits = %d, want 1", hits)
	}
}

func TestServer_StartListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	srv := NewServer(ln.Addr().String(), nil)
	if _, err := srv.Start(); err == nil {
		t.Fatal("Start() = nil error, want bind failure")
	}
}
