package google_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxcal/pkg/calendar"
	"github.com/MrWong99/voxcal/pkg/calendar/google"
	"google.golang.org/api/option"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// writeTokenFile writes a minimal authorized-user token into dir and returns
// its path.
func writeTokenFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "token.json")
	tok := map[string]any{
		"token":         "ya29.test",
		"refresh_token": "1//refresh",
		"token_uri":     "https://oauth2.googleapis.com/token",
		"client_id":     "client.apps.googleusercontent.com",
		"client_secret": "secret",
		"scopes":        []string{"https://www.googleapis.com/auth/calendar.events"},
	}
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	return path
}

func TestCheck_MissingTokenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	c := google.New(path)

	err := c.Check()
	if err == nil {
		t.Fatal("Check(): err=nil, want missing-token error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("Check() error %q does not name the token path", err)
	}
	if !strings.Contains(err.Error(), "voxcal -authorize") {
		t.Errorf("Check() error %q does not point at the authorize flow", err)
	}
}

func TestCheck_MalformedTokenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	err := google.New(path).Check()
	if err == nil || !strings.Contains(err.Error(), "Failed to load Google credentials") {
		t.Fatalf("Check(): err=%v, want load failure", err)
	}
}

func TestCheck_ValidTokenFile(t *testing.T) {
	t.Parallel()

	path := writeTokenFile(t, t.TempDir())
	if err := google.New(path).Check(); err != nil {
		t.Fatalf("Check(): %v, want nil", err)
	}
}

// insertedEvent mirrors the request body the calendar service receives.
type insertedEvent struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"end"`
}

// newTestClient returns a Client whose calendar service talks to handler.
func newTestClient(t *testing.T, handler http.Handler) *google.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return google.New("", google.WithClientOptions(
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL),
	))
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	var got insertedEvent
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "abc123",
			"htmlLink": "https://calendar.google.com/event?eid=abc123",
			"start": {"dateTime": "2025-12-05T18:00:00+05:30"}
		}`))
	}))

	start := time.Date(2025, 12, 5, 18, 0, 0, 0, ist)
	created, err := c.CreateEvent(t.Context(), "primary", calendar.Event{
		Summary:     "Dentist",
		Description: "Check-up",
		Start:       start,
		End:         start.Add(30 * time.Minute),
		TimeZone:    "Asia/Kolkata",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if !strings.Contains(gotPath, "/calendars/primary/events") {
		t.Errorf("request path = %q, want it to target calendars/primary/events", gotPath)
	}
	if got.Summary != "Dentist" || got.Description != "Check-up" {
		t.Errorf("request body summary/description = %q/%q", got.Summary, got.Description)
	}
	if got.Start.DateTime != "2025-12-05T18:00:00+05:30" {
		t.Errorf("request start = %q, want RFC 3339 with +05:30", got.Start.DateTime)
	}
	if got.Start.TimeZone != "Asia/Kolkata" || got.End.TimeZone != "Asia/Kolkata" {
		t.Errorf("request time zones = %q/%q, want Asia/Kolkata", got.Start.TimeZone, got.End.TimeZone)
	}
	if got.End.DateTime != "2025-12-05T18:30:00+05:30" {
		t.Errorf("request end = %q, want 30 minutes after start", got.End.DateTime)
	}

	if created.ID != "abc123" {
		t.Errorf("created.ID = %q, want %q", created.ID, "abc123")
	}
	if created.Link != "https://calendar.google.com/event?eid=abc123" {
		t.Errorf("created.Link = %q", created.Link)
	}
	if created.Start != "2025-12-05T18:00:00+05:30" {
		t.Errorf("created.Start = %q, want the service echo", created.Start)
	}
}

func TestCreateEvent_Fallbacks(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))

	start := time.Date(2025, 12, 5, 18, 0, 0, 0, ist)
	created, err := c.CreateEvent(t.Context(), "primary", calendar.Event{
		Summary: "Dentist",
		Start:   start,
		End:     start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if created.ID != "unknown" {
		t.Errorf("created.ID = %q, want %q when the service omits one", created.ID, "unknown")
	}
	if created.Link != "" {
		t.Errorf("created.Link = %q, want empty", created.Link)
	}
	if created.Start != "2025-12-05T18:00:00+05:30" {
		t.Errorf("created.Start = %q, want requested instant fallback", created.Start)
	}
}

func TestCreateEvent_ServiceError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
	}))

	start := time.Date(2025, 12, 5, 18, 0, 0, 0, ist)
	_, err := c.CreateEvent(t.Context(), "primary", calendar.Event{
		Summary: "Dentist",
		Start:   start,
		End:     start.Add(30 * time.Minute),
	})
	if err == nil {
		t.Fatal("CreateEvent: err=nil, want service error")
	}
	if !strings.Contains(err.Error(), "insert event") {
		t.Errorf("err=%q, want insert wrap", err)
	}
}
