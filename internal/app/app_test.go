package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxcal/internal/app"
	"github.com/MrWong99/voxcal/internal/config"
	"github.com/MrWong99/voxcal/internal/funcs/endsession"
	audiomock "github.com/MrWong99/voxcal/pkg/audio/mock"
	calmock "github.com/MrWong99/voxcal/pkg/calendar/mock"
	ledgermock "github.com/MrWong99/voxcal/pkg/ledger/mock"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
	voicemock "github.com/MrWong99/voxcal/pkg/provider/voice/mock"
)

// testConfig returns the stock config bound to an ephemeral port so parallel
// tests never fight over an address.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	return cfg
}

// newTestApp builds an App with every external dependency mocked out.
func newTestApp(t *testing.T) (*app.App, *voicemock.Session) {
	t.Helper()

	sess := voicemock.NewSession()
	platform := &audiomock.Platform{
		SourceResult: audiomock.NewSource(16),
		SinkResult:   &audiomock.Sink{},
	}

	application, err := app.New(context.Background(), testConfig(),
		app.WithProvider(&voicemock.Provider{Session: sess}),
		app.WithPlatform(platform),
		app.WithCalendar(&calmock.Credentials{}, &calmock.Writer{}),
		app.WithRecorder(&ledgermock.Recorder{}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return application, sess
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	creds := &calmock.Credentials{}
	application, err := app.New(context.Background(), testConfig(),
		app.WithProvider(&voicemock.Provider{Session: voicemock.NewSession()}),
		app.WithPlatform(&audiomock.Platform{}),
		app.WithCalendar(creds, &calmock.Writer{}),
		app.WithRecorder(&ledgermock.Recorder{}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}

	// New probes the calendar credentials once at startup.
	if got := creds.CheckCount(); got != 1 {
		t.Errorf("credential Check calls = %d, want 1", got)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Agent.APIKeyEnv = "VOXCAL_TEST_MISSING_API_KEY"

	// No injected provider, so New must read the key from the environment.
	_, err := app.New(context.Background(), cfg,
		app.WithPlatform(&audiomock.Platform{}),
		app.WithCalendar(&calmock.Credentials{}, &calmock.Writer{}),
		app.WithRecorder(&ledgermock.Recorder{}),
	)
	if err == nil {
		t.Fatal("New() without the API key should return an error")
	}
	if !strings.Contains(err.Error(), "VOXCAL_TEST_MISSING_API_KEY") {
		t.Errorf("error = %v, want it to name the missing variable", err)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	application, _ := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	// Shutdown is idempotent.
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	application, _ := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	// Give Run a moment to set up goroutines.
	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}

func TestApp_RunEndsWithConversation(t *testing.T) {
	t.Parallel()

	application, sess := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	waitFor(t, func() bool { return sess.Handler() != nil }, "session did not start")

	if _, err := sess.Handler()(endsession.Name, "{}"); err != nil {
		t.Fatalf("end_session handler error: %v", err)
	}
	sess.EventsCh <- voice.Event{Kind: voice.KindAgentAudioDone}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() after end_session = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the conversation ended")
	}
}
