package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxcal/internal/config"
)

var kolkata = time.FixedZone("IST", 5*3600+30*60)

func TestRenderPrompt_Preamble(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 12, 4, 18, 30, 0, 0, kolkata)
	got := config.RenderPrompt("body", "Asia/Kolkata", now)

	wantPrefix := "IMPORTANT CONTEXT:\n" +
		"Current date and time: 2025-12-04 18:30 (Asia/Kolkata timezone, UTC+5:30)\n" +
		"Today's date: 2025-12-04\n" +
		"Tomorrow's date: 2025-12-05\n\n"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("preamble mismatch\ngot:  %q\nwant prefix: %q", got, wantPrefix)
	}
	if !strings.HasSuffix(got, "body") {
		t.Errorf("body should follow the preamble, got: %q", got)
	}
}

func TestRenderPrompt_ExpandsPlaceholders(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 12, 4, 9, 5, 0, 0, kolkata)
	body := "Today is {today}, tomorrow is {tomorrow}, the year is {year}."
	got := config.RenderPrompt(body, "Asia/Kolkata", now)

	if !strings.Contains(got, "Today is 2025-12-04, tomorrow is 2025-12-05, the year is 2025.") {
		t.Errorf("placeholders not expanded, got: %q", got)
	}
}

func TestRenderPrompt_YearBoundary(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, kolkata)
	got := config.RenderPrompt("{today} / {tomorrow}", "Asia/Kolkata", now)

	if !strings.Contains(got, "2025-12-31 / 2026-01-01") {
		t.Errorf("tomorrow should roll into the next year, got: %q", got)
	}
}

func TestRenderPrompt_DefaultPromptFullyExpanded(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 12, 4, 12, 0, 0, 0, kolkata)
	got := config.RenderPrompt(config.DefaultPrompt, "Asia/Kolkata", now)

	for _, leftover := range []string{"{today}", "{tomorrow}", "{year}"} {
		if strings.Contains(got, leftover) {
			t.Errorf("rendered prompt still contains %s", leftover)
		}
	}
	if !strings.Contains(got, "When user says 'today', use date: 2025-12-04") {
		t.Error("rendered prompt should pin 'today' to the current date")
	}
	if !strings.Contains(got, "Example for tomorrow at 10 AM: 2025-12-05T10:00:00+05:30") {
		t.Error("rendered prompt should carry a dated tomorrow example")
	}
	if !strings.Contains(got, "ALWAYS use the year 2025 or later") {
		t.Error("rendered prompt should pin the current year")
	}
}
