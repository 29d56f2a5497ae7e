// Package bookevent exposes the calendar booking function to the agent.
package bookevent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/voxcal/internal/booking"
	"github.com/MrWong99/voxcal/internal/funcs"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
)

// Name is the function name the agent invokes.
const Name = "book_google_calendar_event"

// arguments mirrors the JSON schema served to the agent. DurationMinutes is
// deliberately untyped: agents produce numbers, quoted numbers, or omit the
// field, and the booking service coerces all of them.
type arguments struct {
	Summary         string `json:"summary"`
	StartISO        string `json:"start_iso"`
	DurationMinutes any    `json:"duration_minutes"`
	Description     string `json:"description"`
}

// New returns the booking function backed by svc.
func New(svc *booking.Service) funcs.Func {
	return funcs.Func{
		Definition: voice.FunctionDefinition{
			Name:        Name,
			Description: "Create an event in Google Calendar. Expects an ISO start datetime and duration in minutes.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{
						"type":        "string",
						"description": "Event title, e.g., 'Consultation - Kuhu'",
					},
					"start_iso": map[string]any{
						"type":        "string",
						"description": "Start datetime in ISO format with timezone. MUST use the current year or later. Format: YYYY-MM-DDTHH:MM:SS+05:30",
					},
					"duration_minutes": map[string]any{
						"type":        "integer",
						"description": "Duration in minutes",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional description or contact details",
					},
				},
				"required": []string{"summary", "start_iso"},
			},
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			var a arguments
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", fmt.Errorf("bookevent: decode arguments: %w", err)
			}
			return svc.Book(ctx, booking.Request{
				Summary:     a.Summary,
				StartText:   a.StartISO,
				Duration:    a.DurationMinutes,
				Description: a.Description,
			}), nil
		},
	}
}
