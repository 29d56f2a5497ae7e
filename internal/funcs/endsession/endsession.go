// Package endsession exposes the session-closing function to the agent.
package endsession

import (
	"context"

	"github.com/MrWong99/voxcal/internal/booking"
	"github.com/MrWong99/voxcal/internal/funcs"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
)

// Name is the function name the agent invokes.
const Name = "end_session"

// New returns the end-session function. It has no arguments and no side
// effects; svc only supplies the closing message.
func New(svc *booking.Service) funcs.Func {
	return funcs.Func{
		Definition: voice.FunctionDefinition{
			Name:        Name,
			Description: "End the booking session politely.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		Handler: func(_ context.Context, _ string) (string, error) {
			return svc.EndSession(), nil
		},
	}
}
