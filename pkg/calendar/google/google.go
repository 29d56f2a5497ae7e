// Package google implements the calendar interfaces against the Google
// Calendar v3 API, authenticated by an OAuth authorized-user token stored on
// disk (the file the -authorize flow writes).
//
// Credential errors carry user-facing sentences rather than conventional
// error strings: the booking layer relays them verbatim through the voice
// dialogue.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/voxcal/pkg/calendar"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Option is a functional option for configuring the [Client].
type Option func(*Client)

// WithClientOptions replaces the Google API client options used to build the
// calendar service. Intended for tests, which point the service at a local
// HTTP server with authentication disabled.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.clientOpts = opts
	}
}

// Client talks to the Google Calendar v3 API. It implements
// [calendar.Writer] and [calendar.CredentialSource].
type Client struct {
	tokenFile  string
	clientOpts []option.ClientOption

	mu  sync.Mutex
	svc *gcal.Service
}

var (
	_ calendar.Writer           = (*Client)(nil)
	_ calendar.CredentialSource = (*Client)(nil)
)

// New creates a Client that reads its authorized-user token from tokenFile.
// The file is not touched until [Client.Check] or the first event creation.
func New(tokenFile string, opts ...Option) *Client {
	c := &Client{tokenFile: tokenFile}
	for _, o := range opts {
		o(c)
	}
	return c
}

// authorizedUser mirrors the token file layout written by the -authorize
// flow, which matches what Google's installed-app client libraries store.
type authorizedUser struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry,omitempty"`
}

// Check reports whether the token file exists and loads. The returned error
// text is user-facing.
func (c *Client) Check() error {
	_, err := c.credentials()
	return err
}

// credentials reads and validates the token file.
func (c *Client) credentials() (*authorizedUser, error) {
	raw, err := os.ReadFile(c.tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Google token file not found at %s. Run 'voxcal -authorize' to create it.", c.tokenFile)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to load Google credentials: %v", err)
	}

	var tok authorizedUser
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("Failed to load Google credentials: %v", err)
	}
	if tok.Token == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("Failed to load Google credentials: %s holds no access or refresh token", c.tokenFile)
	}
	return &tok, nil
}

// tokenSource builds a refreshing token source from the stored credentials.
func (c *Client) tokenSource(ctx context.Context, tok *authorizedUser) oauth2.TokenSource {
	endpoint := googleoauth.Endpoint
	if tok.TokenURI != "" {
		endpoint = oauth2.Endpoint{TokenURL: tok.TokenURI}
	}
	conf := &oauth2.Config{
		ClientID:     tok.ClientID,
		ClientSecret: tok.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       tok.Scopes,
	}

	t := &oauth2.Token{
		AccessToken:  tok.Token,
		RefreshToken: tok.RefreshToken,
	}
	// Expiry is parsed best effort: an unparseable value leaves the token
	// looking expired, which just forces a refresh on first use.
	if exp, err := time.Parse(time.RFC3339, tok.Expiry); err == nil {
		t.Expiry = exp
	}
	return conf.TokenSource(ctx, t)
}

// ensureService builds the calendar service on first use and caches it.
func (c *Client) ensureService(ctx context.Context) (*gcal.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}

	opts := c.clientOpts
	if opts == nil {
		tok, err := c.credentials()
		if err != nil {
			return nil, err
		}
		// The token source outlives this call because the service is cached,
		// so it is bound to the background context rather than ctx.
		opts = []option.ClientOption{option.WithTokenSource(c.tokenSource(context.Background(), tok))}
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: build calendar service: %w", err)
	}
	c.svc = svc
	return svc, nil
}

// CreateEvent inserts ev into calendarID and returns the service's reference
// data. The created ID falls back to "unknown" and the created start to the
// requested instant when the service omits them.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev calendar.Event) (calendar.Created, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return calendar.Created{}, err
	}

	body := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}

	created, err := svc.Events.Insert(calendarID, body).Context(ctx).Do()
	if err != nil {
		return calendar.Created{}, fmt.Errorf("google: insert event: %w", err)
	}

	out := calendar.Created{
		ID:    created.Id,
		Link:  created.HtmlLink,
		Start: ev.Start.Format(time.RFC3339),
	}
	if out.ID == "" {
		out.ID = "unknown"
	}
	if created.Start != nil && created.Start.DateTime != "" {
		out.Start = created.Start.DateTime
	}
	return out, nil
}
