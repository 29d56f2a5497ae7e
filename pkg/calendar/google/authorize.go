package google

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// Authorize runs the installed-app OAuth consent flow and writes the
// resulting authorized-user token to tokenFile, where [Client] picks it up.
//
// credentialsFile is the OAuth client file downloaded from the Google Cloud
// console. The consent URL is printed to out, the authorization code is read
// from in (one line), and the exchanged token is stored with permissions
// 0600. The requested scope covers calendar event creation only.
func Authorize(ctx context.Context, credentialsFile, tokenFile string, in io.Reader, out io.Writer) error {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return fmt.Errorf("google: read OAuth client file: %w", err)
	}
	conf, err := googleoauth.ConfigFromJSON(raw, gcal.CalendarEventsScope)
	if err != nil {
		return fmt.Errorf("google: parse OAuth client file: %w", err)
	}

	url := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this URL in your browser and approve access:\n\n  %s\n\nPaste the authorization code: ", url)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("google: read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return errors.New("google: empty authorization code")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("google: exchange authorization code: %w", err)
	}

	stored := authorizedUser{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     conf.Endpoint.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		Scopes:       conf.Scopes,
	}
	if !tok.Expiry.IsZero() {
		stored.Expiry = tok.Expiry.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("google: encode token: %w", err)
	}
	if dir := filepath.Dir(tokenFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("google: create token directory: %w", err)
		}
	}
	if err := os.WriteFile(tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("google: write token file: %w", err)
	}

	fmt.Fprintf(out, "\nToken saved to %s.\n", tokenFile)
	return nil
}
