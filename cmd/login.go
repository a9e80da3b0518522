package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/auth"
)

var (
	flagNoBrowser    bool
	flagLoginTimeout time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register this client and authorize it in the browser",
	Long: `Register an OAuth client on the instance and run the authorization code
flow. A local server on 127.0.0.1 receives the redirect; the credentials are
then saved to the configured storage.

Examples:
  cozyclient login
  COZY_URL=https://alice.cozy.example.net cozyclient login --no-browser`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	f := loginCmd.Flags()
	f.BoolVar(&flagNoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	f.DurationVar(&flagLoginTimeout, "timeout", 5*time.Minute, "how long to wait for the authorization redirect")
}

// callbackServer listens on the configured redirect URI, or on a free port.
func callbackServer(redirectURI string) (*auth.CallbackServer, error) {
	cb := &auth.CallbackServer{}
	if redirectURI == "" {
		return cb, nil
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect_uri: %w", err)
	}
	if u.Hostname() != "127.0.0.1" && u.Hostname() != "localhost" {
		return nil, fmt.Errorf("redirect_uri must point to 127.0.0.1, got %q", u.Host)
	}
	if p := u.Port(); p != "" {
		if cb.Port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid redirect_uri port %q", p)
		}
	}
	cb.Path = u.Path
	if cb.Path == "" {
		cb.Path = "/"
	}
	return cb, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if creds, err := auth.LoadCredentials(ctx, s.storage); err == nil {
		fmt.Fprintf(out, "Already logged in as client %s. Run 'cozyclient logout' first to start over.\n", creds.Client.ClientID)
		return nil
	}
	// A pending state left by an interrupted login points at a callback
	// server that no longer exists.
	if _, err := auth.LoadPendingState(ctx, s.storage); err == nil {
		verbose(cmd, "Discarding unfinished authorization")
		if err := s.auth.DiscardPending(ctx, s.storage); err != nil {
			return err
		}
	}

	cb, err := callbackServer(s.cfg.RedirectURI)
	if err != nil {
		return err
	}
	if err := cb.Start(); err != nil {
		return err
	}
	defer cb.Close()
	verbose(cmd, "Listening for the redirect on %s", cb.RedirectURI())

	flow := auth.Flow{
		Storage: s.storage,
		PageURL: cb.RedirectURI(),
		Describe: func() (auth.Client, []string) {
			return auth.Client{
				RedirectURI:     cb.RedirectURI(),
				SoftwareID:      s.cfg.SoftwareID,
				SoftwareVersion: appVersion,
				ClientName:      s.cfg.ClientName,
				ClientKind:      "desktop",
			}, s.cfg.Scopes
		},
		Authorize: func(_ context.Context, client auth.Client, authURL string) error {
			verbose(cmd, "Registered client %s", client.ClientID)
			if flagNoBrowser {
				fmt.Fprintf(out, "Open this URL in your browser to authorize cozyclient:\n\n  %s\n\n", authURL)
				return nil
			}
			fmt.Fprintln(out, "Opening browser for authorization...")
			if err := auth.OpenBrowser(authURL); err != nil {
				fmt.Fprintf(out, "Could not open a browser. Open this URL instead:\n\n  %s\n\n", authURL)
			}
			return nil
		},
	}

	if _, err := s.auth.RunFlow(ctx, flow); !errors.Is(err, auth.ErrPending) {
		if err == nil {
			err = errors.New("authorization did not start")
		}
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, flagLoginTimeout)
	defer cancel()
	callbackURL, err := cb.WaitForCallback(waitCtx)
	if err != nil {
		return err
	}

	flow.PageURL = callbackURL
	creds, err := s.auth.RunFlow(ctx, flow)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in. Client %s, scope %q.\n", creds.Client.ClientID, creds.Token.Scope)
	return nil
}
