package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/auth"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		creds, err := auth.LoadCredentials(ctx, s.storage)
		if errors.Is(err, auth.ErrNotFound) {
			return errNotLoggedIn
		}
		if err != nil {
			return err
		}

		token, err := s.auth.RefreshToken(ctx, creds.Client, creds.Token)
		if err != nil {
			return err
		}
		creds.Token = token
		if err := auth.SaveCredentials(ctx, s.storage, creds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, scope %q.\n", token.Scope)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored authorization",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return printStatus(cmd, s)
	},
}

func printStatus(cmd *cobra.Command, s *session) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Instance: %s\n", s.cfg.URL)
	creds, err := auth.LoadCredentials(ctx, s.storage)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Client:   %s (%s)\n", creds.Client.ClientID, creds.Client.ClientName)
		fmt.Fprintf(out, "Scope:    %s\n", creds.Token.Scope)
		return nil
	case !errors.Is(err, auth.ErrNotFound):
		return err
	}

	pending, err := auth.LoadPendingState(ctx, s.storage)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Authorization pending for client %s\n", pending.Client.ClientID)
		verbose(cmd, "Authorization URL: %s", pending.URL)
	case errors.Is(err, auth.ErrNotFound):
		fmt.Fprintln(out, "Not logged in")
	default:
		return err
	}
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Unregister the client and forget the stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.auth.Logout(cmd.Context(), s.storage); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}
