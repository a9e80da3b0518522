package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/intent"
)

var (
	flagIntentData  []string
	flagPermissions []string
	flagJSON        bool
)

var intentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Create and inspect intents",
}

var intentCreateCmd = &cobra.Command{
	Use:   "create ACTION TYPE",
	Short: "Create an intent and list the services that can handle it",
	Long: `Create an intent for ACTION on the doctype TYPE.

Examples:
  cozyclient intent create PICK io.cozy.files
  cozyclient intent create EDIT io.cozy.contacts --data id=42 --permission GET`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseData(flagIntentData)
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.intents(cmd.Context())
		if err != nil {
			return err
		}
		it, err := client.Create(cmd.Context(), args[0], args[1], data, flagPermissions...)
		if err != nil {
			return err
		}
		return printIntent(cmd.OutOrStdout(), it, flagJSON)
	},
}

var intentGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show an intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.intents(cmd.Context())
		if err != nil {
			return err
		}
		it, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printIntent(cmd.OutOrStdout(), it, flagJSON)
	},
}

func init() {
	f := intentCreateCmd.Flags()
	f.StringArrayVar(&flagIntentData, "data", nil, "payload for the service (KEY=VALUE, repeatable)")
	f.StringSliceVar(&flagPermissions, "permission", nil, "permission verbs requested (repeatable)")

	intentCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print the intent as JSON")
	intentCmd.AddCommand(intentCreateCmd, intentGetCmd)
}

// parseData turns KEY=VALUE pairs into a payload. No pairs means no payload.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --data format %q: expected KEY=VALUE", p)
		}
		data[k] = v
	}
	return data, nil
}

// intentView is the printed form of an intent.
type intentView struct {
	ID          string              `json:"id"`
	Action      string              `json:"action"`
	Type        string              `json:"type"`
	Permissions []string            `json:"permissions,omitempty"`
	Client      string              `json:"client"`
	Services    []intent.ServiceRef `json:"services"`
}

func viewOf(it *intent.Intent) intentView {
	return intentView{
		ID:          it.ID,
		Action:      it.Action,
		Type:        it.Type,
		Permissions: it.Permissions,
		Client:      it.Client,
		Services:    it.Services,
	}
}

func printIntent(w io.Writer, it *intent.Intent, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(viewOf(it))
	}

	fmt.Fprintf(w, "Intent %s: %s on %s\n", it.ID, it.Action, it.Type)
	if it.Client != "" {
		fmt.Fprintf(w, "Client: %s\n", it.Client)
	}
	if len(it.Services) == 0 {
		fmt.Fprintln(w, "No service can handle this intent.")
		return nil
	}
	fmt.Fprintln(w, "Services:")
	for _, svc := range it.Services {
		fmt.Fprintf(w, "  - %s: %s\n", svc.Slug, svc.Href)
	}
	return nil
}
