package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/auth"
	"github.com/thellimist/cozyclient/internal/toolfilter"
)

var (
	flagIncludeTools string
	flagExcludeTools string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve intents and authorization status as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout exposing the tools create_intent,
get_intent and auth_status, backed by the stored credentials.

Logs go to stderr or --log-file, never to stdout.

Examples:
  cozyclient mcp
  cozyclient mcp --include-tools get_intent,auth_status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		srv, err := newMCPServer(s, toolfilter.ParseList(flagIncludeTools), toolfilter.ParseList(flagExcludeTools))
		if err != nil {
			return err
		}
		return server.ServeStdio(srv)
	},
}

func init() {
	f := mcpCmd.Flags()
	f.StringVar(&flagIncludeTools, "include-tools", "", "serve only these tools (comma-separated)")
	f.StringVar(&flagExcludeTools, "exclude-tools", "", "serve all tools except these (comma-separated)")
	mcpCmd.MarkFlagsMutuallyExclusive("include-tools", "exclude-tools")
}

// newMCPServer registers the tools selected by include and exclude.
func newMCPServer(s *session, include, exclude []string) (*server.MCPServer, error) {
	t := &tools{s: s}
	all := []server.ServerTool{{
		Tool: mcp.NewTool("create_intent",
			mcp.WithDescription("Create an intent and return the services that can handle it"),
			mcp.WithString("action", mcp.Required(), mcp.Description("Intent action, e.g. PICK, EDIT, CREATE")),
			mcp.WithString("type", mcp.Required(), mcp.Description("Doctype the action applies to, e.g. io.cozy.files")),
			mcp.WithArray("permissions", mcp.Description("Permission verbs requested"), mcp.WithStringItems()),
			mcp.WithObject("data", mcp.Description("Payload handed to the service")),
		),
		Handler: t.createIntent,
	}, {
		Tool: mcp.NewTool("get_intent",
			mcp.WithDescription("Fetch an intent by id"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Intent id")),
		),
		Handler: t.getIntent,
	}, {
		Tool: mcp.NewTool("auth_status",
			mcp.WithDescription("Report whether cozyclient holds credentials for the instance"),
		),
		Handler: t.authStatus,
	}}

	names := make([]string, len(all))
	for i, st := range all {
		names[i] = st.Tool.Name
	}
	selected, err := toolfilter.Select(names, include, exclude)
	if err != nil {
		return nil, err
	}

	srv := server.NewMCPServer("cozyclient", appVersion)
	for _, st := range all {
		if slices.Contains(selected, st.Tool.Name) {
			srv.AddTool(st.Tool, st.Handler)
		}
	}
	return srv, nil
}

type tools struct {
	s *session
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *tools) createIntent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	action, _ := args["action"].(string)
	typ, _ := args["type"].(string)
	var perms []string
	if list, ok := args["permissions"].([]any); ok {
		for _, p := range list {
			if s, ok := p.(string); ok {
				perms = append(perms, s)
			}
		}
	}

	client, err := t.s.intents(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := client.Create(ctx, action, typ, args["data"], perms...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(it))
}

func (t *tools) getIntent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := request.GetArguments()["id"].(string)

	client, err := t.s.intents(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := client.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(it))
}

type statusView struct {
	Instance   string `json:"instance"`
	LoggedIn   bool   `json:"logged_in"`
	Pending    bool   `json:"pending"`
	ClientID   string `json:"client_id,omitempty"`
	ClientName string `json:"client_name,omitempty"`
	Scope      string `json:"scope,omitempty"`
}

func (t *tools) authStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := statusView{Instance: t.s.cfg.URL}

	creds, err := auth.LoadCredentials(ctx, t.s.storage)
	switch {
	case err == nil:
		v.LoggedIn = true
		v.ClientID, v.ClientName, v.Scope = creds.Client.ClientID, creds.Client.ClientName, creds.Token.Scope
	case errors.Is(err, auth.ErrNotFound):
		if _, err := auth.LoadPendingState(ctx, t.s.storage); err == nil {
			v.Pending = true
		}
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}
