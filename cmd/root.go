package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/config"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagConfig  string
	flagVerbose bool
	flagLogFile string
)

var rootCmd = &cobra.Command{
	Use:   "cozyclient",
	Short: "Authorize against a Cozy instance and work with intents",
	Long: `cozyclient registers an OAuth client on a Cozy instance, runs the
authorization code flow through your browser, and creates or inspects
intents with the resulting credentials.

Configuration is read from ~/.cozyclient/config.yaml (or $COZYCLIENT_CONFIG),
a .env file in the current directory, and COZY_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(".env")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.cozyclient/config.yaml)")
	pf.BoolVar(&flagVerbose, "verbose", false, "log debug messages")
	pf.StringVar(&flagLogFile, "log-file", "", "write logs to this rotating file instead of stderr")

	rootCmd.AddCommand(loginCmd, refreshCmd, statusCmd, logoutCmd, intentCmd, mcpCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("cozyclient v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// verbose prints a message if --verbose is set.
func verbose(cmd *cobra.Command, format string, args ...interface{}) {
	if flagVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}
