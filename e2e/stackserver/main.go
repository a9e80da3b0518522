// Package main serves the in-process fake instance on a real listener, for
// end-to-end runs of the cozyclient binary. It prints the base URL on the
// first line of stdout once it accepts connections.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thellimist/cozyclient/internal/stacktest"
)

var (
	flagAddr     string
	flagToken    string
	flagServices []string
	flagDeny     bool
)

var rootCmd = &cobra.Command{
	Use:          "stackserver",
	Short:        "Serve a fake instance for end-to-end tests",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := stacktest.NewUnstarted()
		s.AppToken = flagToken
		s.Deny = flagDeny
		for _, svc := range flagServices {
			slug, href, ok := strings.Cut(svc, "=")
			if !ok || slug == "" || href == "" {
				return fmt.Errorf("invalid --service %q: expected SLUG=HREF", svc)
			}
			s.Services = append(s.Services, stacktest.Service{Slug: slug, Href: href})
		}

		ln, err := net.Listen("tcp", flagAddr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "http://%s\n", ln.Addr())
		logrus.WithField("addr", ln.Addr().String()).Info("stack server listening")
		return http.Serve(ln, s.Router())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagAddr, "addr", "127.0.0.1:0", "listen address")
	f.StringVar(&flagToken, "token", "apptoken", "application token accepted on the intents API")
	f.StringArrayVar(&flagServices, "service", nil, "service attached to created intents as SLUG=HREF (repeatable)")
	f.BoolVar(&flagDeny, "deny", false, "deny every authorization request")
}

func main() {
	logrus.SetOutput(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("stack server stopped")
		os.Exit(1)
	}
}
