package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser sends the user to an authorization URL in their default
// browser. Callers embedding the flow elsewhere may replace it.
var OpenBrowser = openBrowser

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s: open the authorization URL manually", runtime.GOOS)
	}
	return cmd.Start()
}
