package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
)

// terminalNavigator is the CLI's stand-in for page navigation. Absolute URLs
// are printed for the user to open; surfaces are recorded and announced.
type terminalNavigator struct {
	out    io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	surface string
}

func newTerminalNavigator(out io.Writer, logger *slog.Logger) *terminalNavigator {
	return &terminalNavigator{out: out, logger: logger}
}

func (n *terminalNavigator) Navigate(target string) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		fmt.Fprintf(n.out, "Open this URL in your browser to continue:\n\n  %s\n\n", target)
		return
	}

	n.mu.Lock()
	n.surface = target
	n.mu.Unlock()

	n.logger.Debug("navigate", "surface", target)

	switch target {
	case authsdk.LoginSurface:
		fmt.Fprintln(n.out, "You are signed out. Run `tickerctl login` to sign in again.")
	case authsdk.LandingSurface:
		fmt.Fprintln(n.out, "Signed in. Try `tickerctl list watch`.")
	}
}

// Surface returns the last surface navigated to.
func (n *terminalNavigator) Surface() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.surface
}
