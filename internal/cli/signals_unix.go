//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// refreshSignals delivers SIGUSR1, the on-demand refresh request.
func refreshSignals() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	return ch
}
