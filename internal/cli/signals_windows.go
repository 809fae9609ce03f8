//go:build windows

package cli

import "os"

// refreshSignals is nil on Windows, which has no SIGUSR1; use POST /api/refresh.
func refreshSignals() chan os.Signal {
	return nil
}
