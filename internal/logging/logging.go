// Package logging provides the structured logger used for corpus I/O
// warnings and malformed-class skip notices.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New builds the application logger. verbose lowers the level to Debug;
// otherwise only Info and above are emitted.
func New(verbose bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "cryptoaudit",
		Level:  level,
		Output: os.Stderr,
	})
}
