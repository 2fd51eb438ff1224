// Package gwlog constructs the component-prefixed stdlib loggers every
// Pincer binary uses: log.New(w, "<component> ", log.LstdFlags|log.LUTC).
package gwlog

import (
	"io"
	"log"
	"os"
)

// New returns a logger prefixed with "component ", writing to w (or
// os.Stdout if w is nil), timestamped in UTC.
func New(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	return log.New(w, component+" ", log.LstdFlags|log.LUTC)
}
