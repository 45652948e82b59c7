// Package clipboard places rendered aggregation output on the system clipboard.
package clipboard

import (
	"errors"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard utility exists on the host.
var ErrUnavailable = errors.New("system clipboard unavailable")

// Copier copies textual data to a clipboard.
type Copier interface {
	Copy(text string) error
}

// CopierFunc adapts a function into a Copier.
type CopierFunc func(text string) error

// Copy invokes the underlying function.
func (copier CopierFunc) Copy(text string) error {
	return copier(text)
}

// SystemCopier writes to the operating system clipboard.
type SystemCopier struct{}

// Copy writes text to the system clipboard.
func (SystemCopier) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	return clipboard.WriteAll(text)
}

var (
	_ Copier = SystemCopier{}
	_ Copier = CopierFunc(nil)
)
