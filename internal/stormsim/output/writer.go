// Package output delivers simulation row-sets to the configured sinks. It
// provides the RowWriter implementations (CSV, remote table, webhook), the
// serial and concurrent fanouts that route row-sets to every writer, and the
// buffering/batching layers between trial code and the sinks.
package output

import (
	"fmt"
	"strings"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// RowWriter writes row-sets for one output kind to a single sink.
//
// Writers holding network clients must build them in LazyInitialize, which is
// called from the goroutine that performs the writes, after construction and
// before the first WriteRows. Writers are never handed across the output
// queue already initialised.
type RowWriter interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	LazyInitialize() error
	WriteRows(kind model.OutputKind, rows []model.Row) error
}

// Closer is implemented by writers that must flush or release resources when
// the run ends. Errors from Close surface to the caller; a failed final flush
// is never silently dropped.
type Closer interface {
	Close() error
}

// InitializationError indicates a writer could not set itself up. It is fatal
// before any simulation work starts.
type InitializationError struct {
	Writer  string
	Message string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initializing %s writer: %s", e.Writer, e.Message)
}

var columnSanitizer = strings.NewReplacer(" ", "_", ".", "_", "-", "_")

// FormatColumnName sanitizes a geography name for use as a column, replacing
// spaces, dots and hyphens with underscores and attaching the optional
// prefix. Prefixing supports columns like {geo_type}_{zip}.
func FormatColumnName(name string, prefix string) string {
	name = columnSanitizer.Replace(name)
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
