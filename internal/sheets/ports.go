package sheets

import (
	"context"
	"fmt"
	"strings"
)

// Ports for spreadsheet sources.
type (
	// RowReader returns the cell matrix of the first sheet at location. The
	// first row is the header row.
	RowReader interface {
		ReadRows(ctx context.Context, location string) ([][]string, error)
	}
)

// Router dispatches a location to the reader registered for its scheme
// ("gsheets://id/sheet", "mem://2014"). Locations without a registered scheme
// go to the fallback reader, which is normally the xlsx file reader.
type Router struct {
	readers  map[string]RowReader
	fallback RowReader
}

var _ RowReader = (*Router)(nil)

func NewRouter(fallback RowReader) *Router {
	return &Router{readers: make(map[string]RowReader), fallback: fallback}
}

// Handle registers rr for scheme (without "://").
func (r *Router) Handle(scheme string, rr RowReader) {
	r.readers[strings.ToLower(scheme)] = rr
}

func (r *Router) ReadRows(ctx context.Context, location string) ([][]string, error) {
	if scheme, _, ok := SplitScheme(location); ok {
		if rr, found := r.readers[scheme]; found {
			return rr.ReadRows(ctx, location)
		}
		if scheme != "file" {
			return nil, fmt.Errorf("no reader for scheme %q", scheme)
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no reader for %q", location)
	}
	return r.fallback.ReadRows(ctx, location)
}

// SplitScheme splits "scheme://rest" into its lower-cased scheme and rest.
func SplitScheme(location string) (scheme, rest string, ok bool) {
	i := strings.Index(location, "://")
	if i <= 0 {
		return "", location, false
	}
	return strings.ToLower(location[:i]), location[i+3:], true
}
