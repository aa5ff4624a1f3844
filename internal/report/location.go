package report

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// DefaultPath is read when no path argument is given.
const DefaultPath = "/tmp/benchmark.html"

// Location is the report file to open.
type Location struct {
	Path string
	URL  string
}

// ResolveLocation builds the report location from the positional
// arguments. Only the first argument is used; a missing or empty one
// falls back to DefaultPath. Any other value, whitespace included, is
// taken as a path.
func ResolveLocation(args []string) (Location, error) {
	path := DefaultPath
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Location{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return Location{Path: abs, URL: u.String()}, nil
}
