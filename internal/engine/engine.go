// Package engine provides the browser backends a report can be read with.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/report"
)

// Kind names a backend.
type Kind string

const (
	// KindCDP launches Chrome and drives it with the built-in CDP client.
	KindCDP Kind = "cdp"
	// KindRod drives Chrome through go-rod.
	KindRod Kind = "rod"
	// KindChromeDP drives Chrome through chromedp.
	KindChromeDP Kind = "chromedp"
	// KindStatic parses the file without a browser. Scripts do not run.
	KindStatic Kind = "static"
)

// Kinds lists the accepted backend names.
var Kinds = []Kind{KindCDP, KindRod, KindChromeDP, KindStatic}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	names := make([]string, len(Kinds))
	for i, known := range Kinds {
		names[i] = string(known)
	}
	return "", fmt.Errorf("unknown engine %q (want one of: %s)", s, strings.Join(names, ", "))
}

// Config configures Open.
type Config struct {
	Launch browser.LaunchOptions

	// Logf receives debug lines. Nil discards them.
	Logf func(format string, args ...any)
}

func (c Config) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Open starts the backend named by kind.
func Open(ctx context.Context, kind Kind, cfg Config) (report.Engine, error) {
	switch kind {
	case KindCDP:
		return OpenChrome(ctx, cfg)
	case KindRod:
		return OpenRod(ctx, cfg)
	case KindChromeDP:
		return OpenChromeDP(ctx, cfg)
	case KindStatic:
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}
