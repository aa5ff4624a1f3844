package cli

import (
	"context"

	"github.com/grantcarthew/benchreport/internal/engine"
	"github.com/grantcarthew/benchreport/internal/report"
)

// EngineFactory opens the browser engine a read runs against.
type EngineFactory interface {
	Open(ctx context.Context, kind engine.Kind, cfg engine.Config) (report.Engine, error)
}

// defaultFactory opens real engines.
type defaultFactory struct{}

func (defaultFactory) Open(ctx context.Context, kind engine.Kind, cfg engine.Config) (report.Engine, error) {
	return engine.Open(ctx, kind, cfg)
}

// engineFactory is the package-level factory, replaceable for testing.
var engineFactory EngineFactory = defaultFactory{}

// SetEngineFactory sets the engine factory (for testing).
func SetEngineFactory(f EngineFactory) {
	engineFactory = f
}

// ResetEngineFactory resets to the default factory.
func ResetEngineFactory() {
	engineFactory = defaultFactory{}
}
