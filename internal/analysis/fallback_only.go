package analysis

import (
	"context"

	"github.com/ImperatorDravidor/inflio-sub007/internal/fallback"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// FallbackOnly serves deterministic placeholder analyses without calling any
// remote service. It never fails.
type FallbackOnly struct{}

func (FallbackOnly) Analyze(context.Context, types.Transcript) (types.ContentAnalysis, error) {
	return fallback.Analysis(), nil
}
