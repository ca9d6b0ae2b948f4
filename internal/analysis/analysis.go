// Package analysis converts a normalized transcript into structured content
// analysis by calling an external text-analysis service.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// ErrSkipped signals that the transcript had no text to analyze. The remote
// service is never called in that case; analyzing nothing is meaningless.
var ErrSkipped = errors.New("analysis skipped: empty transcript")

// ErrUnavailable wraps any failure that prevented the adapter from producing
// usable analysis. Callers substitute fallback output when they see it.
var ErrUnavailable = errors.New("analysis unavailable")

// Service derives a content analysis from a transcript.
type Service interface {
	Analyze(ctx context.Context, transcript types.Transcript) (types.ContentAnalysis, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
