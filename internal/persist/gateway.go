// Package persist stores the pipeline's final output keyed by project.
package persist

import (
	"context"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// Gateway is where a run's combined result lands. SaveTranscriptOnly is the
// degraded write shape used when persisting the full payload fails; partial
// data is preferred over none.
type Gateway interface {
	SaveFull(ctx context.Context, projectID string, transcript types.Transcript, analysis types.ContentAnalysis) error
	SaveTranscriptOnly(ctx context.Context, projectID string, transcript types.Transcript) error
}
