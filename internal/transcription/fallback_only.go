package transcription

import (
	"context"

	"github.com/ImperatorDravidor/inflio-sub007/internal/fallback"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// FallbackOnly serves deterministic placeholder transcripts without touching
// any remote service. Selected at startup when no speech-to-text service is
// configured; it never fails.
type FallbackOnly struct{}

func (FallbackOnly) Transcribe(_ context.Context, mediaReference, languageHint string) (types.Transcript, error) {
	return fallback.Transcript(mediaReference, languageHint), nil
}
