// Package transcription converts a media reference into a normalized
// transcript by driving an external speech-to-text service.
package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// ErrUnavailable wraps any failure that prevented the adapter from producing
// a real transcript. Callers substitute fallback output when they see it.
var ErrUnavailable = errors.New("transcription unavailable")

// Service produces a transcript for a media reference. Implementations are
// chosen once at startup (real remote client or fallback-only).
type Service interface {
	Transcribe(ctx context.Context, mediaReference, languageHint string) (types.Transcript, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
