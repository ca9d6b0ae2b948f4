package types

import "time"

// Stage is the lifecycle position of a pipeline run.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StagePersisting   Stage = "persisting"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

var allStages = []Stage{
	StageQueued,
	StageTranscribing,
	StageAnalyzing,
	StagePersisting,
	StageCompleted,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, s := range allStages {
		set[s] = struct{}{}
	}
	return set
}()

// ValidStage reports whether s is one of the known lifecycle stages.
func ValidStage(s Stage) bool {
	_, ok := stageSet[s]
	return ok
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// PipelineRun is one execution of the pipeline for one media item.
// Mutated only by the orchestrator through the progress tracker.
type PipelineRun struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	MediaReference string    `json:"media_reference"`
	LanguageHint   string    `json:"language_hint,omitempty"`
	Stage          Stage     `json:"stage"`
	Percent        int       `json:"percent"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Segment is one time-aligned slice of a transcript. Offsets are seconds.
type Segment struct {
	ID         string  `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is normalized speech-to-text output.
type Transcript struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	LanguageCode    string    `json:"language_code"`
	DurationSeconds float64   `json:"duration_seconds"`
	IsFallback      bool      `json:"is_fallback,omitempty"`
}

// Sentiment is the overall tone of an analyzed transcript.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// KeyMoment marks a notable point in the source media.
type KeyMoment struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Description      string  `json:"description"`
}

// ContentAnalysis is normalized text-analysis output, always derived from
// exactly one Transcript within the same run.
type ContentAnalysis struct {
	Keywords   []string    `json:"keywords"`
	Topics     []string    `json:"topics"`
	Summary    string      `json:"summary"`
	Sentiment  Sentiment   `json:"sentiment"`
	KeyMoments []KeyMoment `json:"key_moments"`
	AnalyzedAt time.Time   `json:"analyzed_at"`
	IsFallback bool        `json:"is_fallback,omitempty"`
}
