package analysis

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// contentFromChoices reads openai-style choices[0].message.content and
// extracts the JSON object from it.
func contentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return extractJSON(content)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// rawAnalysis mirrors the schema the gateway is asked for, with loose types
// so partially-wrong output still decodes.
type rawAnalysis struct {
	Keywords   []string       `json:"keywords"`
	Topics     []string       `json:"topics"`
	Summary    string         `json:"summary"`
	Sentiment  string         `json:"sentiment"`
	KeyMoments []rawKeyMoment `json:"key_moments"`
}

type rawKeyMoment struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Description      string  `json:"description"`
}

// coerce fills safe empty defaults for anything missing or malformed.
// Partial analysis is still useful; a hard failure here would throw away the
// fields that did parse.
func coerce(raw []byte, analyzedAt time.Time) types.ContentAnalysis {
	var parsed rawAnalysis
	_ = json.Unmarshal(raw, &parsed)

	out := types.ContentAnalysis{
		Keywords:   dedupe(parsed.Keywords),
		Topics:     compact(parsed.Topics),
		Summary:    strings.TrimSpace(parsed.Summary),
		Sentiment:  normalizeSentiment(parsed.Sentiment),
		KeyMoments: make([]types.KeyMoment, 0, len(parsed.KeyMoments)),
		AnalyzedAt: analyzedAt,
	}
	for _, km := range parsed.KeyMoments {
		if km.Description == "" {
			continue
		}
		ts := km.TimestampSeconds
		if ts < 0 {
			ts = 0
		}
		out.KeyMoments = append(out.KeyMoments, types.KeyMoment{
			TimestampSeconds: ts,
			Description:      km.Description,
		})
	}
	sort.SliceStable(out.KeyMoments, func(i, j int) bool {
		return out.KeyMoments[i].TimestampSeconds < out.KeyMoments[j].TimestampSeconds
	})
	return out
}

func normalizeSentiment(s string) types.Sentiment {
	switch types.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case types.SentimentPositive:
		return types.SentimentPositive
	case types.SentimentNegative:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
