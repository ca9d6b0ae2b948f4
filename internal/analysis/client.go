package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

const prompt = `You are a content analysis engine for video and audio projects.

Analyze this transcript:
"""%s"""

Return ONLY a JSON object with keys:
keywords (list of distinct strings),
topics (list of strings, most salient first),
summary (2-3 sentence string),
sentiment (positive|neutral|negative),
key_moments (list of {"timestamp_seconds": number, "description": string}).

Do not wrap the JSON in backticks. Do not include commentary.`

// Client calls an OpenAI-compatible gateway and defensively coerces whatever
// comes back into the ContentAnalysis shape.
type Client struct {
	gatewayURL string
	apiKey     string
	model      string
	policy     retry.Policy
	httpClient *http.Client
	log        *logrus.Entry
	now        func() time.Time
}

type ClientOptions struct {
	GatewayURL string
	APIKey     string
	Model      string
	Timeout    time.Duration
	Policy     retry.Policy
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &Client{
		gatewayURL: opts.GatewayURL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		policy:     opts.Policy,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        logger.New().WithField("component", "analysis"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Analyze submits the transcript text to the gateway. An empty transcript
// returns ErrSkipped immediately without a remote call.
func (c *Client) Analyze(ctx context.Context, transcript types.Transcript) (types.ContentAnalysis, error) {
	if transcript.Text == "" {
		return types.ContentAnalysis{}, ErrSkipped
	}

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(prompt, transcript.Text)},
		},
		"temperature": 0.0,
	}
	payload, _ := json.Marshal(reqBody)

	var result types.ContentAnalysis
	err := retry.Do(ctx, c.log, "analyze-transcript", c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 300 {
			return &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		raw := contentFromChoices(body)
		if raw == "" {
			raw = extractJSON(string(body))
		}
		if raw == "" {
			return fmt.Errorf("no JSON found in analysis response")
		}
		result = coerce([]byte(raw), c.now())
		return nil
	})
	if err != nil {
		return types.ContentAnalysis{}, unavailable("%v", err)
	}

	c.log.WithFields(logrus.Fields{
		"keywords":    len(result.Keywords),
		"topics":      len(result.Topics),
		"key_moments": len(result.KeyMoments),
		"sentiment":   result.Sentiment,
	}).Info("analysis parsed")
	return result, nil
}
