package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/media"
	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// Client submits media to the remote speech-to-text service and waits for the
// job to finish. The remote service cannot reach internally-authenticated
// storage, so the locator is exchanged for a short-lived signed URL first.
type Client struct {
	baseURL      string
	apiKey       string
	resolver     media.Resolver
	signedURLTTL time.Duration
	pollInterval time.Duration
	jobTimeout   time.Duration
	policy       retry.Policy
	httpClient   *http.Client
	log          *logrus.Entry
}

type ClientOptions struct {
	BaseURL      string
	APIKey       string
	Resolver     media.Resolver
	SignedURLTTL time.Duration
	PollInterval time.Duration
	JobTimeout   time.Duration
	Policy       retry.Policy
}

func NewClient(opts ClientOptions) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 1500 * time.Millisecond
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		resolver:     opts.Resolver,
		signedURLTTL: opts.SignedURLTTL,
		pollInterval: opts.PollInterval,
		jobTimeout:   opts.JobTimeout,
		policy:       opts.Policy,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          logger.New().WithField("component", "transcription"),
	}
}

type submitRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type remoteWord struct {
	Text       string  `json:"text"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

type remoteTranscript struct {
	ID              string       `json:"id"`
	Status          string       `json:"status"`
	Text            string       `json:"text"`
	Words           []remoteWord `json:"words"`
	LanguageCode    string       `json:"language_code"`
	DurationSeconds float64      `json:"duration_seconds"`
	Error           string       `json:"error,omitempty"`
}

// Transcribe resolves the media reference, submits it, polls until the remote
// job reaches a terminal status, and normalizes the result. It never returns
// a partially-populated transcript.
func (c *Client) Transcribe(ctx context.Context, mediaReference, languageHint string) (types.Transcript, error) {
	log := c.log.WithField("media_reference", mediaReference)

	signedURL, err := c.signedURL(ctx, mediaReference)
	if err != nil {
		return types.Transcript{}, unavailable("resolve media url: %v", err)
	}

	jobID, err := c.submit(ctx, signedURL, languageHint)
	if err != nil {
		return types.Transcript{}, unavailable("submit: %v", err)
	}
	log = log.WithField("job_id", jobID)
	log.Info("transcription job submitted")

	remote, err := c.waitForCompletion(ctx, jobID)
	if err != nil {
		return types.Transcript{}, err
	}

	log.WithFields(logrus.Fields{
		"words":    len(remote.Words),
		"duration": remote.DurationSeconds,
	}).Info("transcription completed")
	return normalize(remote, languageHint), nil
}

func (c *Client) signedURL(ctx context.Context, mediaReference string) (string, error) {
	var url string
	err := retry.Do(ctx, c.log, "sign-media-url", c.policy, func() error {
		var err error
		url, err = c.resolver.SignedURL(ctx, mediaReference, c.signedURLTTL)
		return err
	})
	return url, err
}

func (c *Client) submit(ctx context.Context, audioURL, languageHint string) (string, error) {
	payload, _ := json.Marshal(submitRequest{AudioURL: audioURL, LanguageCode: languageHint})

	var created remoteTranscript
	err := retry.Do(ctx, c.log, "submit-transcript", c.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		return c.doJSON(req, &created)
	})
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("remote accepted job without an id")
	}
	return created.ID, nil
}

// waitForCompletion polls the job until it leaves its queued/processing
// states. Each status fetch goes through the retry controller; a terminal
// error status from the remote is a hard failure, not retried here.
func (c *Client) waitForCompletion(ctx context.Context, jobID string) (remoteTranscript, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return remoteTranscript{}, unavailable("job %s did not complete: %v", jobID, ctx.Err())
		case <-ticker.C:
		}

		var status remoteTranscript
		err := retry.Do(ctx, c.log, "poll-transcript", c.policy, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+jobID, nil)
			if err != nil {
				return err
			}
			return c.doJSON(req, &status)
		})
		if err != nil {
			return remoteTranscript{}, unavailable("poll job %s: %v", jobID, err)
		}

		switch status.Status {
		case "completed":
			return status, nil
		case "error":
			return remoteTranscript{}, unavailable("job %s failed remotely: %s", jobID, status.Error)
		default:
			// queued / processing
		}
	}
}

func (c *Client) doJSON(req *http.Request, target any) error {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
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
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, string(body))
	}
	return nil
}

// normalize converts the remote word timings (milliseconds) into the
// second-offset segment shape, preserving ordering and non-overlap.
func normalize(remote remoteTranscript, languageHint string) types.Transcript {
	lang := remote.LanguageCode
	if lang == "" {
		lang = languageHint
	}

	segments := make([]types.Segment, 0, len(remote.Words))
	prevEnd := 0.0
	for i, w := range remote.Words {
		start := float64(w.StartMs) / 1000
		end := float64(w.EndMs) / 1000
		if start < prevEnd {
			start = prevEnd
		}
		if end < start {
			end = start
		}
		segments = append(segments, types.Segment{
			ID:         fmt.Sprintf("seg-%d", i+1),
			Start:      start,
			End:        end,
			Text:       w.Text,
			Confidence: w.Confidence,
		})
		prevEnd = end
	}

	// No word timings but non-empty text: one segment spanning the media.
	if len(segments) == 0 && remote.Text != "" {
		segments = append(segments, types.Segment{
			ID:         "seg-1",
			Start:      0,
			End:        remote.DurationSeconds,
			Text:       remote.Text,
			Confidence: 1,
		})
	}

	return types.Transcript{
		Text:            remote.Text,
		Segments:        segments,
		LanguageCode:    lang,
		DurationSeconds: remote.DurationSeconds,
	}
}
