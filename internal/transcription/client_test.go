package transcription_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
	"github.com/ImperatorDravidor/inflio-sub007/internal/transcription"
)

type staticResolver string

func (s staticResolver) SignedURL(context.Context, string, time.Duration) (string, error) {
	return string(s), nil
}

type failingResolver struct{ err error }

func (f failingResolver) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", f.err
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		IsRetryable:  retry.Transient,
	}
}

func newClient(t *testing.T, baseURL string) *transcription.Client {
	t.Helper()
	return transcription.NewClient(transcription.ClientOptions{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Resolver:     staticResolver("https://signed.example/audio.mp3"),
		SignedURLTTL: time.Hour,
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   2 * time.Second,
		Policy:       testPolicy(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestTranscribeHappyPathConvertsMillisecondsToSeconds(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["audio_url"] != "https://signed.example/audio.mp3" {
				t.Errorf("expected signed url to be submitted, got %v", req["audio_url"])
			}
			writeJSON(w, map[string]any{"id": "job-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
			if polls.Add(1) == 1 {
				writeJSON(w, map[string]any{"id": "job-1", "status": "processing"})
				return
			}
			writeJSON(w, map[string]any{
				"id":     "job-1",
				"status": "completed",
				"text":   "hello world",
				"words": []map[string]any{
					{"text": "hello", "start_ms": 0, "end_ms": 400, "confidence": 0.9},
					{"text": "world", "start_ms": 400, "end_ms": 900, "confidence": 0.95},
				},
				"language_code":    "en",
				"duration_seconds": 0.9,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr, err := newClient(t, srv.URL).Transcribe(context.Background(), "ref-A", "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if tr.Text != "hello world" {
		t.Fatalf("unexpected text %q", tr.Text)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(tr.Segments))
	}
	if tr.Segments[0].Start != 0.0 || tr.Segments[0].End != 0.4 || tr.Segments[0].Text != "hello" {
		t.Fatalf("unexpected first segment: %+v", tr.Segments[0])
	}
	if tr.Segments[1].Start != 0.4 || tr.Segments[1].End != 0.9 || tr.Segments[1].Text != "world" {
		t.Fatalf("unexpected second segment: %+v", tr.Segments[1])
	}
	if tr.IsFallback {
		t.Fatal("real transcript must not carry the fallback flag")
	}
}

func TestTranscribeSegmentsOrderedAndNonOverlapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, map[string]any{"id": "job-2", "status": "queued"})
			return
		}
		// Overlapping word timings from the remote must be clamped.
		writeJSON(w, map[string]any{
			"id":     "job-2",
			"status": "completed",
			"text":   "a b c",
			"words": []map[string]any{
				{"text": "a", "start_ms": 0, "end_ms": 500, "confidence": 0.8},
				{"text": "b", "start_ms": 300, "end_ms": 700, "confidence": 0.8},
				{"text": "c", "start_ms": 700, "end_ms": 650, "confidence": 0.8},
			},
			"language_code":    "en",
			"duration_seconds": 0.7,
		})
	}))
	defer srv.Close()

	tr, err := newClient(t, srv.URL).Transcribe(context.Background(), "ref-B", "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	for i := 1; i < len(tr.Segments); i++ {
		prev, cur := tr.Segments[i-1], tr.Segments[i]
		if cur.Start < prev.Start {
			t.Fatalf("segments out of order: %+v before %+v", prev, cur)
		}
		if cur.Start < prev.End {
			t.Fatalf("segments overlap: %+v and %+v", prev, cur)
		}
		if cur.End < cur.Start {
			t.Fatalf("segment ends before it starts: %+v", cur)
		}
	}
}

func TestTranscribeRetriesServerErrorsOnSubmit(t *testing.T) {
	var submits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if submits.Add(1) < 3 {
				http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, map[string]any{"id": "job-3", "status": "queued"})
			return
		}
		writeJSON(w, map[string]any{
			"id": "job-3", "status": "completed", "text": "ok",
			"words":            []map[string]any{{"text": "ok", "start_ms": 0, "end_ms": 200, "confidence": 1}},
			"language_code":    "en",
			"duration_seconds": 0.2,
		})
	}))
	defer srv.Close()

	if _, err := newClient(t, srv.URL).Transcribe(context.Background(), "ref-C", "en"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if submits.Load() != 3 {
		t.Fatalf("expected 3 submit attempts, got %d", submits.Load())
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var submits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Transcribe(context.Background(), "ref-D", "en")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, transcription.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if submits.Load() != 1 {
		t.Fatalf("expected a single attempt on 401, got %d", submits.Load())
	}
}

func TestTranscribeRemoteErrorStatusIsHardFailure(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, map[string]any{"id": "job-4", "status": "queued"})
			return
		}
		polls.Add(1)
		writeJSON(w, map[string]any{"id": "job-4", "status": "error", "error": "audio corrupted"})
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Transcribe(context.Background(), "ref-E", "en")
	if err == nil || !errors.Is(err, transcription.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if polls.Load() != 1 {
		t.Fatalf("terminal error status must not be re-polled, got %d polls", polls.Load())
	}
}

func TestTranscribeFailsWhenResolverFails(t *testing.T) {
	client := transcription.NewClient(transcription.ClientOptions{
		BaseURL:  "http://unused.example",
		Resolver: failingResolver{err: fmt.Errorf("locator missing")},
		Policy: retry.Policy{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			IsRetryable:  func(error) bool { return false },
		},
	})
	_, err := client.Transcribe(context.Background(), "ref-missing", "en")
	if !errors.Is(err, transcription.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFallbackOnlyNeverFails(t *testing.T) {
	tr, err := transcription.FallbackOnly{}.Transcribe(context.Background(), "ref-X", "es")
	if err != nil {
		t.Fatalf("fallback service must not fail: %v", err)
	}
	if !tr.IsFallback {
		t.Fatal("expected fallback flag")
	}
	if tr.LanguageCode != "es" {
		t.Fatalf("expected language hint to carry through, got %q", tr.LanguageCode)
	}
}
