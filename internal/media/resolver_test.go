package media_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ImperatorDravidor/inflio-sub007/internal/media"
	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
)

func TestSignedURLExchangesLocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sign" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Locator   string `json:"locator"`
			ExpiresIn int    `json:"expires_in"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Locator != "media/clip.mp4" {
			t.Errorf("unexpected locator %q", req.Locator)
		}
		if req.ExpiresIn != 3600 {
			t.Errorf("unexpected ttl %d", req.ExpiresIn)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"signed_url": "https://cdn.example/clip.mp4?sig=abc",
		})
	}))
	defer srv.Close()

	r := media.NewStorageResolver(srv.URL, "key")
	url, err := r.SignedURL(context.Background(), "media/clip.mp4", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if url != "https://cdn.example/clip.mp4?sig=abc" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestSignedURLUnknownLocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such object", http.StatusNotFound)
	}))
	defer srv.Close()

	r := media.NewStorageResolver(srv.URL, "key")
	_, err := r.SignedURL(context.Background(), "media/missing.mp4", time.Hour)
	if !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if retry.Transient(err) {
		t.Fatal("missing locators must not be retried")
	}
}

func TestSignedURLServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := media.NewStorageResolver(srv.URL, "key")
	_, err := r.SignedURL(context.Background(), "media/clip.mp4", time.Hour)
	if err == nil {
		t.Fatal("expected error")
	}
	if !retry.Transient(err) {
		t.Fatalf("5xx from storage should classify as transient, got %v", err)
	}
}

func TestSignedURLEmptyLocator(t *testing.T) {
	r := media.NewStorageResolver("http://unused.example", "")
	if _, err := r.SignedURL(context.Background(), "", time.Hour); err == nil {
		t.Fatal("expected error for empty locator")
	}
}
