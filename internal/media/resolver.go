package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
)

// ErrNotFound means the locator does not exist in storage.
var ErrNotFound = errors.New("media locator not found")

// Resolver exchanges an internal media locator for a time-limited URL the
// transcription service can fetch directly. Storage URLs are authenticated
// internally, so the raw locator is never handed to a remote service.
type Resolver interface {
	SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

// StorageResolver signs locators through the storage service's HTTP API.
type StorageResolver struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewStorageResolver(baseURL, apiKey string) *StorageResolver {
	return &StorageResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 12 * time.Second},
	}
}

type signRequest struct {
	Locator   string `json:"locator"`
	ExpiresIn int    `json:"expires_in"`
}

type signResponse struct {
	SignedURL string `json:"signed_url"`
}

func (r *StorageResolver) SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("empty media locator")
	}
	payload, _ := json.Marshal(signRequest{Locator: locator, ExpiresIn: int(ttl.Seconds())})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sign", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if resp.StatusCode >= 300 {
		return "", &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var signed signResponse
	if err := json.Unmarshal(body, &signed); err != nil {
		return "", fmt.Errorf("decode sign response: %v body=%s", err, string(body))
	}
	if signed.SignedURL == "" {
		return "", fmt.Errorf("storage returned empty signed url for %s", locator)
	}
	return signed.SignedURL, nil
}
