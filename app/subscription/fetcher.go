package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// The two client identities steer format selection on the remote side:
// subscription servers that recognize a sing-box capable client serve the
// structured JSON document, while a generic client gets the legacy encoded
// list.
const (
	structuredUserAgent = "sing-box; podkop/1.0"
	legacyUserAgent     = "podkop/1.0"
)

const (
	DefaultFetchTimeout = 30 * time.Second

	// Subscription documents are bounded; anything past this is garbage.
	maxDocumentSize = 8 * 1024 * 1024
)

// Fetcher retrieves subscription documents and detects their wire format.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Fetcher{
		client:  client,
		timeout: timeout,
	}
}

// Run fetches a subscription and returns the raw document plus its detected
// kind. For declared type "auto" the structured identity is tried first; any
// failure or wrong document shape falls back to one legacy-identity fetch.
func (f *Fetcher) Run(ctx context.Context, url, declaredType string) ([]byte, Kind, error) {
	switch declaredType {
	case TypeStructured:
		data, err := f.fetch(ctx, url, structuredUserAgent)
		if err != nil {
			return nil, "", &FetchError{URL: url, Err: err}
		}
		if len(data) == 0 {
			return nil, "", &FetchError{URL: url, Err: fmt.Errorf("empty response body")}
		}
		return data, KindStructured, nil

	case TypeLegacy:
		data, err := f.fetch(ctx, url, legacyUserAgent)
		if err != nil {
			return nil, "", &FetchError{URL: url, Err: err}
		}
		if len(data) == 0 {
			return nil, "", &FetchError{URL: url, Err: fmt.Errorf("empty response body")}
		}
		return data, KindLegacy, nil

	case TypeAuto, "":
		data, err := f.fetch(ctx, url, structuredUserAgent)
		if err == nil && len(data) > 0 && hasOutbounds(data) {
			slog.Debug("Detected structured subscription", "url", url, "bytes", len(data))
			return data, KindStructured, nil
		}
		if err != nil {
			slog.Debug("Structured fetch failed, falling back to legacy", "url", url, "error", err)
		} else {
			slog.Debug("No outbounds collection in response, falling back to legacy", "url", url, "bytes", len(data))
		}

		data, err = f.fetch(ctx, url, legacyUserAgent)
		if err != nil {
			return nil, "", &FetchError{URL: url, Err: err}
		}
		if len(data) == 0 {
			return nil, "", &FetchError{URL: url, Err: fmt.Errorf("empty response body")}
		}
		return data, KindLegacy, nil

	default:
		return nil, "", &UnsupportedTypeError{Type: declaredType}
	}
}

func (f *Fetcher) fetch(ctx context.Context, url, userAgent string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// hasOutbounds reports whether the payload parses as a structured document
// carrying an "outbounds" collection. An empty collection still counts; an
// absent key does not.
func hasOutbounds(data []byte) bool {
	var doc struct {
		Outbounds []json.RawMessage `json:"outbounds"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Outbounds != nil
}
