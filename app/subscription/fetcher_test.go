package subscription

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const structuredBody = `{"outbounds":[{"tag":"US-1","type":"vmess"}]}`

func legacyBody() string {
	return base64.StdEncoding.EncodeToString([]byte("vmess://abc#US-1\nvmess://def#JP-2"))
}

func TestFetcher_Run_StructuredType(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !strings.Contains(r.UserAgent(), "sing-box") {
			t.Errorf("Structured fetch should use the structured client identity, got %q", r.UserAgent())
		}
		w.Write([]byte(structuredBody))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)
	raw, kind, err := fetcher.Run(context.Background(), server.URL, TypeStructured)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if kind != KindStructured {
		t.Errorf("Expected structured kind, got %s", kind)
	}
	if string(raw) != structuredBody {
		t.Errorf("Raw document altered: %s", raw)
	}
	if requests.Load() != 1 {
		t.Errorf("Expected exactly 1 request, got %d", requests.Load())
	}
}

func TestFetcher_Run_LegacyType_NoDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.UserAgent(), "sing-box") {
			t.Errorf("Legacy fetch must use the generic client identity, got %q", r.UserAgent())
		}
		// Even a structured-looking body stays legacy when declared so.
		w.Write([]byte(structuredBody))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)
	_, kind, err := fetcher.Run(context.Background(), server.URL, TypeLegacy)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if kind != KindLegacy {
		t.Errorf("Declared legacy type must not auto-detect, got %s", kind)
	}
}

func TestFetcher_Run_AutoDetectsStructured(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(structuredBody))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)
	raw, kind, err := fetcher.Run(context.Background(), server.URL, TypeAuto)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if kind != KindStructured {
		t.Errorf("Expected structured kind, got %s", kind)
	}
	if string(raw) != structuredBody {
		t.Errorf("Raw document altered: %s", raw)
	}
	if requests.Load() != 1 {
		t.Errorf("Structured detection should not trigger a second fetch, got %d requests", requests.Load())
	}
}

func TestFetcher_Run_AutoFallsBackOnWrongShape(t *testing.T) {
	legacy := legacyBody()
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if strings.Contains(r.UserAgent(), "sing-box") {
			// Valid JSON, but no outbounds collection.
			w.Write([]byte(`{"message":"use a real client"}`))
			return
		}
		w.Write([]byte(legacy))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)
	raw, kind, err := fetcher.Run(context.Background(), server.URL, TypeAuto)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if kind != KindLegacy {
		t.Errorf("Expected fallback to legacy kind, got %s", kind)
	}
	if string(raw) != legacy {
		t.Errorf("Expected the legacy-identity body, got %s", raw)
	}
	if requests.Load() != 2 {
		t.Errorf("Expected 2 requests (structured then legacy), got %d", requests.Load())
	}
}

func TestFetcher_Run_AutoFallsBackOnHTTPError(t *testing.T) {
	legacy := legacyBody()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.UserAgent(), "sing-box") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(legacy))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)
	_, kind, err := fetcher.Run(context.Background(), server.URL, TypeAuto)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if kind != KindLegacy {
		t.Errorf("Fetch failure on first attempt must fall back, got kind %s", kind)
	}
}

func TestFetcher_Run_EmptyBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an empty body for both identities.
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)

	for _, declaredType := range []string{TypeStructured, TypeLegacy, TypeAuto} {
		_, _, err := fetcher.Run(context.Background(), server.URL, declaredType)
		if err == nil {
			t.Errorf("Type %s: expected error for empty body", declaredType)
			continue
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Errorf("Type %s: expected *FetchError, got %T: %v", declaredType, err, err)
		}
	}
}

func TestFetcher_Run_UnsupportedType(t *testing.T) {
	fetcher := NewFetcher(nil, 0)

	_, _, err := fetcher.Run(context.Background(), "http://127.0.0.1:0", "clash")
	if err == nil {
		t.Fatal("Expected error for unsupported type")
	}
	var typeErr *UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Errorf("Expected *UnsupportedTypeError, got %T: %v", err, err)
	}
}

func TestFetcher_Run_NonAutoDoesNotFallBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), 0)

	_, _, err := fetcher.Run(context.Background(), server.URL, TypeStructured)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.URL != server.URL {
		t.Errorf("FetchError should carry the offending URL, got %s", fetchErr.URL)
	}
}

func TestHasOutbounds(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected bool
	}{
		{"with outbounds", `{"outbounds":[{"tag":"a"}]}`, true},
		{"empty outbounds array", `{"outbounds":[]}`, true},
		{"no outbounds key", `{"log":{}}`, false},
		{"not json", "vmess://abc", false},
		{"json array", `[1,2]`, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := hasOutbounds([]byte(test.payload)); got != test.expected {
				t.Errorf("hasOutbounds(%s): expected %v, got %v", test.payload, test.expected, got)
			}
		})
	}
}
