package subscription

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/heymamamama/podkop/app/cache"
	"github.com/heymamamama/podkop/app/config"
)

func newTestService(t *testing.T, handler http.Handler) (*Service, *cache.Store, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	service := NewService(NewFetcher(server.Client(), 0), NewFilterer(), store)
	return service, store, server
}

func testSection(name string, options map[string]string) *config.Section {
	return &config.Section{
		Type:    "main",
		Name:    name,
		Options: options,
		Lists:   make(map[string][]string),
	}
}

func TestService_UpdateSection_NoURLIsNoOp(t *testing.T) {
	var requests atomic.Int32
	service, store, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	section := testSection("main", map[string]string{})
	result, err := service.UpdateSection(context.Background(), section)
	if err != nil {
		t.Fatalf("UpdateSection should succeed trivially without a URL: %v", err)
	}
	if !result.Skipped {
		t.Error("Expected the update to be marked skipped")
	}
	if requests.Load() != 0 {
		t.Errorf("No network call expected, got %d", requests.Load())
	}
	if _, ok, _ := store.Load(server.URL); ok {
		t.Error("Cache must not be modified for a section without a URL")
	}
}

func TestService_UpdateSection_StructuredCachedAsFetched(t *testing.T) {
	service, store, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(structuredBody))
	}))

	section := testSection("main", map[string]string{
		config.OptionSubscriptionURL: server.URL,
	})

	result, err := service.UpdateSection(context.Background(), section)
	if err != nil {
		t.Fatalf("UpdateSection failed: %v", err)
	}
	if result.Kind != KindStructured {
		t.Errorf("Expected structured kind, got %s", result.Kind)
	}

	data, ok, err := store.Load(server.URL)
	if err != nil || !ok {
		t.Fatalf("Cache entry missing: ok=%v err=%v", ok, err)
	}
	if string(data) != structuredBody {
		t.Errorf("Structured documents must be cached as fetched, got %s", data)
	}
}

func TestService_UpdateSection_LegacyCachedAsLinkTagLines(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("vmess://abc#US-1\nvmess://def"))
	service, store, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))

	section := testSection("main", map[string]string{
		config.OptionSubscriptionURL:  server.URL,
		config.OptionSubscriptionType: TypeLegacy,
	})

	result, err := service.UpdateSection(context.Background(), section)
	if err != nil {
		t.Fatalf("UpdateSection failed: %v", err)
	}
	if result.Kind != KindLegacy {
		t.Errorf("Expected legacy kind, got %s", result.Kind)
	}

	data, ok, _ := store.Load(server.URL)
	if !ok {
		t.Fatal("Cache entry missing")
	}
	expected := "vmess://abc#US-1|US-1\nvmess://def|proxy-2\n"
	if string(data) != expected {
		t.Errorf("Expected link|tag lines:\n%q\ngot:\n%q", expected, data)
	}
}

func TestService_UpdateAll_SectionFailureIsIsolated(t *testing.T) {
	okBody := structuredBody
	service, store, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(okBody))
	}))

	sections := []*config.Section{
		testSection("broken", map[string]string{
			config.OptionSubscriptionURL:  server.URL + "/broken",
			config.OptionSubscriptionType: TypeStructured,
		}),
		testSection("working", map[string]string{
			config.OptionSubscriptionURL:  server.URL + "/working",
			config.OptionSubscriptionType: TypeStructured,
		}),
		testSection("unconfigured", map[string]string{}),
	}

	updated := service.UpdateAll(context.Background(), sections)
	if updated != 1 {
		t.Errorf("Expected 1 updated section, got %d", updated)
	}
	if _, ok, _ := store.Load(server.URL + "/working"); !ok {
		t.Error("Working section should be cached despite the broken one")
	}
	if _, ok, _ := store.Load(server.URL + "/broken"); ok {
		t.Error("Broken section must not leave a cache entry")
	}
}

func TestService_ListOutboundTags_Idempotent(t *testing.T) {
	service, _, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outbounds":[{"tag":"US-1"},{"tag":"JP-2"},{"tag":"DE-3"}]}`))
	}))

	first, err := service.ListOutboundTags(context.Background(), server.URL, TypeAuto, []string{"us", "jp"})
	if err != nil {
		t.Fatalf("ListOutboundTags failed: %v", err)
	}
	second, err := service.ListOutboundTags(context.Background(), server.URL, TypeAuto, []string{"us", "jp"})
	if err != nil {
		t.Fatalf("ListOutboundTags failed: %v", err)
	}

	if !reflect.DeepEqual(first, []string{"US-1", "JP-2"}) {
		t.Errorf("Unexpected tags: %v", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Identical inputs must yield identical output: %v vs %v", first, second)
	}
}

func TestService_ListOutboundObjects_LegacyYieldsEmpty(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("vmess://abc#US-1"))
	service, _, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))

	objects, err := service.ListOutboundObjects(context.Background(), server.URL, TypeLegacy, nil)
	if err != nil {
		t.Fatalf("ListOutboundObjects failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("Legacy subscriptions have no object variant, got %v", objects)
	}
}

func TestService_ListRawLinks_AlwaysUsesLegacyIdentity(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("vmess://abc#US-1\ntrojan://def#JP-2"))
	service, _, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.UserAgent(), "sing-box") {
			t.Errorf("Raw-link query must use the generic client identity, got %q", r.UserAgent())
		}
		w.Write([]byte(payload))
	}))

	links, err := service.ListRawLinks(context.Background(), server.URL, []string{"jp"})
	if err != nil {
		t.Fatalf("ListRawLinks failed: %v", err)
	}
	if !reflect.DeepEqual(links, []string{"trojan://def#JP-2"}) {
		t.Errorf("Unexpected links: %v", links)
	}
}

func TestService_SelectedOutbounds_Verbatim(t *testing.T) {
	var requests atomic.Int32
	service, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	section := testSection("main", map[string]string{
		config.OptionSubscriptionSelected: "US-1 JP-2 pinned-node",
	})

	selected := service.SelectedOutbounds(section)
	if !reflect.DeepEqual(selected, []string{"US-1", "JP-2", "pinned-node"}) {
		t.Errorf("Expected the pinned list verbatim, got %v", selected)
	}
	if requests.Load() != 0 {
		t.Errorf("Manual selection must not fetch, got %d requests", requests.Load())
	}
}

func TestService_Cached(t *testing.T) {
	service, store, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(structuredBody))
	}))

	if _, ok, _ := service.Cached(server.URL); ok {
		t.Fatal("Expected cache miss before any update")
	}

	section := testSection("main", map[string]string{
		config.OptionSubscriptionURL: server.URL,
	})
	if _, err := service.UpdateSection(context.Background(), section); err != nil {
		t.Fatalf("UpdateSection failed: %v", err)
	}

	data, ok, err := service.Cached(server.URL)
	if err != nil || !ok {
		t.Fatalf("Expected cache hit after update: ok=%v err=%v", ok, err)
	}
	if string(data) != structuredBody {
		t.Errorf("Unexpected cached bytes: %s", data)
	}

	if err := store.Clear(server.URL); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := service.Cached(server.URL); ok {
		t.Error("Expected cache miss after clear")
	}
}
