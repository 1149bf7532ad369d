package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heymamamama/podkop/app/cache"
	"github.com/heymamamama/podkop/app/config"
)

// Service orchestrates the fetch, detect, parse, filter and cache pipeline
// per configuration section. Query operations always fetch live; the cache
// only holds the last successful update for callers that want a fallback.
type Service struct {
	fetcher  *Fetcher
	filterer *Filterer
	store    *cache.Store
}

func NewService(fetcher *Fetcher, filterer *Filterer, store *cache.Store) *Service {
	return &Service{
		fetcher:  fetcher,
		filterer: filterer,
		store:    store,
	}
}

// UpdateResult describes one UpdateSection outcome.
type UpdateResult struct {
	SectionName string
	URL         string
	Kind        Kind
	Bytes       int
	Skipped     bool
}

// UpdateSection fetches the section's subscription and writes the raw
// document to the cache. A section without a subscription URL is a no-op,
// not an error. Structured documents are cached as fetched; legacy documents
// are cached in the internal link|tag line form.
func (s *Service) UpdateSection(ctx context.Context, section *config.Section) (*UpdateResult, error) {
	result := &UpdateResult{SectionName: section.Name}

	url := section.Option(config.OptionSubscriptionURL)
	if url == "" {
		slog.Debug("No subscription configured, skipping", "section", section.Name)
		result.Skipped = true
		return result, nil
	}
	result.URL = url

	declaredType := section.OptionDefault(config.OptionSubscriptionType, TypeAuto)

	raw, kind, err := s.fetcher.Run(ctx, url, declaredType)
	if err != nil {
		return result, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	result.Kind = kind

	if kind == KindLegacy {
		entries, err := ParseLegacy(raw)
		if err != nil {
			return result, fmt.Errorf("failed to parse legacy subscription: %w", err)
		}
		raw = EncodeLegacyCache(entries)
	}

	if err := s.store.Save(url, raw); err != nil {
		return result, fmt.Errorf("failed to cache subscription: %w", err)
	}
	result.Bytes = len(raw)

	slog.Debug("Subscription cache updated", "section", section.Name, "url", url,
		"kind", string(kind), "bytes", len(raw))

	return result, nil
}

// UpdateAll updates every given section independently: a failing section is
// logged and skipped, never aborting the rest. Returns the number of
// sections updated.
func (s *Service) UpdateAll(ctx context.Context, sections []*config.Section) int {
	updated := 0
	for _, section := range sections {
		result, err := s.UpdateSection(ctx, section)
		if err != nil {
			slog.Error("Subscription update failed", "section", section.Name,
				"url", result.URL, "error", err)
			continue
		}
		if !result.Skipped {
			updated++
		}
	}
	return updated
}

// FetchDocument runs the fetch and parse half of the pipeline, returning the
// normalized document for a URL.
func (s *Service) FetchDocument(ctx context.Context, url, declaredType string) (*Document, error) {
	raw, kind, err := s.fetcher.Run(ctx, url, declaredType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindStructured:
		outbounds, err := ParseStructured(raw)
		if err != nil {
			return nil, err
		}
		return &Document{Kind: KindStructured, Outbounds: outbounds}, nil
	default:
		entries, err := ParseLegacy(raw)
		if err != nil {
			return nil, err
		}
		return &Document{Kind: KindLegacy, Entries: entries}, nil
	}
}

// ListOutboundTags returns the filtered tag list for a subscription URL.
func (s *Service) ListOutboundTags(ctx context.Context, url, declaredType string, filters []string) ([]string, error) {
	doc, err := s.FetchDocument(ctx, url, declaredType)
	if err != nil {
		return nil, err
	}
	return s.filterer.Tags(doc, filters), nil
}

// ListOutboundObjects returns the filtered outbound objects with all their
// original fields. Legacy subscriptions carry no objects and yield an empty
// result.
func (s *Service) ListOutboundObjects(ctx context.Context, url, declaredType string, filters []string) ([]Outbound, error) {
	doc, err := s.FetchDocument(ctx, url, declaredType)
	if err != nil {
		return nil, err
	}
	return s.filterer.Objects(doc, filters), nil
}

// ListRawLinks returns the filtered connection links of a subscription,
// always treating the source as legacy-encoded regardless of declared type.
func (s *Service) ListRawLinks(ctx context.Context, url string, filters []string) ([]string, error) {
	doc, err := s.FetchDocument(ctx, url, TypeLegacy)
	if err != nil {
		return nil, err
	}

	entries := s.filterer.Entries(doc.Entries, filters)
	links := make([]string, 0, len(entries))
	for _, entry := range entries {
		links = append(links, entry.Link)
	}
	return links, nil
}

// SelectedOutbounds returns the section's manually pinned tag list verbatim:
// no fetch, no filtering.
func (s *Service) SelectedOutbounds(section *config.Section) []string {
	return ParseFilterSet(section.Option(config.OptionSubscriptionSelected))
}

// SectionFilters returns the section's configured filter tokens.
func (s *Service) SectionFilters(section *config.Section) []string {
	return ParseFilterSet(section.Option(config.OptionSubscriptionFilter))
}

// Cached exposes the last cached document for a URL so callers can decide to
// fall back to stale data; the service itself never does.
func (s *Service) Cached(url string) ([]byte, bool, error) {
	return s.store.Load(url)
}
