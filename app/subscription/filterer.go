package subscription

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// Filterer selects entries from a normalized document by matching filter
// tokens against tags. Matching is a case-insensitive substring test on the
// tag only; an empty filter set matches everything. Source order and
// duplicate tags are preserved.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Tags returns the tags of all matching entries for either document kind.
func (f *Filterer) Tags(doc *Document, filters []string) []string {
	tags := make([]string, 0)

	switch doc.Kind {
	case KindStructured:
		for _, outbound := range doc.Outbounds {
			if f.matches(outbound.Tag(), filters) {
				tags = append(tags, outbound.Tag())
			}
		}
	case KindLegacy:
		for _, entry := range doc.Entries {
			if f.matches(entry.Tag, filters) {
				tags = append(tags, entry.Tag)
			}
		}
	}

	return tags
}

// Objects returns the full attribute mappings of matching outbounds. Legacy
// documents carry no outbound objects, only opaque connection links, so they
// yield an empty result rather than an error; callers wanting legacy data use
// the raw-link query instead.
func (f *Filterer) Objects(doc *Document, filters []string) []Outbound {
	objects := make([]Outbound, 0)

	if doc.Kind != KindStructured {
		slog.Debug("Legacy subscription has no outbound objects, returning empty result")
		return objects
	}

	for _, outbound := range doc.Outbounds {
		if f.matches(outbound.Tag(), filters) {
			objects = append(objects, outbound)
		}
	}

	return objects
}

// Entries returns the matching legacy entries in source order.
func (f *Filterer) Entries(entries []LegacyEntry, filters []string) []LegacyEntry {
	matched := make([]LegacyEntry, 0, len(entries))
	for _, entry := range entries {
		if f.matches(entry.Tag, filters) {
			matched = append(matched, entry)
		}
	}
	return matched
}

func (f *Filterer) matches(tag string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}

	folded := foldCase(tag)
	for _, filter := range filters {
		if strings.Contains(folded, foldCase(filter)) {
			return true
		}
	}
	return false
}

// foldCase normalizes case for caseless matching. A fresh caser per call:
// cases.Caser carries state and must not be shared between goroutines.
func foldCase(s string) string {
	return cases.Fold().String(s)
}
