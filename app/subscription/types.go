package subscription

import "strings"

// Declared subscription types as configured per section.
const (
	TypeAuto       = "auto"
	TypeStructured = "structured"
	TypeLegacy     = "legacy"
)

// Kind is the detected wire format of a fetched document.
type Kind string

const (
	KindStructured Kind = "structured"
	KindLegacy     Kind = "legacy"
)

// Outbound is one proxy endpoint description from a structured document.
// All fields supplied by the remote source are kept as-is; only the tag is
// interpreted. Tags are not unique, so outbounds are never keyed by tag.
type Outbound map[string]any

func (o Outbound) Tag() string {
	tag, _ := o["tag"].(string)
	return tag
}

// LegacyEntry is one decoded line from a legacy subscription list.
type LegacyEntry struct {
	Link    string
	Tag     string
	Scheme  string
	Ordinal int
}

// Document is the normalized result of one fetch. Exactly one of Outbounds
// and Entries is populated, matching Kind.
type Document struct {
	Kind      Kind
	Outbounds []Outbound
	Entries   []LegacyEntry
}

// ParseFilterSet splits a space-delimited configuration string into filter
// tokens. Embedded spaces cannot be escaped.
func ParseFilterSet(raw string) []string {
	return strings.Fields(raw)
}
