package subscription

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ParseStructured decodes a structured JSON document into its outbound
// records. Fields beyond the tag are carried through untouched, and duplicate
// tags survive in source order.
func ParseStructured(raw []byte) ([]Outbound, error) {
	var doc struct {
		Outbounds []Outbound `json:"outbounds"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DecodeError{Reason: "invalid structured document", Err: err}
	}
	return doc.Outbounds, nil
}

// ParseLegacy decodes a legacy encoded subscription list into ordered
// entries. The payload is normally base64; a plain share-link list is
// accepted as-is. Blank lines are dropped without consuming an ordinal, and
// entries without a decodable tag fragment get a synthetic proxy-<n> tag,
// where n counts emitted entries from 1.
func ParseLegacy(raw []byte) ([]LegacyEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "empty content"}
	}

	decoded, err := decodeBase64(string(trimmed))
	if err != nil {
		if !bytes.Contains(trimmed, []byte("://")) {
			return nil, &DecodeError{Reason: "malformed base64 payload", Err: err}
		}
		decoded = string(trimmed)
	}
	if strings.TrimSpace(decoded) == "" {
		return nil, &DecodeError{Reason: "payload decodes to empty content"}
	}

	var entries []LegacyEntry
	for _, line := range splitLines(decoded) {
		entries = append(entries, LegacyEntry{
			Link:    line,
			Tag:     resolveTag(line, len(entries)+1),
			Scheme:  linkScheme(line),
			Ordinal: len(entries) + 1,
		})
	}

	return entries, nil
}

// decodeBase64 tries the encoding variants seen in the wild, unpadded
// URL-safe first.
func decodeBase64(content string) (string, error) {
	content = strings.Join(strings.Fields(content), "")

	var lastErr error
	for _, encoding := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
	} {
		decoded, err := encoding.DecodeString(content)
		if err == nil {
			return string(decoded), nil
		}
		lastErr = err
	}
	return "", lastErr
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// resolveTag extracts the percent-encoded fragment after the last '#' on the
// line. Lines without a usable fragment get the synthetic tag for the given
// ordinal.
func resolveTag(line string, ordinal int) string {
	if idx := strings.LastIndex(line, "#"); idx >= 0 {
		fragment := line[idx+1:]
		decoded, err := url.QueryUnescape(fragment)
		if err != nil {
			decoded = fragment
		}
		if tag := strings.TrimSpace(decoded); tag != "" {
			return tag
		}
	}
	return fmt.Sprintf("proxy-%d", ordinal)
}

func linkScheme(line string) string {
	if idx := strings.Index(line, "://"); idx > 0 {
		return line[:idx]
	}
	return ""
}

// EncodeLegacyCache renders entries in the line-oriented link|tag form the
// cache stores for legacy documents. The format is internal to this service.
func EncodeLegacyCache(entries []LegacyEntry) []byte {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Link)
		b.WriteString("|")
		b.WriteString(entry.Tag)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// DecodeLegacyCache parses the cached link|tag form back into entries.
func DecodeLegacyCache(data []byte) []LegacyEntry {
	var entries []LegacyEntry
	for _, line := range splitLines(string(data)) {
		link, tag, found := strings.Cut(line, "|")
		if !found || link == "" {
			continue
		}
		if tag == "" {
			tag = fmt.Sprintf("proxy-%d", len(entries)+1)
		}
		entries = append(entries, LegacyEntry{
			Link:    link,
			Tag:     tag,
			Scheme:  linkScheme(link),
			Ordinal: len(entries) + 1,
		})
	}
	return entries
}
