package config

import (
	"fmt"
	"os"
	"strings"
)

// parseUCI reads an OpenWrt UCI config file into an ordered slice of sections.
// Anonymous sections (config lines without a name) are named by their position,
// matching the uci CLI convention (@<type>[<index>]).
func parseUCI(path string) ([]*Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sections []*Section
	var current *Section
	anonymous := make(map[string]int)

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := stripInlineComment(rawLine)
		if line == "" {
			continue
		}

		if sectionType, sectionName, ok := parseSectionLine(line); ok {
			if sectionName == "" {
				sectionName = fmt.Sprintf("@%s[%d]", sectionType, anonymous[sectionType])
				anonymous[sectionType]++
			}
			current = &Section{
				Type:    sectionType,
				Name:    sectionName,
				Options: make(map[string]string),
				Lists:   make(map[string][]string),
			}
			sections = append(sections, current)
			continue
		}

		if current == nil {
			continue
		}

		if key, value, ok := parseOptionLine(line, "option "); ok {
			current.Options[key] = value
			continue
		}
		if key, value, ok := parseOptionLine(line, "list "); ok {
			current.Lists[key] = append(current.Lists[key], value)
		}
	}

	return sections, nil
}

func parseSectionLine(line string) (sectionType string, sectionName string, ok bool) {
	if !strings.HasPrefix(line, "config ") {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "config "))
	if rest == "" {
		return "", "", false
	}
	idx := strings.IndexAny(rest, " \t")
	if idx < 0 {
		return strings.TrimSpace(rest), "", true
	}
	sectionType = strings.TrimSpace(rest[:idx])
	sectionName = trimUCIValue(rest[idx+1:])
	if sectionType == "" {
		return "", "", false
	}
	return sectionType, sectionName, true
}

func parseOptionLine(line, prefix string) (key string, value string, ok bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if rest == "" {
		return "", "", false
	}
	idx := strings.IndexAny(rest, " \t")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(rest[:idx])
	value = trimUCIValue(rest[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// trimUCIValue strips one pair of matching single or double quotes.
func trimUCIValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		if raw[0] == '\'' && raw[len(raw)-1] == '\'' {
			return raw[1 : len(raw)-1]
		}
		if raw[0] == '"' && raw[len(raw)-1] == '"' {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

// stripInlineComment drops everything after an unquoted '#'.
func stripInlineComment(line string) string {
	inQuote := false
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == '#' && !inQuote {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}
