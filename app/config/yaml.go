package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type yamlSection struct {
	Type    string              `yaml:"type"`
	Options map[string]string   `yaml:"options"`
	Lists   map[string][]string `yaml:"lists"`
}

type yamlFile struct {
	Sections map[string]yamlSection `yaml:"sections"`
	// Order preserves the section sequence for deterministic iteration;
	// sections absent from the list follow in lexical order.
	Order []string `yaml:"order"`
}

// parseYAML reads sections from a YAML file, the development-host alternative
// to the UCI config shipped on the router.
func parseYAML(path string) ([]*Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	names := make([]string, 0, len(file.Sections))
	seen := make(map[string]bool, len(file.Sections))
	for _, name := range file.Order {
		if _, ok := file.Sections[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	ordered := len(names)
	for name := range file.Sections {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names[ordered:])

	sections := make([]*Section, 0, len(names))
	for _, name := range names {
		raw := file.Sections[name]
		section := &Section{
			Type:    raw.Type,
			Name:    name,
			Options: raw.Options,
			Lists:   raw.Lists,
		}
		if section.Type == "" {
			section.Type = "section"
		}
		if section.Options == nil {
			section.Options = make(map[string]string)
		}
		if section.Lists == nil {
			section.Lists = make(map[string][]string)
		}
		sections = append(sections, section)
	}

	return sections, nil
}
