package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// ConfigCache loads the section configuration file and serves parsed sections
// to the rest of the application. The file format is chosen by extension:
// .yml/.yaml files use the YAML loader, anything else is treated as UCI.
type ConfigCache struct {
	path     string
	sections []*Section
	byName   map[string]*Section
	mu       sync.RWMutex
}

func NewConfigCache(path string) *ConfigCache {
	return &ConfigCache{
		path:   path,
		byName: make(map[string]*Section),
	}
}

func (cc *ConfigCache) Run() error {
	return cc.Reload()
}

func (cc *ConfigCache) Reload() error {
	var sections []*Section
	var err error

	switch strings.ToLower(filepath.Ext(cc.path)) {
	case ".yml", ".yaml":
		sections, err = parseYAML(cc.path)
	default:
		sections, err = parseUCI(cc.path)
	}
	if err != nil {
		return fmt.Errorf("error loading %s: %w", cc.path, err)
	}

	byName := make(map[string]*Section, len(sections))
	for _, section := range sections {
		byName[section.Name] = section
	}

	cc.mu.Lock()
	cc.sections = sections
	cc.byName = byName
	cc.mu.Unlock()

	for _, section := range sections {
		slog.Debug("Configuration section loaded", "section", section.Name,
			"type", section.Type, "has_subscription", section.HasSubscription())
	}

	return nil
}

func (cc *ConfigCache) GetSection(name string) (*Section, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	section, ok := cc.byName[name]
	if !ok {
		return nil, fmt.Errorf("config section with name '%s' not found", name)
	}
	return section, nil
}

func (cc *ConfigCache) GetSections() []*Section {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sectionsCopy := make([]*Section, len(cc.sections))
	copy(sectionsCopy, cc.sections)
	return sectionsCopy
}

// GetSubscribedSections returns the sections that have a subscription URL
// configured, in file order.
func (cc *ConfigCache) GetSubscribedSections() []*Section {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	subscribed := make([]*Section, 0, len(cc.sections))
	for _, section := range cc.sections {
		if section.HasSubscription() {
			subscribed = append(subscribed, section)
		}
	}
	return subscribed
}

func (cc *ConfigCache) GetSectionCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.sections)
}
