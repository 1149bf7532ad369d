package config

// Per-section option keys recognized by the subscription pipeline.
const (
	OptionSubscriptionURL      = "subscription_url"
	OptionSubscriptionType     = "subscription_type"
	OptionSubscriptionFilter   = "subscription_filter"
	OptionSubscriptionSelected = "subscription_selected"
)

// Section is one named configuration section from the router config.
// Options holds single-valued settings, Lists holds repeated ones.
type Section struct {
	Type    string
	Name    string
	Options map[string]string
	Lists   map[string][]string
}

func (s *Section) Option(key string) string {
	return s.Options[key]
}

func (s *Section) OptionDefault(key, def string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return def
}

func (s *Section) List(key string) []string {
	return s.Lists[key]
}

// HasSubscription reports whether the section carries a subscription URL.
func (s *Section) HasSubscription() bool {
	return s.Option(OptionSubscriptionURL) != ""
}
