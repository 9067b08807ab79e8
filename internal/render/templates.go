package render

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template kinds. The spawn policy picks breaking for high-importance
// articles and standard otherwise; feature is available for manual spawns.
const (
	KindBreaking = "breaking"
	KindStandard = "standard"
	KindFeature  = "feature"
)

// Template is one caption template
type Template struct {
	HeadlinePrefix   string `yaml:"headline_prefix"`
	ExcerptSentences int    `yaml:"excerpt_sentences"`
}

// TemplateSet is the full template configuration
type TemplateSet struct {
	Templates map[string]Template `yaml:"templates"`
	Hashtags  map[string][]string `yaml:"hashtags"`
}

// DefaultTemplateSet returns the built-in templates used when no
// template file is configured
func DefaultTemplateSet() *TemplateSet {
	return &TemplateSet{
		Templates: map[string]Template{
			KindBreaking: {HeadlinePrefix: "🚨 BREAKING:", ExcerptSentences: 2},
			KindStandard: {HeadlinePrefix: "📰", ExcerptSentences: 2},
			KindFeature:  {HeadlinePrefix: "✨", ExcerptSentences: 3},
		},
		Hashtags: map[string][]string{
			"general":    {"news", "currentevents", "dailynews"},
			"politics":   {"politics", "government"},
			"economy":    {"economy", "business", "finance"},
			"health":     {"health", "wellness"},
			"technology": {"tech", "technology"},
			"sports":     {"sports"},
		},
	}
}

// LoadTemplateSet reads a template file, falling back to the defaults
// for any section the file omits
func LoadTemplateSet(path string) (*TemplateSet, error) {
	set := DefaultTemplateSet()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("failed to read templates file %s: %w", path, err)
	}

	var file TemplateSet
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}

	for kind, tmpl := range file.Templates {
		set.Templates[kind] = tmpl
	}
	for category, tags := range file.Hashtags {
		set.Hashtags[category] = tags
	}

	return set, nil
}
