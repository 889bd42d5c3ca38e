package field

import (
	"strings"

	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
)

type rule struct {
	pattern  string
	category string
}

// Classifier maps field labels to categories through an ordered rule table.
// Rules are case-insensitive substrings and the first match wins; exact-label
// overrides take precedence over the rule table.
type Classifier struct {
	rules     []rule
	profiles  map[string]config.Profile
	overrides map[string]config.Override
}

// NewClassifier builds a classifier from a config table
func NewClassifier(table config.Classifier) *Classifier {
	c := &Classifier{
		profiles:  make(map[string]config.Profile, len(table.Profiles)),
		overrides: make(map[string]config.Override, len(table.Overrides)),
	}
	for _, r := range table.Rules {
		c.rules = append(c.rules, rule{pattern: strings.ToLower(r.Pattern), category: r.Category})
	}
	for name, p := range table.Profiles {
		c.profiles[name] = p
	}
	for _, o := range table.Overrides {
		c.overrides[strings.TrimSpace(o.Label)] = o
	}
	return c
}

// DefaultClassifier returns the built-in vocabulary
func DefaultClassifier() *Classifier {
	return NewClassifier(config.DefaultClassifier())
}

// Classify returns the search profile for a label, or false when no rule or
// override matches.
func (c *Classifier) Classify(label string) (Classification, bool) {
	trimmed := strings.TrimSpace(label)
	category, matched := c.category(trimmed)

	if o, ok := c.overrides[trimmed]; ok {
		if !matched {
			category = "override"
		}
		return Classification{Category: category, Min: o.Min, Max: o.Max, Sweep: cloneFloats(o.Sweep)}, true
	}
	if !matched {
		return Classification{}, false
	}
	p, ok := c.profiles[category]
	if !ok {
		return Classification{}, false
	}
	return Classification{Category: category, Min: p.Min, Max: p.Max, Sweep: cloneFloats(p.Sweep)}, true
}

func (c *Classifier) category(label string) (string, bool) {
	lower := strings.ToLower(label)
	for _, r := range c.rules {
		if strings.Contains(lower, r.pattern) {
			return r.category, true
		}
	}
	return "", false
}

// Apply returns copies of fields with numeric fields classified. Choice
// fields are returned unchanged.
func (c *Classifier) Apply(fields []Descriptor) []Descriptor {
	out := make([]Descriptor, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.Kind != KindNumeric {
			continue
		}
		if cls, ok := c.Classify(f.Label); ok {
			out[i].Class = &cls
		} else {
			out[i].Class = nil
		}
	}
	return out
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
