// Package field discovers the editable decision fields of a host form and
// classifies them into search categories.
package field

import "github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"

// Kind distinguishes free numeric inputs from option lists
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindChoice  Kind = "choice"
)

// Option is one entry of a choice field
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Classification is the search profile attached to a recognized field
type Classification struct {
	Category string    `json:"category"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Sweep    []float64 `json:"sweep,omitempty"`
}

// Clamp bounds v to the classification range
func (c Classification) Clamp(v float64) float64 {
	return utils.Clamp(v, c.Min, c.Max)
}

// Width returns the size of the range
func (c Classification) Width() float64 {
	return c.Max - c.Min
}

// Descriptor describes one field as last rendered. Descriptors are
// rediscovered on every pass and never mutated in place.
type Descriptor struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Kind     Kind            `json:"kind"`
	Value    float64         `json:"value"`
	Raw      string          `json:"raw"`
	Options  []Option        `json:"options,omitempty"`
	Selected string          `json:"selected,omitempty"`
	Class    *Classification `json:"classification,omitempty"`
}

// Classified reports whether the field has a search profile
func (d Descriptor) Classified() bool {
	return d.Class != nil
}

// HasOption reports whether value is one of the field's options
func (d Descriptor) HasOption(value string) bool {
	for _, o := range d.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
