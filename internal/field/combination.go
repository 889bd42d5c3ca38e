package field

import "math"

// Entry is the recorded state of one field
type Entry struct {
	Kind   Kind    `json:"kind"`
	Value  float64 `json:"value"`
	Option string  `json:"option,omitempty"`
	Label  string  `json:"label"`
}

// Combination maps field IDs to their recorded state. Combinations handed to
// a store are always clones.
type Combination map[string]Entry

// Clone returns an independent copy. A nil combination clones to an empty one.
func (c Combination) Clone() Combination {
	out := make(Combination, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Equal reports whether both combinations hold the same entries, comparing
// numeric values to within half a cent.
func (c Combination) Equal(other Combination) bool {
	if len(c) != len(other) {
		return false
	}
	for id, e := range c {
		o, ok := other[id]
		if !ok || e.Kind != o.Kind || e.Option != o.Option {
			return false
		}
		if math.Abs(e.Value-o.Value) > 0.005 {
			return false
		}
	}
	return true
}

// Capture records the current values of the given fields
func Capture(fields []Descriptor) Combination {
	c := make(Combination, len(fields))
	for _, f := range fields {
		c.Set(f, f.Value, f.Selected)
	}
	return c
}

// Set records a value for field d. Choice fields record option, numeric
// fields record value.
func (c Combination) Set(d Descriptor, value float64, option string) {
	e := Entry{Kind: d.Kind, Label: d.Label}
	if d.Kind == KindChoice {
		e.Option = option
	} else {
		e.Value = value
	}
	c[d.ID] = e
}
