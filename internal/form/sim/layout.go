// Package sim is an in-process business decision form. It renders the same
// markup shape as the hosted course simulation (decision inputs, a metric
// table and a Calculate button) and scores decisions with a deterministic
// demand model.
package sim

import (
	"fmt"
	"strings"
)

// InputSpec is one numeric decision input
type InputSpec struct {
	ID    string
	Label string
	Value float64
}

// ChoiceSpec is one select decision
type ChoiceSpec struct {
	ID       string
	Label    string
	Options  []string
	Selected string
	// Ignore renders the select with the entry-assumptions class
	Ignore bool
}

// Layout is the set of decision fields a Page renders, in order
type Layout struct {
	Inputs  []InputSpec
	Choices []ChoiceSpec
}

type region struct {
	code   string
	label  string
	market float64
}

var regions = []region{
	{code: "na", label: "N.A.", market: 220},
	{code: "ea", label: "E-A", market: 180},
	{code: "ap", label: "A-P", market: 200},
	{code: "la", label: "L.A.", market: 120},
}

// DefaultLayout returns the four-region camera company decision form
func DefaultLayout() Layout {
	var l Layout
	for _, r := range regions {
		l.Inputs = append(l.Inputs,
			InputSpec{ID: r.code + "-price", Label: r.label + " Wholesale Price", Value: 500},
			InputSpec{ID: r.code + "-support", Label: r.label + " Retailer Support Budget", Value: 1000},
			InputSpec{ID: r.code + "-advertising", Label: r.label + " Advertising Budget", Value: 1000},
			InputSpec{ID: r.code + "-displays", Label: r.label + " Website Product Displays/Info", Value: 500},
		)
	}
	l.Inputs = append(l.Inputs, InputSpec{ID: "dividend", Label: "Dividend Payout Ratio", Value: 20})
	l.Choices = []ChoiceSpec{
		{ID: "shifts", Label: "Production Shifts", Options: []string{"1", "2", "3"}, Selected: "1"},
		{ID: "assumptions", Label: "Entry Assumptions", Options: []string{"conservative", "aggressive"}, Selected: "conservative", Ignore: true},
	}
	return l
}

// regionInput builds the id of a region decision
func regionInput(code, decision string) string {
	return fmt.Sprintf("%s-%s", code, decision)
}

func (l Layout) input(id string) (InputSpec, bool) {
	for _, in := range l.Inputs {
		if in.ID == id {
			return in, true
		}
	}
	return InputSpec{}, false
}

func (l Layout) choice(id string) (ChoiceSpec, bool) {
	for _, c := range l.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return ChoiceSpec{}, false
}

func (c ChoiceSpec) hasOption(v string) bool {
	for _, o := range c.Options {
		if o == v {
			return true
		}
	}
	return false
}

func containsFold(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
