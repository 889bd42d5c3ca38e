package field

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

// DiscoverOptions controls which elements count as decision fields
type DiscoverOptions struct {
	InputClass        string
	IgnoreSelectClass string
}

// Discover lists the decision fields of a rendered page in document order.
// Numeric fields are inputs carrying InputClass; choice fields are selects
// without IgnoreSelectClass. Elements with neither id nor name are skipped
// since they cannot be addressed. Fields come back unclassified.
func Discover(doc string, opts DiscoverOptions) ([]Descriptor, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	labels := make(map[string]string)
	visit(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if target := attr(n, "for"); target != "" {
				labels[target] = measure.TextContent(n)
			}
		}
	})

	var fields []Descriptor
	visit(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "input":
			if !measure.HasClass(n, opts.InputClass) {
				return
			}
			if d, ok := numericField(n, labels); ok {
				fields = append(fields, d)
			}
		case "select":
			if opts.IgnoreSelectClass != "" && measure.HasClass(n, opts.IgnoreSelectClass) {
				return
			}
			if d, ok := choiceField(n, labels); ok {
				fields = append(fields, d)
			}
		}
	})
	return fields, nil
}

func numericField(n *html.Node, labels map[string]string) (Descriptor, bool) {
	id := elementID(n)
	if id == "" {
		return Descriptor{}, false
	}
	raw := attr(n, "value")
	d := Descriptor{
		ID:    id,
		Label: label(n, id, labels),
		Kind:  KindNumeric,
		Raw:   raw,
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64); err == nil {
		d.Value = v
	}
	return d, true
}

func choiceField(n *html.Node, labels map[string]string) (Descriptor, bool) {
	id := elementID(n)
	if id == "" {
		return Descriptor{}, false
	}
	d := Descriptor{
		ID:    id,
		Label: label(n, id, labels),
		Kind:  KindChoice,
	}
	visit(n, func(o *html.Node) {
		if o.Type != html.ElementNode || o.Data != "option" {
			return
		}
		text := measure.TextContent(o)
		value, hasValue := attrOK(o, "value")
		if !hasValue {
			value = text
		}
		d.Options = append(d.Options, Option{Value: value, Text: text})
		if _, selected := attrOK(o, "selected"); selected {
			d.Selected = value
		}
	})
	if len(d.Options) == 0 {
		return Descriptor{}, false
	}
	if d.Selected == "" {
		d.Selected = d.Options[0].Value
	}
	d.Raw = d.Selected
	return d, true
}

// label resolves the human-readable name: title, aria-label, an associated
// <label for>, and finally the id itself.
func label(n *html.Node, id string, labels map[string]string) string {
	for _, key := range []string{"title", "aria-label"} {
		if v := strings.TrimSpace(attr(n, key)); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(labels[id]); v != "" {
		return v
	}
	return id
}

func elementID(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return id
	}
	return attr(n, "name")
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func visit(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visit(c, fn)
	}
}
