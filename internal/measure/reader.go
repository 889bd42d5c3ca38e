package measure

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
)

// Source yields the current rendered markup of the host form.
type Source interface {
	HTML(ctx context.Context) (string, error)
}

// Reader extracts a Snapshot from the metric table of a rendered page. Rows
// carry a measure-name cell (class "measure") and a value cell (class
// "score"); names are matched case-insensitively by substring.
type Reader struct {
	rules []config.Measure
}

// NewReader creates a reader for the given measure table. An empty table
// selects config.DefaultMeasures.
func NewReader(rules []config.Measure) *Reader {
	if len(rules) == 0 {
		rules = config.DefaultMeasures()
	}
	normalized := make([]config.Measure, len(rules))
	for i, r := range rules {
		normalized[i] = config.Measure{Pattern: strings.ToLower(r.Pattern), Key: r.Key}
	}
	return &Reader{rules: normalized}
}

// ReadPage fetches the page markup and reads it.
func (r *Reader) ReadPage(ctx context.Context, src Source) (Snapshot, error) {
	doc, err := src.HTML(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	return r.Read(doc), nil
}

// Read parses markup and returns every reading it can find. Missing rows and
// unparseable values are simply absent. When several rows map to the same
// key the last parseable one wins.
func (r *Reader) Read(doc string) Snapshot {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return NewSnapshot(nil)
	}

	values := make(map[string]float64)
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "tr" {
			return
		}
		nameCell := firstCell(n, "measure")
		scoreCell := firstCell(n, "score")
		if nameCell == nil || scoreCell == nil {
			return
		}
		value, ok := ParseValue(TextContent(scoreCell))
		if !ok {
			return
		}
		name := strings.ToLower(TextContent(nameCell))
		for _, rule := range r.rules {
			if strings.Contains(name, rule.Pattern) {
				values[rule.Key] = value
			}
		}
	})
	return NewSnapshot(values)
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseValue strips currency, grouping and percent symbols plus whitespace
// and parses the leading decimal number of what remains.
func ParseValue(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '%':
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimSpace(cleaned)
	m := leadingNumber.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstCell(row *html.Node, class string) *html.Node {
	var found *html.Node
	walk(row, func(n *html.Node) {
		if found != nil || n.Type != html.ElementNode || n.Data != "td" {
			return
		}
		if HasClass(n, class) {
			found = n
		}
	})
	return found
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// HasClass reports whether the element's class attribute contains class as a token.
func HasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// TextContent concatenates the text nodes below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(b.String())
}
