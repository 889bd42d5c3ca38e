package sim

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
)

// Page is a simulated decision form. Input edits are only reflected in the
// metric table after the Calculate button is pressed.
type Page struct {
	mu          sync.Mutex
	layout      Layout
	text        map[string]string
	selected    map[string]string
	metrics     map[string]float64
	score       ScoreFunc
	recalc      bool
	broken      int
	evaluations int
	signals     map[string][]string
}

// Option configures a Page
type Option func(*Page)

// WithLayout replaces the default camera company layout
func WithLayout(l Layout) Option {
	return func(p *Page) { p.layout = l }
}

// WithScore replaces the default demand model
func WithScore(fn ScoreFunc) Option {
	return func(p *Page) { p.score = fn }
}

// WithoutRecalculate renders the page with no Calculate button
func WithoutRecalculate() Option {
	return func(p *Page) { p.recalc = false }
}

// New creates a simulated page and scores its initial decisions
func New(opts ...Option) *Page {
	p := &Page{
		layout:   DefaultLayout(),
		score:    CameraModel,
		recalc:   true,
		text:     make(map[string]string),
		selected: make(map[string]string),
		signals:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, in := range p.layout.Inputs {
		p.text[in.ID] = strconv.FormatFloat(in.Value, 'f', 2, 64)
	}
	for _, c := range p.layout.Choices {
		sel := c.Selected
		if sel == "" && len(c.Options) > 0 {
			sel = c.Options[0]
		}
		p.selected[c.ID] = sel
	}
	p.calculateLocked()
	return p
}

// HTML renders the current form
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

// SetInput replaces the text of an input
func (p *Page) SetInput(_ context.Context, id, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.layout.input(id); !ok {
		return fmt.Errorf("input %s: %w", id, form.ErrFieldNotFound)
	}
	p.text[id] = text
	p.signals[id] = append(p.signals[id], "input", "change", "blur", "keydown:Enter", "keyup:Enter")
	return nil
}

// SelectOption selects an option of a select field
func (p *Page) SelectOption(_ context.Context, id, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.layout.choice(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, form.ErrFieldNotFound)
	}
	if !c.hasOption(value) {
		return fmt.Errorf("select %s has no option %q", id, value)
	}
	p.selected[id] = value
	p.signals[id] = append(p.signals[id], "change")
	return nil
}

// PressButton clicks the first button whose text contains one of labels
func (p *Page) PressButton(_ context.Context, labels []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.buttonsLocked() {
		if !containsFold(b, labels) {
			continue
		}
		if b == calculateButton {
			p.calculateLocked()
		}
		return true, nil
	}
	return false, nil
}

// SetRecalculate shows or hides the Calculate button
func (p *Page) SetRecalculate(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recalc = enabled
}

// BreakObjective makes the next n calculations render an unreadable EPS
func (p *Page) BreakObjective(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broken = n
}

// Evaluations returns how many times the scoring function has run
func (p *Page) Evaluations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evaluations
}

// Inputs returns the parsed value of every input as currently displayed
func (p *Page) Inputs() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputsLocked()
}

// InputText returns the displayed text of an input
func (p *Page) InputText(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text[id]
}

// Selected returns the selected option of a select field
func (p *Page) Selected(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected[id]
}

// Signals returns the events raised on a field so far
func (p *Page) Signals(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signals[id]...)
}

// Metrics returns the readings currently rendered
func (p *Page) Metrics() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.metrics))
	for k, v := range p.metrics {
		out[k] = v
	}
	return out
}

const (
	calculateButton = "Calculate"
	saveButton      = "Save Decisions"
)

func (p *Page) buttonsLocked() []string {
	buttons := []string{saveButton}
	if p.recalc {
		buttons = append(buttons, calculateButton)
	}
	return buttons
}

func (p *Page) inputsLocked() map[string]float64 {
	values := make(map[string]float64, len(p.text))
	for id, text := range p.text {
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 64)
		if err != nil {
			v = 0
		}
		values[id] = v
	}
	return values
}

func (p *Page) calculateLocked() {
	choices := make(map[string]string, len(p.selected))
	for k, v := range p.selected {
		choices[k] = v
	}
	raw := p.score(p.inputsLocked(), choices)
	p.evaluations++

	metrics := make(map[string]float64, len(raw))
	for k, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		metrics[k] = v
	}
	if p.broken > 0 {
		delete(metrics, "eps")
		p.broken--
	}
	p.metrics = metrics
}

type metricRow struct {
	key    string
	name   string
	format string
}

var metricRows = []metricRow{
	{"eps", "Earnings Per Share", "$%.2f"},
	{"net_revenue", "Net Revenues ($000)", "$%.2f"},
	{"profit", "Net Profit ($000)", "$%.2f"},
	{"cash", "Ending Cash ($000)", "$%.2f"},
	{"image_rating", "Image Rating", "%.1f"},
	{"market_share", "Market Share", "%.2f%%"},
	{"stock_price", "Stock Price", "$%.2f"},
	{"roa", "Return On Assets", "%.2f%%"},
}

type inputView struct {
	ID, Label, Text string
}

type optionView struct {
	Value    string
	Selected bool
}

type choiceView struct {
	ID, Label, Class string
	Options          []optionView
}

type rowView struct {
	Name, Value string
}

type pageView struct {
	Inputs  []inputView
	Choices []choiceView
	Rows    []rowView
	Buttons []string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>Decision Entry</title></head>
<body>
<form method="post" action="/">
<table class="decisions">
{{range .Inputs}}<tr><td>{{.Label}}</td><td><input class="input-field" type="text" id="{{.ID}}" name="{{.ID}}" title="{{.Label}}" value="{{.Text}}"></td></tr>
{{end}}</table>
{{range .Choices}}<label for="{{.ID}}">{{.Label}}</label>
<select id="{{.ID}}" name="{{.ID}}"{{if .Class}} class="{{.Class}}"{{end}}>
{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>
{{end}}</select>
{{end}}{{range .Buttons}}<button type="submit" name="action" value="{{.}}">{{.}}</button>
{{end}}</form>
<table class="scores">
{{range .Rows}}<tr><td class="measure">{{.Name}}</td><td class="score text-center">{{.Value}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func (p *Page) renderLocked() (string, error) {
	var view pageView
	for _, in := range p.layout.Inputs {
		view.Inputs = append(view.Inputs, inputView{ID: in.ID, Label: in.Label, Text: p.text[in.ID]})
	}
	for _, c := range p.layout.Choices {
		cv := choiceView{ID: c.ID, Label: c.Label}
		if c.Ignore {
			cv.Class = "entry-assumptions-select"
		}
		for _, o := range c.Options {
			cv.Options = append(cv.Options, optionView{Value: o, Selected: o == p.selected[c.ID]})
		}
		view.Choices = append(view.Choices, cv)
	}
	for _, row := range metricRows {
		value := "N/A"
		if v, ok := p.metrics[row.key]; ok {
			value = fmt.Sprintf(row.format, v)
		}
		view.Rows = append(view.Rows, rowView{Name: row.name, Value: value})
	}
	view.Buttons = p.buttonsLocked()

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return buf.String(), nil
}
