// Package browser drives a live host form in a Chrome tab through the
// DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// Page is a form.Page backed by a browser tab
type Page struct {
	tab    context.Context
	cancel context.CancelFunc
	url    string
}

// Open starts a browser, navigates to url and returns the tab
func Open(ctx context.Context, url string, headless bool) (*Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	logger.Info("browser page opened", "url", url, "headless", headless)

	return &Page{
		tab: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		url: url,
	}, nil
}

// Close shuts the tab and the browser
func (p *Page) Close() {
	p.cancel()
}

// HTML returns the outer HTML of the document
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var doc string
	if err := chromedp.Run(p.tab, chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return doc, nil
}

// SetInput writes text into an input and dispatches the user edit events
func (p *Page) SetInput(ctx context.Context, id, text string) error {
	return p.callBool(ctx, setInputScript(id, text), "input "+id)
}

// SelectOption selects an option and dispatches change
func (p *Page) SelectOption(ctx context.Context, id, value string) error {
	return p.callBool(ctx, selectOptionScript(id, value), "select "+id)
}

// PressButton clicks the first button whose text contains one of labels
func (p *Page) PressButton(ctx context.Context, labels []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var pressed bool
	if err := chromedp.Run(p.tab, chromedp.Evaluate(pressButtonScript(labels), &pressed)); err != nil {
		return false, fmt.Errorf("failed to press button: %w", err)
	}
	return pressed, nil
}

func (p *Page) callBool(ctx context.Context, script, what string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var found bool
	if err := chromedp.Run(p.tab, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if !found {
		return fmt.Errorf("%s: %w", what, form.ErrFieldNotFound)
	}
	return nil
}

const findElement = `const el = document.getElementById(id) || document.getElementsByName(id)[0];
  if (!el) return false;`

func setInputScript(id, text string) string {
	return fmt.Sprintf(`((id, text) => {
  %s
  el.value = text;
  for (const t of ['input', 'change', 'blur']) el.dispatchEvent(new Event(t, {bubbles: true}));
  for (const t of ['keydown', 'keyup']) el.dispatchEvent(new KeyboardEvent(t, {key: 'Enter', code: 'Enter', keyCode: 13, bubbles: true}));
  return true;
})(%s, %s)`, findElement, jsString(id), jsString(text))
}

func selectOptionScript(id, value string) string {
	return fmt.Sprintf(`((id, value) => {
  %s
  if (![...el.options].some(o => o.value === value)) return false;
  el.value = value;
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
})(%s, %s)`, findElement, jsString(id), jsString(value))
}

func pressButtonScript(labels []string) string {
	encoded, _ := json.Marshal(labels)
	return fmt.Sprintf(`((labels) => {
  const wanted = labels.map(l => l.toLowerCase());
  const buttons = document.querySelectorAll('button, input[type=submit], input[type=button]');
  for (const b of buttons) {
    const text = (b.innerText || b.value || '').toLowerCase();
    if (wanted.some(l => text.includes(l))) { b.click(); return true; }
  }
  return false;
})(%s)`, encoded)
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
