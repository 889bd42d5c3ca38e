// Package form drives an externally rendered decision form: it writes field
// values, presses the recalculate action and waits for the page to settle.
package form

import (
	"context"
	"errors"
)

// ErrFieldNotFound is returned by a Page when an addressed field is missing
var ErrFieldNotFound = errors.New("field not found")

// Page is the host form as seen by the optimizer. Implementations render the
// current state as HTML and apply edits the way a user would.
type Page interface {
	// HTML returns the current rendered markup.
	HTML(ctx context.Context) (string, error)
	// SetInput replaces the text of an input and raises the input, change,
	// blur and Enter key signals a user edit would.
	SetInput(ctx context.Context, id, text string) error
	// SelectOption selects an option of a select field and raises change.
	SelectOption(ctx context.Context, id, value string) error
	// PressButton clicks the first button whose text contains one of labels,
	// case-insensitively. It reports false when no such button exists.
	PressButton(ctx context.Context, labels []string) (bool, error)
}
