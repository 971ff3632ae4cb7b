package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Text renders s, escaped.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

// Textf renders a formatted, escaped string.
func Textf(format string, args ...any) templ.Component {
	return Text(fmt.Sprintf(format, args...))
}

// Button renders a button bound to event. Trigger the event with
// Runtime.Trigger; the markup only carries the name.
func Button(event, label string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<button data-event="%s">%s</button>`,
			templ.EscapeString(event), templ.EscapeString(label))
		return err
	})
}

// Group renders components in order.
func Group(items ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range items {
			if c == nil {
				continue
			}
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}
