package inspect

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/vango-dev/sharedstate/pkg/state"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>sharedstate inspector</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { padding: 0.25rem 0.75rem; border-bottom: 1px solid #ddd; text-align: left; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>sharedstate</h1>
`

const feedScript = `<h2>Events</h2>
<ol id="events"></ol>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/events");
ws.onmessage = (m) => {
  const li = document.createElement("li");
  li.textContent = m.data;
  document.getElementById("events").prepend(li);
};
</script>
`

// page renders the overview table.
func page(infos []state.Info, feed bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "<p>%d keys</p>\n", len(infos)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<table>\n<tr><th>Key</th><th>Type</th><th>Version</th><th>Subscribers</th><th>Value</th></tr>\n"); err != nil {
			return err
		}
		for _, info := range infos {
			v := viewOf(info, true)
			if !v.Set {
				v.Value = "(unset)"
			}
			_, err := fmt.Fprintf(w,
				`<tr><td><a href="/state/%s">%s</a></td><td>%s</td><td class="num">%d</td><td class="num">%d</td><td><code>%s</code></td></tr>`+"\n",
				templ.EscapeString(url.PathEscape(v.Key)), templ.EscapeString(v.Key), templ.EscapeString(v.Type),
				v.Version, v.Subscribers, templ.EscapeString(v.Value))
			if err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</table>\n"); err != nil {
			return err
		}
		if feed {
			if _, err := io.WriteString(w, feedScript); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}
