package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/a-h/templ"
	"github.com/spf13/cobra"

	"github.com/vango-dev/sharedstate/internal/config"
	"github.com/vango-dev/sharedstate/pkg/component"
)

// profile is what the demo's async key loads.
type profile struct {
	Name  string
	Fetch int
}

// demoApp builds the demo tree:
//
//	App            reads count
//	├─ Counter     reads count, handles "inc"
//	├─ Passive     reads count with listening off
//	└─ Panel
//	   ├─ Theme    reads theme, handles "toggle"
//	   └─ Profile  loads profile asynchronously, handles "refetch"
func demoApp(delay time.Duration) *component.Component {
	var fetches atomic.Int32
	loadProfile := func(ctx context.Context) (profile, error) {
		n := int(fetches.Add(1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return profile{}, ctx.Err()
		}
		return profile{Name: "ada", Fetch: n}, nil
	}

	return &component.Component{
		Name: "App",
		Render: func(c *component.Ctx) templ.Component {
			n, _ := component.UseGlobalState(c, "count", 0)
			return component.Textf("count is %d", n)
		},
		Children: []*component.Component{
			{
				Name: "Counter",
				Render: func(c *component.Ctx) templ.Component {
					n, set := component.UseGlobalState(c, "count", 0)
					c.Handle("inc", func() {
						set.Update(func(old int) int { return old + 1 })
					})
					return component.Group(component.Textf("%d ", n), component.Button("inc", "+1"))
				},
			},
			{
				Name: "Passive",
				Render: func(c *component.Ctx) templ.Component {
					n, _ := component.UseGlobalState(c, "count", 0, component.Listening(false))
					return component.Textf("last seen %d", n)
				},
			},
			{
				Name: "Panel",
				Children: []*component.Component{
					{
						Name: "Theme",
						Render: func(c *component.Ctx) templ.Component {
							theme, set := component.UseGlobalState(c, "theme", "light")
							c.Handle("toggle", func() {
								set.Update(func(old string) string {
									if old == "light" {
										return "dark"
									}
									return "light"
								})
							})
							return component.Group(component.Textf("theme %s ", theme), component.Button("toggle", "toggle"))
						},
					},
					{
						Name: "Profile",
						Render: func(c *component.Ctx) templ.Component {
							res := component.UseAsyncGlobalState[profile](c, "profile", loadProfile)
							c.Handle("refetch", res.Refetch)
							switch {
							case res.Loading:
								return component.Text("loading profile")
							case res.Err != nil:
								return component.Textf("profile failed: %v", res.Err)
							default:
								return component.Textf("%s (fetch %d)", res.Data.Name, res.Data.Fetch)
							}
						},
					},
				},
			},
		},
	}
}

var demoNames = []string{"App", "Counter", "Passive", "Panel", "Theme", "Profile"}

func demoCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		clicks int
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render the demo tree and print render counts",
		Long: `Mount the demo component tree, click the counter, toggle the theme,
refetch the async profile, and print how often each component rendered.

Examples:
  sharedstate demo
  sharedstate demo --clicks=10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cfg.Logger(cmd.ErrOrStderr()), clicks, delay)
		},
	}

	cmd.Flags().IntVarP(&clicks, "clicks", "n", 3, "Number of counter clicks")
	cmd.Flags().DurationVar(&delay, "delay", 10*time.Millisecond, "Latency of the async profile load")

	return cmd
}

func runDemo(ctx context.Context, w io.Writer, logger *slog.Logger, clicks int, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt := component.NewRuntime(component.WithLogger(logger))
	rt.Mount(demoApp(delay))

	if err := rt.Wait(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	counter := rt.Find("Counter")
	for i := 0; i < clicks; i++ {
		rt.Trigger(counter, "inc")
	}
	rt.Trigger(rt.Find("Theme"), "toggle")
	rt.Trigger(rt.Find("Profile"), "refetch")

	if err := rt.Wait(ctx); err != nil {
		return fmt.Errorf("refetch: %w", err)
	}

	fmt.Fprintln(w, "renders:")
	for _, name := range demoNames {
		fmt.Fprintf(w, "  %-8s %d\n", name, rt.Find(name).RenderCount())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "store:")
	for _, info := range rt.Store().Snapshots() {
		fmt.Fprintf(w, "  %-14s v%-3d subscribers=%d\n", info.Key, info.Version, info.Subscribers)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rt.HTML())
	return nil
}
