package component

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/vango-dev/sharedstate/pkg/state"
)

func newTestRuntime() *Runtime {
	return NewRuntime(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func counter(name, key string, opts ...HookOption) *Component {
	return &Component{
		Name: name,
		Render: func(c *Ctx) templ.Component {
			n, set := UseGlobalState(c, key, 0, opts...)
			c.Handle("inc", func() { set.Update(func(old int) int { return old + 1 }) })
			c.Handle("reset", func() { set.Set(0) })
			return Group(Textf("%s=%d", key, n), Button("inc", "+"))
		},
	}
}

func waitLoads(t *testing.T, r *Runtime) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("waiting for loads: %v", err)
	}
}

func TestNestedHierarchyRenderCounts(t *testing.T) {
	r := newTestRuntime()
	app := &Component{
		Name: "App",
		Render: func(c *Ctx) templ.Component {
			n, _ := UseGlobalState(c, "A", 0)
			return Textf("app sees %d", n)
		},
		Children: []*Component{
			counter("CounterA", "A"),
			counter("QuietA", "A", Listening(false)),
			{
				Name: "Section",
				Children: []*Component{
					counter("CounterB", "B"),
					counter("ReaderB", "B"),
				},
			},
		},
	}
	r.Mount(app)

	names := []string{"App", "CounterA", "QuietA", "Section", "CounterB", "ReaderB"}
	for _, name := range names {
		if got := r.Find(name).RenderCount(); got != 1 {
			t.Errorf("Expected %s rendered once after mount, got %d", name, got)
		}
	}

	counterA := r.Find("CounterA")
	for i := 0; i < 3; i++ {
		if !r.Trigger(counterA, "inc") {
			t.Fatal("Expected inc handler")
		}
	}

	want := map[string]int{
		"App":      4,
		"CounterA": 4,
		"QuietA":   1,
		"Section":  1,
		"CounterB": 1,
		"ReaderB":  1,
	}
	for name, n := range want {
		if got := r.Find(name).RenderCount(); got != n {
			t.Errorf("Expected %s to render %d times, got %d", name, n, got)
		}
	}

	if got := state.MustLookup(r.Store(), "A", 0).Get(); got != 3 {
		t.Errorf("Expected A=3, got %d", got)
	}

	r.Trigger(r.Find("ReaderB"), "inc")
	if got := r.Find("CounterB").RenderCount(); got != 2 {
		t.Errorf("Expected CounterB to re-render for B, got %d", got)
	}
	if got := r.Find("App").RenderCount(); got != 4 {
		t.Errorf("Expected App untouched by B, got %d", got)
	}
}

// node reads key and handles "inc". With to set, "inc" stores *to instead of
// incrementing.
func node(name, key string, listening bool, to *int, children ...*Component) *Component {
	return &Component{
		Name: name,
		Render: func(c *Ctx) templ.Component {
			n, set := UseGlobalState(c, key, 0, Listening(listening))
			c.Handle("inc", func() {
				if to != nil {
					set.Set(*to)
					return
				}
				set.Update(func(old int) int { return old + 1 })
			})
			return Textf("%s %s=%d", name, key, n)
		},
		Children: children,
	}
}

func TestPassiveParentWithListeningChildren(t *testing.T) {
	r := newTestRuntime()
	thirteen := 13
	r.Mount(&Component{
		Name: "Root",
		Children: []*Component{
			node("1-", "A", true, nil,
				node("1-1-", "B", true, nil,
					node("1-1-1-", "A", false, nil),
					node("1-1-2-", "A", true, nil),
				),
				node("1-2-", "A", true, nil,
					node("1-2-1-", "B", false, nil),
					node("1-2-2-", "B", true, nil),
				),
			),
			node("2-", "B", false, nil,
				node("2-1-", "A", true, nil),
				node("2-2-", "B", true, &thirteen),
			),
		},
	})

	click := func(name string, times int) func() {
		return func() {
			for i := 0; i < times; i++ {
				if !r.Trigger(r.Find(name), "inc") {
					t.Fatalf("Expected inc handler on %s", name)
				}
			}
		}
	}

	steps := []struct {
		name string
		act  func()
		want map[string]int
		a, b int
	}{
		{
			name: "mount",
			act:  func() {},
			want: map[string]int{
				"1-": 1, "1-1-": 1, "1-1-1-": 1, "1-1-2-": 1, "1-2-": 1,
				"1-2-1-": 1, "1-2-2-": 1, "2-": 1, "2-1-": 1, "2-2-": 1,
			},
		},
		{
			name: "B three times from the passive parent",
			act:  click("2-", 3),
			want: map[string]int{
				"1-": 1, "1-1-": 4, "1-1-1-": 1, "1-1-2-": 1, "1-2-": 1,
				"1-2-1-": 1, "1-2-2-": 4, "2-": 1, "2-1-": 1, "2-2-": 4,
			},
			b: 3,
		},
		{
			name: "A once from the top",
			act:  click("1-", 1),
			want: map[string]int{
				"1-": 2, "1-1-": 4, "1-1-1-": 1, "1-1-2-": 2, "1-2-": 2,
				"1-2-1-": 1, "1-2-2-": 4, "2-": 1, "2-1-": 2, "2-2-": 4,
			},
			a: 1, b: 3,
		},
		{
			name: "A again from a leaf",
			act:  click("1-1-2-", 1),
			want: map[string]int{
				"1-": 3, "1-1-": 4, "1-1-1-": 1, "1-1-2-": 3, "1-2-": 3,
				"1-2-1-": 1, "1-2-2-": 4, "2-": 1, "2-1-": 3, "2-2-": 4,
			},
			a: 2, b: 3,
		},
		{
			name: "refresh a single passive reader",
			act:  func() { r.Refresh(r.Find("1-2-1-")) },
			want: map[string]int{
				"1-": 3, "1-1-": 4, "1-1-1-": 1, "1-1-2-": 3, "1-2-": 3,
				"1-2-1-": 2, "1-2-2-": 4, "2-": 1, "2-1-": 3, "2-2-": 4,
			},
			a: 2, b: 3,
		},
		{
			name: "B set to a fixed value",
			act:  click("2-2-", 1),
			want: map[string]int{
				"1-": 3, "1-1-": 5, "1-1-1-": 1, "1-1-2-": 3, "1-2-": 3,
				"1-2-1-": 2, "1-2-2-": 5, "2-": 1, "2-1-": 3, "2-2-": 5,
			},
			a: 2, b: 13,
		},
		{
			name: "B set to the same value",
			act:  click("2-2-", 1),
			want: map[string]int{
				"1-": 3, "1-1-": 5, "1-1-1-": 1, "1-1-2-": 3, "1-2-": 3,
				"1-2-1-": 2, "1-2-2-": 5, "2-": 1, "2-1-": 3, "2-2-": 5,
			},
			a: 2, b: 13,
		},
	}

	for _, step := range steps {
		step.act()
		for name, n := range step.want {
			if got := r.Find(name).RenderCount(); got != n {
				t.Errorf("%s: expected %s to render %d times, got %d", step.name, name, n, got)
			}
		}
		if got := state.MustLookup(r.Store(), "A", 0).Get(); got != step.a {
			t.Errorf("%s: expected A=%d, got %d", step.name, step.a, got)
		}
		if got := state.MustLookup(r.Store(), "B", 0).Get(); got != step.b {
			t.Errorf("%s: expected B=%d, got %d", step.name, step.b, got)
		}
	}

	html := r.HTML()
	for _, text := range []string{"1-1-1- A=0", "1-2-1- B=3", "2- B=0", "2-1- A=2", "2-2- B=13"} {
		if !strings.Contains(html, text) {
			t.Errorf("Expected %q in %s", text, html)
		}
	}
}

func TestEqualWriteDoesNotRender(t *testing.T) {
	r := newTestRuntime()
	inst := r.Mount(counter("Counter", "X"))

	r.Trigger(inst, "reset")
	if got := inst.RenderCount(); got != 1 {
		t.Errorf("Expected no re-render for equal write, got %d renders", got)
	}
}

func TestUnmountStopsUpdates(t *testing.T) {
	r := newTestRuntime()
	a := r.Mount(counter("A", "X"))
	b := r.Mount(counter("B", "X"))

	entry := state.MustLookup(r.Store(), "X", 0)
	if entry.Subscribers() != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", entry.Subscribers())
	}

	r.Unmount(b)
	if b.Mounted() {
		t.Error("Expected b unmounted")
	}
	if entry.Subscribers() != 1 {
		t.Errorf("Expected 1 subscriber after unmount, got %d", entry.Subscribers())
	}

	r.Trigger(a, "inc")
	if got := b.RenderCount(); got != 1 {
		t.Errorf("Expected unmounted instance not to render, got %d", got)
	}
	if got := a.RenderCount(); got != 2 {
		t.Errorf("Expected a to render twice, got %d", got)
	}
	if r.Find("B") != nil {
		t.Error("Expected B gone from the tree")
	}
}

func TestUnmountChildren(t *testing.T) {
	r := newTestRuntime()
	root := r.Mount(&Component{
		Name:     "Root",
		Children: []*Component{counter("Child", "X")},
	})
	child := r.Find("Child")

	r.Unmount(root)
	if child.Mounted() {
		t.Error("Expected child unmounted with its parent")
	}
	if n := state.MustLookup(r.Store(), "X", 0).Subscribers(); n != 0 {
		t.Errorf("Expected 0 subscribers, got %d", n)
	}
}

func TestRemountHasNewIdentity(t *testing.T) {
	r := newTestRuntime()
	c := counter("Counter", "X")

	first := r.Mount(c)
	r.Unmount(first)
	second := r.Mount(c)

	if first.ID() == second.ID() {
		t.Error("Expected a new listener identity on remount")
	}
	if second.RenderCount() != 1 {
		t.Errorf("Expected fresh render count, got %d", second.RenderCount())
	}
}

func TestDynamicListening(t *testing.T) {
	r := newTestRuntime()
	var listening atomic.Bool
	reader := r.Mount(&Component{
		Name: "Reader",
		Render: func(c *Ctx) templ.Component {
			n, _ := UseGlobalState(c, "X", 0, Listening(listening.Load()))
			return Textf("%d", n)
		},
	})
	writer := r.Mount(counter("Writer", "X"))

	r.Trigger(writer, "inc")
	if got := reader.RenderCount(); got != 1 {
		t.Errorf("Expected no render while not listening, got %d", got)
	}

	listening.Store(true)
	r.Refresh(reader)
	r.Trigger(writer, "inc")
	if got := reader.RenderCount(); got != 3 {
		t.Errorf("Expected render after listening again, got %d", got)
	}
	if html := r.HTML(); !strings.Contains(html, `data-renders="3">2</div>`) {
		t.Errorf("Expected reader to show 2, got %s", html)
	}
}

func TestKeyChangeMovesSubscription(t *testing.T) {
	r := newTestRuntime()
	key := "X"
	inst := r.Mount(&Component{
		Name: "Reader",
		Render: func(c *Ctx) templ.Component {
			n, _ := UseGlobalState(c, key, 0)
			return Textf("%d", n)
		},
	})

	x := state.MustLookup(r.Store(), "X", 0)
	key = "Y"
	r.Refresh(inst)
	y := state.MustLookup(r.Store(), "Y", 0)

	if x.Subscribers() != 0 || y.Subscribers() != 1 {
		t.Errorf("Expected subscription moved to Y, got X=%d Y=%d", x.Subscribers(), y.Subscribers())
	}

	r.Dispatch(func() { x.SetValue(9) })
	if got := inst.RenderCount(); got != 2 {
		t.Errorf("Expected old key not to trigger renders, got %d", got)
	}
	r.Dispatch(func() { y.SetValue(9) })
	if got := inst.RenderCount(); got != 3 {
		t.Errorf("Expected new key to trigger a render, got %d", got)
	}
}

func TestHooksOnSameKeyAreIndependent(t *testing.T) {
	r := newTestRuntime()
	dual := r.Mount(&Component{
		Name: "Dual",
		Render: func(c *Ctx) templ.Component {
			live, _ := UseGlobalState(c, "X", 0)
			seen, _ := UseGlobalState(c, "X", 0, Listening(false))
			return Textf("%d/%d", live, seen)
		},
	})
	writer := r.Mount(counter("Writer", "X"))

	x := state.MustLookup(r.Store(), "X", 0)
	if n := x.Subscribers(); n != 2 {
		t.Errorf("Expected listening hook and writer subscribed, got %d", n)
	}

	r.Trigger(writer, "inc")
	if got := dual.RenderCount(); got != 2 {
		t.Errorf("Expected the listening hook to re-render Dual, got %d renders", got)
	}
	if html := r.HTML(); !strings.Contains(html, `data-renders="2">1/1</div>`) {
		t.Errorf("Expected both hooks to read 1, got %s", html)
	}
}

func TestKeyMoveKeepsSiblingHook(t *testing.T) {
	r := newTestRuntime()
	key := "X"
	inst := r.Mount(&Component{
		Name: "Pair",
		Render: func(c *Ctx) templ.Component {
			fixed, _ := UseGlobalState(c, "X", 0)
			moving, _ := UseGlobalState(c, key, 0)
			return Textf("%d %d", fixed, moving)
		},
	})

	key = "Y"
	r.Refresh(inst)

	x := state.MustLookup(r.Store(), "X", 0)
	y := state.MustLookup(r.Store(), "Y", 0)
	if x.Subscribers() != 1 || y.Subscribers() != 1 {
		t.Errorf("Expected one subscriber on each key, got X=%d Y=%d", x.Subscribers(), y.Subscribers())
	}

	r.Dispatch(func() { x.SetValue(5) })
	if got := inst.RenderCount(); got != 3 {
		t.Errorf("Expected X to still re-render Pair, got %d renders", got)
	}
	r.Dispatch(func() { y.SetValue(7) })
	if got := inst.RenderCount(); got != 4 {
		t.Errorf("Expected Y to re-render Pair, got %d renders", got)
	}
}

func TestUnsetHook(t *testing.T) {
	r := newTestRuntime()
	var seenOK []bool
	inst := r.Mount(&Component{
		Name: "Name",
		Render: func(c *Ctx) templ.Component {
			name, ok, set := UseGlobalStateUnset[string](c, "name")
			seenOK = append(seenOK, ok)
			c.Handle("set", func() { set.Set("ada") })
			if !ok {
				return Text("unset")
			}
			return Text(name)
		},
	})

	if !r.Store().Has("name") {
		t.Error("Expected the unset entry to exist in the store")
	}
	if html := r.HTML(); !strings.Contains(html, ">unset</div>") {
		t.Errorf("Expected unset output, got %s", html)
	}

	r.Trigger(inst, "set")
	if got := inst.RenderCount(); got != 2 {
		t.Errorf("Expected render after first set, got %d", got)
	}
	if len(seenOK) != 2 || seenOK[0] || !seenOK[1] {
		t.Errorf("Expected ok false then true, got %v", seenOK)
	}
	if html := r.HTML(); !strings.Contains(html, ">ada</div>") {
		t.Errorf("Expected ada, got %s", html)
	}
}

func TestRefreshForcesRender(t *testing.T) {
	r := newTestRuntime()
	inst := r.Mount(counter("Counter", "X"))
	r.Refresh(inst)
	if got := inst.RenderCount(); got != 2 {
		t.Errorf("Expected 2 renders, got %d", got)
	}
}

func TestHookOrderPanics(t *testing.T) {
	r := newTestRuntime()
	swap := false
	inst := r.Mount(&Component{
		Name: "Fickle",
		Render: func(c *Ctx) templ.Component {
			if swap {
				UseAsyncGlobalState[int](c, "X", nil)
			} else {
				UseGlobalState(c, "X", 0)
			}
			return nil
		},
	})

	swap = true
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on changed hook order")
		}
	}()
	r.Refresh(inst)
}

func TestTriggerUnknownEvent(t *testing.T) {
	r := newTestRuntime()
	inst := r.Mount(counter("Counter", "X"))
	if r.Trigger(inst, "nope") {
		t.Error("Expected no handler for unknown event")
	}
}

func TestAsyncLoadRendersResult(t *testing.T) {
	r := newTestRuntime()
	release := make(chan struct{})
	var calls atomic.Int32

	inst := r.Mount(&Component{
		Name: "Data",
		Render: func(c *Ctx) templ.Component {
			res := UseAsyncGlobalState[string](c, "X", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "OK", nil
			})
			c.Handle("refetch", res.Refetch)
			switch {
			case res.Loading:
				return Text("loading")
			case res.Err != nil:
				return Textf("error: %v", res.Err)
			default:
				return Textf("data: %s", res.Data)
			}
		},
	})

	if !strings.Contains(r.HTML(), "loading") {
		t.Errorf("Expected loading state, got %s", r.HTML())
	}

	close(release)
	waitLoads(t, r)

	if html := r.HTML(); !strings.Contains(html, "data: OK") {
		t.Errorf("Expected data OK, got %s", html)
	}
	if got := inst.RenderCount(); got != 2 {
		t.Errorf("Expected 2 renders, got %d", got)
	}

	r.Trigger(inst, "refetch")
	waitLoads(t, r)

	if got := calls.Load(); got != 2 {
		t.Errorf("Expected 2 loader calls after refetch, got %d", got)
	}
	if html := r.HTML(); !strings.Contains(html, "data: OK") {
		t.Errorf("Expected data OK after refetch, got %s", html)
	}
}

func TestAsyncSharedAcrossComponents(t *testing.T) {
	r := newTestRuntime()
	var calls atomic.Int32
	loader := func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	}
	view := func(name string) *Component {
		return &Component{
			Name: name,
			Render: func(c *Ctx) templ.Component {
				res := UseAsyncGlobalState[int](c, "X", loader)
				return Textf("%v %d", res.Loading, res.Data)
			},
		}
	}

	r.Mount(&Component{Name: "Root", Children: []*Component{view("One"), view("Two")}})
	waitLoads(t, r)

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single load shared by both components, got %d", got)
	}
	for _, name := range []string{"One", "Two"} {
		if got := r.Find(name).RenderCount(); got != 2 {
			t.Errorf("Expected %s to render twice, got %d", name, got)
		}
	}
}

func TestAsyncErrorRenders(t *testing.T) {
	r := newTestRuntime()
	boom := errors.New("boom")
	var seen error
	r.Mount(&Component{
		Name: "Data",
		Render: func(c *Ctx) templ.Component {
			res := UseAsyncGlobalState[int](c, "X", func(context.Context) (int, error) {
				return 0, boom
			})
			seen = res.Err
			return nil
		},
	})
	waitLoads(t, r)

	r.Dispatch(func() {
		if !errors.Is(seen, boom) {
			t.Errorf("Expected boom, got %v", seen)
		}
	})
}

func TestHTMLEscapesAndNests(t *testing.T) {
	r := newTestRuntime()
	r.Mount(&Component{
		Name: "Root",
		Render: func(c *Ctx) templ.Component {
			return Text("<b>")
		},
		Children: []*Component{{Name: "Leaf"}},
	})

	html := r.HTML()
	want := `<div data-component="Root" data-renders="1">&lt;b&gt;<div data-component="Leaf" data-renders="1"></div></div>`
	if html != want {
		t.Errorf("Expected %s, got %s", want, html)
	}
}
