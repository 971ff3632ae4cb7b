// Package component is a small UI runtime that drives shared state the way a
// component framework would.
//
// A Runtime owns a state.Store and a tree of mounted component instances.
// Each instance is a state.Listener: hooks subscribe it to the entries it
// reads, and a change marks it dirty. Work happens in turns. Events, mounts
// and async completions each run as one serialized turn, after which dirty
// instances whose observed entry versions changed are re-rendered.
//
// Usage:
//
//	rt := component.NewRuntime(component.WithLogger(logger))
//
//	counter := &component.Component{
//	    Name: "counter",
//	    Render: func(c *component.Ctx) templ.Component {
//	        n, set := component.UseGlobalState(c, "count", 0)
//	        c.Handle("increment", func() { set.Update(func(v int) int { return v + 1 }) })
//	        return component.Textf("count: %d", n)
//	    },
//	}
//
//	inst := rt.Mount(counter)
//	rt.Trigger(inst, "increment")
//	fmt.Println(rt.HTML())
//
// Instances re-render independently: a parent re-render does not re-render
// its children.
package component
