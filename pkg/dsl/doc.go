/*
Package dsl provides a Go DSL for programmatically constructing Canopy pages.

It lets hosts and tests define pages with a fluent builder instead of JSON or
YAML documents. The builders produce plain domain values, so a built page is
indistinguishable from a loaded one.

Example usage:

	page := dsl.NewPage("home").
		Breakpoint("mobile", 0).
		Breakpoint("desktop", 1024).
		Add(
			dsl.Atom("counter", "text").
				State("count", 0).
				Param("text", "{{ state.count }}"),
			dsl.Atom("inc", "button").
				On("click", dsl.UpdateState("bump", "counter", map[string]any{
					"count": "{{ states.counter.count + 1 }}",
				})),
		)

	loader, err := page.Loader()
	// ... pass loader to canopy.New(canopy.WithLoader(loader))
*/
package dsl
