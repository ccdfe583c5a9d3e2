/*
Package canopy interprets declarative page documents into resolved node trees ready for a renderer.

A page is a tree of typed nodes (sections, atoms, components and code blocks) whose
params may contain {{ expression }} bindings. Canopy resolves those bindings against
runtime data, layers live, responsive and locale overrides on top of each node,
expands repeaters, evaluates visibility, fetches auxiliary data requirements in the
background and runs event-triggered action chains.

# Concept

Page definitions are immutable. Everything that changes at runtime lives in the
session: the live override store written by actions, the internal state of
nodes, form values and the per-node data requirement state. The host owns the
rendering and the side effects (network, cart, navigation) through the ports in
pkg/ports.

# Key Features

  - Graceful degradation: malformed expressions, failed fetches and panicking
    actions never break the page; they surface as defaults, per-node errors or
    onError branches.
  - Non-blocking resolution: Resolve returns loading placeholders immediately while
    Render waits until the page settles (server-side rendering).
  - Shared requirement cache: in memory by default, Redis for multiple replicas.

# Usage

	eng := canopy.New(
		canopy.WithLoader(loader.NewFileLoader("./pages")),
		canopy.WithQueryTransport(httpadapter.NewQueryClient("https://api.example.com/query")),
	)

	session, err := eng.MountPage(ctx, "home", canopy.WithViewport(390, 844))
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	tree, err := session.Render(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// React to a UI event, then render again.
	report, err := session.Trigger(ctx, "checkout", "click", domain.AuxContext{})
*/
package canopy
