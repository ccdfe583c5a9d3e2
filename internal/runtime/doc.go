// Package runtime resolves page nodes into the trees handed to the renderer.
//
// For each node the pipeline computes the effective node (base definition plus
// live, responsive and locale overrides), materializes its internal state,
// asks the data orchestrator for its requirements, gates it through the
// visibility evaluator and finally resolves its bindings. Sections fan out
// their children, either static or generated by a repeater, and each child
// re-enters the same pipeline.
package runtime
