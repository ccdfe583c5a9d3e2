/*
Package domain contains the core models of the Canopy page interpreter.

It defines the serialized page document (Nodes, Actions, Repeaters, Data
Requirements), the scoped EvaluationContext that expressions read from, and the
ResolvedNode tree handed to rendering collaborators. This package is kept pure
and free of I/O so that adapters and the runtime can share it.

# Key Entities

  - Node: one addressable unit of the page tree (section, atom, component, codeblock).
  - Action: one step of an event-triggered chain.
  - EvaluationContext: the read-only scopes visible to {{ ... }} bindings.
  - ResolvedNode: an effective node with every binding resolved.
  - Snapshot / StoreDiff: copies of the live override and internal-state stores.
*/
package domain
