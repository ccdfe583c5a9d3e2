/*
Package ports defines the driven ports (interfaces) for the Canopy interpreter.

These interfaces decouple the resolution pipeline and the action engine from
the host: where page documents come from, where overrides and internal state
live, how data requirements are cached and which collaborators perform side
effects.

# Key Interfaces

  - PageLoader: loads page documents (e.g., from files or memory).
  - OverrideStore / StateStore: per-session keyed stores read by resolution and written by actions.
  - RequirementCache: shared cache of data requirement outcomes (memory or Redis).
  - QueryTransport / Submitter: network collaborators used by fetches and actions.
  - Cart, Navigator, SessionProvider, FormScope, PageDataLoader: host call contracts.
*/
package ports
