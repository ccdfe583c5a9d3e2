// Package expr implements the "{{ ... }}" binding language used in page documents.
//
// A binding is a side-effect free read against a Scope: property access, arithmetic,
// loose and strict comparisons, logical fallbacks, the ternary operator and a small
// fixed set of helpers (get, toFixed, toUpperCase, toLowerCase, len, includes).
//
// Resolution never fails. A malformed or unresolvable binding yields nil when it
// is the whole string, and keeps its literal text inside mixed content.
package expr
