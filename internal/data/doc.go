// Package data orchestrates the asynchronous data requirements of page nodes.
//
// Each requirement is keyed by a hash of its resolved source. Identical
// sources share one cache entry and one in-flight fetch, while loading and
// error state is tracked per (node, requirement key). Callers render again
// once Wait returns to pick up settled values.
package data
