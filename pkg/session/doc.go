/*
Package session keeps live page sessions for long-running hosts such as the
HTTP adapter.

Each session is addressed by an id and accessed under a per-id lock, so two
requests never render or trigger on the same page session at once. Locks are
reference counted and disappear with their last user.
*/
package session
