// Package loader reads page documents from JSON or YAML and checks their
// structure before they reach the interpreter.
package loader
