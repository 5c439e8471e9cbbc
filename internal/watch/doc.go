// Package watch re-runs offline resolution whenever a module descriptor of
// the reactor changes. Rapid edits are debounced into a single run.
package watch
