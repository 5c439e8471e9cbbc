package filter

import (
	"strings"

	"github.com/hupe1980/gooffline/internal/project"
)

// Filter is the interface for all dependency filters.
// Filters are pure: Keep depends only on the filter's configuration and the
// given record.
type Filter interface {
	// Name identifies the filter in exclusion reasons.
	Name() string
	// Keep reports whether the record passes the filter.
	Keep(dep project.Dependency) bool
}

// ExcludedDependency records a dependency that was removed by a filter.
type ExcludedDependency struct {
	// Dependency is the excluded record.
	Dependency project.Dependency
	// Reason is a human-readable explanation for the exclusion.
	Reason string
}

// Result holds the outcome of a chain application.
type Result struct {
	// Included are the records that passed every filter, in input order.
	Included []project.Dependency
	// Excluded are the records removed by a filter.
	Excluded []ExcludedDependency
}

// Chain applies multiple filters sequentially, passing the included
// records from each filter as input to the next. A chain is immutable once
// built.
type Chain struct {
	filters []Filter
}

// NewChain creates a filter chain from the given filters. Nil filters are
// skipped, so optional filters can be passed unconditionally.
func NewChain(filters ...Filter) *Chain {
	fs := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}

	return &Chain{filters: fs}
}

// Filters returns a copy of the chain's filters in application order.
func (c *Chain) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Apply deduplicates deps by record equality and runs every filter in order.
// The chain never grows the set: each record is kept iff it satisfies every
// filter's predicate.
func (c *Chain) Apply(deps []project.Dependency) *Result {
	r := &Result{}
	current := dedupe(deps)

	for _, f := range c.filters {
		next := make([]project.Dependency, 0, len(current))

		for _, d := range current {
			if f.Keep(d) {
				next = append(next, d)
			} else {
				r.Excluded = append(r.Excluded, ExcludedDependency{
					Dependency: d,
					Reason:     "excluded by " + f.Name() + " filter",
				})
			}
		}

		current = next
	}

	r.Included = current

	return r
}

// String lists the filter names in order.
func (c *Chain) String() string {
	names := make([]string, 0, len(c.filters))
	for _, f := range c.filters {
		names = append(names, f.Name())
	}

	return "Chain{" + strings.Join(names, ", ") + "}"
}

// dedupe keeps the first occurrence of each record.
func dedupe(deps []project.Dependency) []project.Dependency {
	seen := make(map[string]struct{}, len(deps))
	out := make([]project.Dependency, 0, len(deps))

	for _, d := range deps {
		k := d.Key()
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, d)
	}

	return out
}
