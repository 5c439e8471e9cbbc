package filter

import (
	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/project"
)

type moduleKey struct {
	groupID    string
	artifactID string
	version    string
}

// ReactorFilter rejects anything the current reactor builds itself: those
// modules are produced by this run and must never be fetched remotely. It
// filters declared records and also serves as a resolution post-filter.
type ReactorFilter struct {
	modules map[moduleKey]bool
}

// NewReactorFilter creates a filter from the reactor's module artifacts.
func NewReactorFilter(modules []project.Artifact) *ReactorFilter {
	m := make(map[moduleKey]bool, len(modules))
	for _, a := range modules {
		m[moduleKey{a.GroupID, a.ArtifactID, a.Version}] = true
	}

	return &ReactorFilter{modules: m}
}

// Name returns "reactor".
func (f *ReactorFilter) Name() string {
	return "reactor"
}

// Keep rejects records matching a reactor module.
func (f *ReactorFilter) Keep(dep project.Dependency) bool {
	return !f.modules[moduleKey{dep.GroupID, dep.ArtifactID, dep.Version}]
}

// Accept rejects coordinates matching a reactor module.
func (f *ReactorFilter) Accept(c coord.Coordinate) bool {
	return !f.modules[moduleKey{c.GroupID, c.ArtifactID, c.Version}]
}

// Len returns the number of reactor modules.
func (f *ReactorFilter) Len() int {
	return len(f.modules)
}
