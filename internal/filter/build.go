package filter

import (
	"github.com/hupe1980/gooffline/internal/project"
)

// Options holds the include/exclude lists for every dimension and the
// reactor settings.
type Options struct {
	IncludeArtifactIDs []string
	ExcludeArtifactIDs []string
	IncludeGroupIDs    []string
	ExcludeGroupIDs    []string
	IncludeScopes      []string
	ExcludeScopes      []string
	IncludeClassifiers []string
	ExcludeClassifiers []string
	IncludeTypes       []string
	ExcludeTypes       []string
	ExcludeReactor     bool
	ReactorModules     []project.Artifact
}

// BuildChain validates opts and builds the dependency chain in the order
// artifactId, groupId, scope, classifier, type, reactor. The reactor filter
// is omitted when ExcludeReactor is false. The returned ReactorFilter is nil
// in that case.
func BuildChain(opts Options) (*Chain, *ReactorFilter, error) {
	artifactIDs, err := NewArtifactIDFilter(opts.IncludeArtifactIDs, opts.ExcludeArtifactIDs)
	if err != nil {
		return nil, nil, err
	}

	groupIDs, err := NewGroupIDFilter(opts.IncludeGroupIDs, opts.ExcludeGroupIDs)
	if err != nil {
		return nil, nil, err
	}

	scopes, err := NewScopeFilter(opts.IncludeScopes, opts.ExcludeScopes)
	if err != nil {
		return nil, nil, err
	}

	classifiers, err := NewClassifierFilter(opts.IncludeClassifiers, opts.ExcludeClassifiers)
	if err != nil {
		return nil, nil, err
	}

	types, err := NewTypeFilter(opts.IncludeTypes, opts.ExcludeTypes)
	if err != nil {
		return nil, nil, err
	}

	filters := []Filter{artifactIDs, groupIDs, scopes, classifiers, types}

	var reactor *ReactorFilter
	if opts.ExcludeReactor {
		reactor = NewReactorFilter(opts.ReactorModules)
		filters = append(filters, reactor)
	}

	return NewChain(filters...), reactor, nil
}
