package coord

import "github.com/hupe1980/gooffline/internal/project"

// FromDependency copies the coordinate fields of a declared dependency.
// Version ranges pass through unresolved; scope, optional and exclusions are
// dropped, so records differing only in those collapse to one coordinate.
func FromDependency(d project.Dependency) Coordinate {
	return New(d.GroupID, d.ArtifactID, d.Version, d.Type, d.Classifier)
}

// FromArtifact copies the coordinate fields of an already-bound artifact.
func FromArtifact(a project.Artifact) Coordinate {
	return New(a.GroupID, a.ArtifactID, a.Version, a.Type, a.Classifier)
}

// FromDependencies extracts and deduplicates coordinates in input order.
func FromDependencies(deps []project.Dependency) []Coordinate {
	out := make([]Coordinate, 0, len(deps))
	for _, d := range deps {
		out = append(out, FromDependency(d))
	}

	return Dedupe(out)
}

// FromArtifacts extracts and deduplicates coordinates in input order.
func FromArtifacts(artifacts []project.Artifact) []Coordinate {
	out := make([]Coordinate, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, FromArtifact(a))
	}

	return Dedupe(out)
}
