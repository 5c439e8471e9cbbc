// Package manifest records what a run made available offline and compares
// manifests across runs.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/hupe1980/gooffline/internal/repository"
	"github.com/hupe1980/gooffline/internal/resolve"
)

// Entry is one resolved artifact. The source repository is not recorded,
// so a rerun served from the local repository yields the same entry.
type Entry struct {
	Coordinate string `json:"coordinate"`
	// File is relative to the local repository when it lies inside it.
	File string `json:"file,omitempty"`
}

// FailureEntry is a coordinate that could not be resolved.
type FailureEntry struct {
	Project    string `json:"project"`
	Batch      string `json:"batch"`
	Coordinate string `json:"coordinate"`
	Error      string `json:"error"`
}

// Manifest lists everything a run resolved, sorted by coordinate.
type Manifest struct {
	Projects     []string       `json:"projects"`
	Dependencies []Entry        `json:"dependencies"`
	Plugins      []Entry        `json:"plugins"`
	Failures     []FailureEntry `json:"failures,omitempty"`
}

// Builder accumulates pipeline results of every reactor project.
type Builder struct {
	localRepository string
	projects        []string
	dependencies    *resolve.ArtifactSet
	plugins         *resolve.ArtifactSet
	failures        []FailureEntry
}

// NewBuilder creates a Builder recording files relative to localRepository.
func NewBuilder(localRepository string) *Builder {
	return &Builder{
		localRepository: localRepository,
		dependencies:    resolve.NewArtifactSet(),
		plugins:         resolve.NewArtifactSet(),
	}
}

// Add merges the result of one project.
func (b *Builder) Add(projectID string, r *resolve.Result) {
	b.projects = append(b.projects, projectID)

	for _, a := range r.DependencyArtifacts() {
		b.dependencies.Add(a)
	}

	for _, a := range r.PluginArtifacts() {
		b.plugins.Add(a)
	}

	for _, batch := range []*resolve.BatchResult{r.Plugins, r.Dependencies} {
		for _, f := range batch.Failures {
			b.failures = append(b.failures, FailureEntry{
				Project:    projectID,
				Batch:      batch.Name,
				Coordinate: f.Coordinate.String(),
				Error:      f.Err.Error(),
			})
		}
	}
}

// Build returns the sorted manifest.
func (b *Builder) Build() *Manifest {
	m := &Manifest{
		Projects:     append([]string{}, b.projects...),
		Dependencies: b.entries(b.dependencies),
		Plugins:      b.entries(b.plugins),
		Failures:     append([]FailureEntry(nil), b.failures...),
	}

	sort.Strings(m.Projects)
	sort.SliceStable(m.Failures, func(i, j int) bool {
		if m.Failures[i].Coordinate != m.Failures[j].Coordinate {
			return m.Failures[i].Coordinate < m.Failures[j].Coordinate
		}

		return m.Failures[i].Project < m.Failures[j].Project
	})

	return m
}

func (b *Builder) entries(s *resolve.ArtifactSet) []Entry {
	out := make([]Entry, 0, s.Len())
	for _, a := range s.Artifacts() {
		out = append(out, b.entry(a))
	}

	return out
}

func (b *Builder) entry(a repository.Artifact) Entry {
	file := a.File

	if b.localRepository != "" && file != "" {
		if rel, err := filepath.Rel(b.localRepository, file); err == nil && filepath.IsLocal(rel) {
			file = filepath.ToSlash(rel)
		}
	}

	return Entry{Coordinate: a.Coordinate.String(), File: file}
}

// Marshal serializes m as YAML.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}

	return data, nil
}

// Unmarshal parses a YAML manifest.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	return &m, nil
}

// ReadPrevious returns the raw manifest at path, or nil when none exists.
func ReadPrevious(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided manifest path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	return data, nil
}
