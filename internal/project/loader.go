package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the file name of a module descriptor.
const DescriptorFile = "gooffline.yaml"

// maxReactorDepth bounds module nesting.
const maxReactorDepth = 32

// Parse decodes a descriptor, applies defaults and validates it. Unknown
// keys are rejected so typos do not silently drop dependencies.
func Parse(data []byte) (*Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Project
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty project descriptor")
		}

		return nil, fmt.Errorf("parsing project descriptor: %w", err)
	}

	p.applyDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Load reads the descriptor in dir.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, DescriptorFile)

	data, err := os.ReadFile(path) //nolint:gosec // user-provided project path
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.Dir = dir

	return p, nil
}

func (p *Project) applyDefaults() {
	for i := range p.Plugins {
		if p.Plugins[i].Type == "" {
			p.Plugins[i].Type = PluginType
		}
	}

	for i := range p.Reports {
		if p.Reports[i].Type == "" {
			p.Reports[i].Type = PluginType
		}
	}

	expand := func(repos []Repository) {
		for i := range repos {
			repos[i].URL = os.ExpandEnv(repos[i].URL)
			repos[i].Username = os.ExpandEnv(repos[i].Username)
			repos[i].Password = os.ExpandEnv(repos[i].Password)
		}
	}

	expand(p.Repositories)
	expand(p.PluginRepositories)
}

// Reactor is the set of modules built together in one run.
type Reactor struct {
	// Projects are in build order: a parent precedes its modules.
	Projects []*Project
}

// Modules returns the artifacts produced by the reactor's modules.
func (r *Reactor) Modules() []Artifact {
	out := make([]Artifact, 0, len(r.Projects))
	for _, p := range r.Projects {
		out = append(out, p.Artifact())
	}

	return out
}

// Dirs returns the directories of every module in the reactor.
func (r *Reactor) Dirs() []string {
	out := make([]string, 0, len(r.Projects))
	for _, p := range r.Projects {
		out = append(out, p.Dir)
	}

	return out
}

// LoadReactor loads the descriptor in dir and, recursively, every module it
// lists. Each directory is loaded once even if referenced twice.
func LoadReactor(dir string) (*Reactor, error) {
	r := &Reactor{}
	seen := make(map[string]bool)

	if err := r.load(dir, seen, 0); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Reactor) load(dir string, seen map[string]bool, depth int) error {
	if depth > maxReactorDepth {
		return fmt.Errorf("module nesting deeper than %d at %s", maxReactorDepth, dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving module directory %q: %w", dir, err)
	}

	if seen[abs] {
		return nil
	}

	seen[abs] = true

	p, err := Load(abs)
	if err != nil {
		return err
	}

	r.Projects = append(r.Projects, p)

	for _, m := range p.Modules {
		if err := r.load(filepath.Join(abs, m), seen, depth+1); err != nil {
			return fmt.Errorf("module %q of %s: %w", m, p.ID(), err)
		}
	}

	return nil
}
