// Package project provides the project model consumed by the resolution
// pipeline: declared dependencies, bound plugin and report artifacts, the
// repositories they are fetched from, and the reactor of modules built
// together.
package project

import (
	"fmt"
	"sort"
	"strings"
)

// Dependency scopes.
const (
	ScopeCompile  = "compile"
	ScopeProvided = "provided"
	ScopeRuntime  = "runtime"
	ScopeTest     = "test"
	ScopeSystem   = "system"
	ScopeImport   = "import"
)

// DefaultType is the packaging assumed when a record declares none.
const DefaultType = "jar"

// PluginType is the default type for plugin and report artifacts.
const PluginType = "maven-plugin"

var scopes = map[string]bool{
	ScopeCompile:  true,
	ScopeProvided: true,
	ScopeRuntime:  true,
	ScopeTest:     true,
	ScopeSystem:   true,
	ScopeImport:   true,
}

// IsValidScope reports whether s is part of the recognized scope vocabulary.
func IsValidScope(s string) bool {
	return scopes[s]
}

// Scopes returns the recognized scope vocabulary in sorted order.
func Scopes() []string {
	out := make([]string, 0, len(scopes))
	for s := range scopes {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}

// Exclusion removes a transitive dependency (and its subtree) by
// groupId and artifactId. "*" matches any value.
type Exclusion struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
}

// Dependency is a declared dependency record. The version may be a range and
// the scope may be unset; neither is resolved here.
type Dependency struct {
	GroupID    string      `yaml:"groupId"`
	ArtifactID string      `yaml:"artifactId"`
	Version    string      `yaml:"version"`
	Scope      string      `yaml:"scope,omitempty"`
	Type       string      `yaml:"type,omitempty"`
	Classifier string      `yaml:"classifier,omitempty"`
	Optional   bool        `yaml:"optional,omitempty"`
	Exclusions []Exclusion `yaml:"exclusions,omitempty"`
}

// EffectiveScope returns the scope, treating an unset scope as compile.
func (d Dependency) EffectiveScope() string {
	if d.Scope == "" {
		return ScopeCompile
	}

	return d.Scope
}

// EffectiveType returns the type, treating an unset type as jar.
func (d Dependency) EffectiveType() string {
	if d.Type == "" {
		return DefaultType
	}

	return d.Type
}

// Key identifies the record over every field. Two records with equal keys
// are the same record.
func (d Dependency) Key() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s:%s:%s:%s:%s:%s:%t",
		d.GroupID, d.ArtifactID, d.Version, d.Scope, d.Type, d.Classifier, d.Optional)

	for _, e := range d.Exclusions {
		fmt.Fprintf(&b, "!%s:%s", e.GroupID, e.ArtifactID)
	}

	return b.String()
}

// String returns groupId:artifactId:version for log output.
func (d Dependency) String() string {
	return d.GroupID + ":" + d.ArtifactID + ":" + d.Version
}

// Artifact is an artifact the project model has already bound to an exact
// version, such as a build plugin or a report plugin.
type Artifact struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Version    string `yaml:"version"`
	Type       string `yaml:"type,omitempty"`
	Classifier string `yaml:"classifier,omitempty"`
}

// String returns groupId:artifactId:version for log output.
func (a Artifact) String() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.Version
}

// Repository is a remote repository declaration.
type Repository struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// CentralRepository is used when a project declares no repositories.
var CentralRepository = Repository{
	ID:  "central",
	URL: "https://repo.maven.apache.org/maven2",
}

// Project is a single module descriptor.
type Project struct {
	GroupID            string       `yaml:"groupId"`
	ArtifactID         string       `yaml:"artifactId"`
	Version            string       `yaml:"version"`
	Packaging          string       `yaml:"packaging,omitempty"`
	Repositories       []Repository `yaml:"repositories,omitempty"`
	PluginRepositories []Repository `yaml:"pluginRepositories,omitempty"`
	Dependencies       []Dependency `yaml:"dependencies,omitempty"`
	Plugins            []Artifact   `yaml:"plugins,omitempty"`
	Reports            []Artifact   `yaml:"reports,omitempty"`
	Modules            []string     `yaml:"modules,omitempty"`

	// Dir is the directory the descriptor was loaded from.
	Dir string `yaml:"-"`
}

// ID returns groupId:artifactId:version.
func (p *Project) ID() string {
	return p.GroupID + ":" + p.ArtifactID + ":" + p.Version
}

// Artifact returns the artifact this module produces.
func (p *Project) Artifact() Artifact {
	typ := p.Packaging
	if typ == "" {
		typ = DefaultType
	}

	return Artifact{
		GroupID:    p.GroupID,
		ArtifactID: p.ArtifactID,
		Version:    p.Version,
		Type:       typ,
	}
}

// DependencyRepositories returns the repositories used for the project's
// dependencies, falling back to Maven Central.
func (p *Project) DependencyRepositories() []Repository {
	if len(p.Repositories) == 0 {
		return []Repository{CentralRepository}
	}

	return p.Repositories
}

// PluginRepositoryList returns the repositories used for plugins and
// reports, falling back to Maven Central.
func (p *Project) PluginRepositoryList() []Repository {
	if len(p.PluginRepositories) == 0 {
		return []Repository{CentralRepository}
	}

	return p.PluginRepositories
}

// Validate checks that the descriptor and every record carry the required
// coordinate fields.
func (p *Project) Validate() error {
	if p.GroupID == "" || p.ArtifactID == "" || p.Version == "" {
		return fmt.Errorf("project %q: groupId, artifactId and version are required", p.ID())
	}

	for i, d := range p.Dependencies {
		if d.GroupID == "" || d.ArtifactID == "" || d.Version == "" {
			return fmt.Errorf("project %s: dependency #%d (%s): groupId, artifactId and version are required", p.ID(), i+1, d)
		}

		if d.Scope != "" && !IsValidScope(d.Scope) {
			return fmt.Errorf("project %s: dependency %s: unknown scope %q", p.ID(), d, d.Scope)
		}
	}

	for _, list := range [][]Artifact{p.Plugins, p.Reports} {
		for _, a := range list {
			if a.GroupID == "" || a.ArtifactID == "" || a.Version == "" {
				return fmt.Errorf("project %s: plugin %s: groupId, artifactId and version are required", p.ID(), a)
			}
		}
	}

	for _, list := range [][]Repository{p.Repositories, p.PluginRepositories} {
		for _, r := range list {
			if r.ID == "" || r.URL == "" {
				return fmt.Errorf("project %s: repository entries need an id and a url", p.ID())
			}
		}
	}

	return nil
}
