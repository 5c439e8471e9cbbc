package repository

import (
	"encoding/xml"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/hupe1980/gooffline/internal/coord"
)

// pomXML is the subset of a POM needed to walk dependencies.
type pomXML struct {
	XMLName    xml.Name   `xml:"project"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Version    string     `xml:"version"`
	Packaging  string     `xml:"packaging"`
	Parent     *pomParent `xml:"parent"`
	Properties properties `xml:"properties"`

	DependencyManagement struct {
		Dependencies []pomDependency `xml:"dependencies>dependency"`
	} `xml:"dependencyManagement"`

	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomDependency struct {
	GroupID    string         `xml:"groupId"`
	ArtifactID string         `xml:"artifactId"`
	Version    string         `xml:"version"`
	Type       string         `xml:"type"`
	Classifier string         `xml:"classifier"`
	Scope      string         `xml:"scope"`
	Optional   string         `xml:"optional"`
	Exclusions []pomExclusion `xml:"exclusions>exclusion"`
}

type pomExclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

// properties decodes <properties> into a flat map keyed by element name.
type properties map[string]string

func (p *properties) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	m := make(map[string]string)

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}

			m[t.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			*p = m
			return nil
		}
	}
}

func parsePOM(data []byte) (*pomXML, error) {
	var p pomXML
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing POM: %w", err)
	}

	return &p, nil
}

func (d pomDependency) optional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

func (d pomDependency) effectiveType() string {
	if d.Type == "" {
		return coord.DefaultType
	}

	return d.Type
}

// managementKey identifies a dependency independent of its version.
func (d pomDependency) managementKey() string {
	return d.GroupID + ":" + d.ArtifactID + ":" + d.effectiveType() + ":" + d.Classifier
}

func (d pomDependency) coordinate() coord.Coordinate {
	return coord.New(d.GroupID, d.ArtifactID, d.Version, d.Type, d.Classifier)
}

// model is a POM merged with its parent chain and interpolated.
type model struct {
	coordinate   coord.Coordinate
	parents      []coord.Coordinate
	properties   map[string]string
	managed      map[string]pomDependency
	dependencies []pomDependency
}

// newModel merges raw over parent. parent may be nil.
func newModel(c coord.Coordinate, raw *pomXML, parent *model) *model {
	m := &model{
		coordinate: c,
		properties: make(map[string]string),
		managed:    make(map[string]pomDependency),
	}

	groupID, version := raw.GroupID, raw.Version

	if raw.Parent != nil {
		if groupID == "" {
			groupID = raw.Parent.GroupID
		}

		if version == "" {
			version = raw.Parent.Version
		}

		m.properties["project.parent.groupId"] = raw.Parent.GroupID
		m.properties["project.parent.artifactId"] = raw.Parent.ArtifactID
		m.properties["project.parent.version"] = raw.Parent.Version
	}

	if parent != nil {
		m.parents = append([]coord.Coordinate{parent.coordinate}, parent.parents...)
		maps.Copy(m.properties, parent.properties)
		maps.Copy(m.managed, parent.managed)
	}

	maps.Copy(m.properties, raw.Properties)

	m.properties["project.groupId"] = groupID
	m.properties["project.artifactId"] = raw.ArtifactID
	m.properties["project.version"] = version
	m.properties["pom.groupId"] = groupID
	m.properties["pom.artifactId"] = raw.ArtifactID
	m.properties["pom.version"] = version

	for _, d := range raw.DependencyManagement.Dependencies {
		d = m.interpolateDependency(d)
		m.managed[d.managementKey()] = d
	}

	// Declared dependencies override inherited ones with the same key.
	byKey := make(map[string]int)

	if parent != nil {
		for _, d := range parent.dependencies {
			byKey[d.managementKey()] = len(m.dependencies)
			m.dependencies = append(m.dependencies, d)
		}
	}

	for _, d := range raw.Dependencies {
		d = m.applyManagement(m.interpolateDependency(d))

		if i, ok := byKey[d.managementKey()]; ok {
			m.dependencies[i] = d
			continue
		}

		byKey[d.managementKey()] = len(m.dependencies)
		m.dependencies = append(m.dependencies, d)
	}

	return m
}

// importBOM adds managed entries from an imported BOM without overriding
// entries already present.
func (m *model) importBOM(bom *model) {
	for k, d := range bom.managed {
		if _, ok := m.managed[k]; !ok {
			m.managed[k] = d
		}
	}

	for i, d := range m.dependencies {
		m.dependencies[i] = m.applyManagement(d)
	}
}

// imports lists the import-scoped BOMs in dependencyManagement.
func (m *model) imports() []pomDependency {
	var out []pomDependency

	for _, d := range m.managed {
		if d.Scope == "import" && d.Type == "pom" {
			out = append(out, d)
		}
	}

	return out
}

func (m *model) applyManagement(d pomDependency) pomDependency {
	managed, ok := m.managed[d.managementKey()]
	if !ok {
		return d
	}

	if d.Version == "" {
		d.Version = managed.Version
	}

	if d.Scope == "" {
		d.Scope = managed.Scope
	}

	if len(d.Exclusions) == 0 {
		d.Exclusions = managed.Exclusions
	}

	return d
}

func (m *model) interpolateDependency(d pomDependency) pomDependency {
	d.GroupID = m.interpolate(d.GroupID)
	d.ArtifactID = m.interpolate(d.ArtifactID)
	d.Version = m.interpolate(d.Version)
	d.Type = m.interpolate(d.Type)
	d.Classifier = m.interpolate(d.Classifier)
	d.Scope = m.interpolate(d.Scope)

	return d
}

var propertyRef = regexp.MustCompile(`\$\{([^}]+)\}`)

const maxInterpolationPasses = 8

// interpolate replaces ${name} references. Unknown references are left as is.
func (m *model) interpolate(s string) string {
	s = strings.TrimSpace(s)

	for range maxInterpolationPasses {
		if !strings.Contains(s, "${") {
			return s
		}

		next := propertyRef.ReplaceAllStringFunc(s, func(ref string) string {
			if v, ok := m.properties[ref[2:len(ref)-1]]; ok {
				return v
			}

			return ref
		})

		if next == s {
			return s
		}

		s = next
	}

	return s
}

// unresolved reports whether s still holds a property reference.
func unresolved(s string) bool {
	return strings.Contains(s, "${")
}

// exclusionSet holds groupId:artifactId patterns; "*" matches any value.
type exclusionSet []pomExclusion

func (e exclusionSet) with(more []pomExclusion) exclusionSet {
	if len(more) == 0 {
		return e
	}

	out := make(exclusionSet, 0, len(e)+len(more))
	out = append(out, e...)

	return append(out, more...)
}

func (e exclusionSet) excludes(groupID, artifactID string) bool {
	for _, x := range e {
		if (x.GroupID == "*" || x.GroupID == groupID) && (x.ArtifactID == "*" || x.ArtifactID == artifactID) {
			return true
		}
	}

	return false
}
