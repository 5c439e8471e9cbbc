// Package coord defines the Coordinate value that identifies a resolvable
// unit, and the extractors that turn project records into coordinates.
package coord

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultType is the type assigned when none is given.
const DefaultType = "jar"

// Coordinate identifies a resolvable unit. It is comparable: two coordinates
// with equal fields are the same resolution unit and may be used as map keys.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Type       string
	Classifier string
}

// New builds a Coordinate, defaulting an empty type to jar.
func New(groupID, artifactID, version, typ, classifier string) Coordinate {
	if typ == "" {
		typ = DefaultType
	}

	return Coordinate{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    version,
		Type:       typ,
		Classifier: classifier,
	}
}

// Parse reads groupId:artifactId:version,
// groupId:artifactId:type:version or
// groupId:artifactId:type:classifier:version.
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty segment", s)
		}
	}

	switch len(parts) {
	case 3:
		return New(parts[0], parts[1], parts[2], "", ""), nil
	case 4:
		return New(parts[0], parts[1], parts[3], parts[2], ""), nil
	case 5:
		return New(parts[0], parts[1], parts[4], parts[2], parts[3]), nil
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want 3 to 5 colon-separated segments", s)
	}
}

// String renders groupId:artifactId:type[:classifier]:version, the inverse
// of Parse.
func (c Coordinate) String() string {
	if c.Classifier != "" {
		return fmt.Sprintf("%s:%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Type, c.Classifier, c.Version)
	}

	return fmt.Sprintf("%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Type, c.Version)
}

// WithVersion returns a copy of c with the version replaced.
func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = version
	return c
}

// WithType returns a copy of c with the type replaced and the classifier
// cleared. It is used to address the POM of an artifact.
func (c Coordinate) WithType(typ string) Coordinate {
	c.Type = typ
	c.Classifier = ""

	return c
}

// VersionlessKey returns groupId:artifactId:type[:classifier]. Two
// coordinates with the same key are versions of the same artifact.
func (c Coordinate) VersionlessKey() string {
	if c.Classifier != "" {
		return c.GroupID + ":" + c.ArtifactID + ":" + c.Type + ":" + c.Classifier
	}

	return c.GroupID + ":" + c.ArtifactID + ":" + c.Type
}

// SameModule reports whether c has the given groupId, artifactId and version.
func (c Coordinate) SameModule(groupID, artifactID, version string) bool {
	return c.GroupID == groupID && c.ArtifactID == artifactID && c.Version == version
}

// Sort orders coordinates by their string form.
func Sort(cs []Coordinate) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].String() < cs[j].String()
	})
}

// Dedupe removes duplicate coordinates, keeping the first occurrence.
func Dedupe(cs []Coordinate) []Coordinate {
	seen := make(map[Coordinate]struct{}, len(cs))
	out := make([]Coordinate, 0, len(cs))

	for _, c := range cs {
		if _, ok := seen[c]; ok {
			continue
		}

		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out
}
