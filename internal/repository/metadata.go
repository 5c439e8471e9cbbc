package repository

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Metadata is the artifact-level maven-metadata.xml.
type Metadata struct {
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Latest     string   `xml:"versioning>latest"`
	Release    string   `xml:"versioning>release"`
	Versions   []string `xml:"versioning>versions>version"`
}

// ParseMetadata decodes maven-metadata.xml.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", metadataFile, err)
	}

	for i, v := range m.Versions {
		m.Versions[i] = strings.TrimSpace(v)
	}

	m.Latest = strings.TrimSpace(m.Latest)
	m.Release = strings.TrimSpace(m.Release)

	return &m, nil
}

// Merge folds other into m: versions are unioned in first-seen order and the
// higher latest and release markers win.
func (m *Metadata) Merge(other *Metadata) {
	seen := make(map[string]bool, len(m.Versions))
	for _, v := range m.Versions {
		seen[v] = true
	}

	for _, v := range other.Versions {
		if v != "" && !seen[v] {
			seen[v] = true
			m.Versions = append(m.Versions, v)
		}
	}

	m.Latest = newerOf(m.Latest, other.Latest)
	m.Release = newerOf(m.Release, other.Release)
}
