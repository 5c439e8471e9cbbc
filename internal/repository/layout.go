package repository

import (
	"path"
	"strings"

	"github.com/hupe1980/gooffline/internal/coord"
)

const metadataFile = "maven-metadata.xml"

// Extension maps an artifact type to its file extension.
func Extension(typ string) string {
	switch typ {
	case "", "jar", "maven-plugin", "test-jar", "ejb", "ejb-client", "bundle", "java-source", "javadoc":
		return "jar"
	default:
		return typ
	}
}

// classifierFor returns the classifier a type implies when none is set.
func classifierFor(c coord.Coordinate) string {
	if c.Classifier != "" {
		return c.Classifier
	}

	switch c.Type {
	case "test-jar":
		return "tests"
	case "ejb-client":
		return "client"
	case "java-source":
		return "sources"
	case "javadoc":
		return "javadoc"
	default:
		return ""
	}
}

func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

// Path returns the slash-separated repository path of c:
// group/path/artifactId/version/artifactId-version[-classifier].ext.
func Path(c coord.Coordinate) string {
	name := c.ArtifactID + "-" + c.Version
	if cl := classifierFor(c); cl != "" {
		name += "-" + cl
	}

	name += "." + Extension(c.Type)

	return path.Join(groupPath(c.GroupID), c.ArtifactID, c.Version, name)
}

// MetadataPath returns the path of the artifact-level maven-metadata.xml.
func MetadataPath(groupID, artifactID string) string {
	return path.Join(groupPath(groupID), artifactID, metadataFile)
}

// versionDir returns the directory holding all versions of an artifact.
func versionDir(groupID, artifactID string) string {
	return path.Join(groupPath(groupID), artifactID)
}

// pomOf addresses the POM that describes c.
func pomOf(c coord.Coordinate) coord.Coordinate {
	return c.WithType("pom")
}
