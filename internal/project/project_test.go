package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDescriptor writes a gooffline.yaml into dir.
func writeDescriptor(t *testing.T, dir, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(content), 0o600))
}

const appDescriptor = `groupId: org.example
artifactId: app
version: 1.0.0
repositories:
  - id: internal
    url: https://repo.example.org/maven2
dependencies:
  - groupId: org.x
    artifactId: lib
    version: "1.0"
    scope: test
  - groupId: org.x
    artifactId: other
    version: "[1.0,2.0)"
plugins:
  - groupId: org.apache.maven.plugins
    artifactId: maven-compiler-plugin
    version: 3.13.0
reports:
  - groupId: org.apache.maven.plugins
    artifactId: maven-site-plugin
    version: 3.12.1
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(appDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "org.example:app:1.0.0", p.ID())
	require.Len(t, p.Dependencies, 2)
	assert.Equal(t, ScopeTest, p.Dependencies[0].EffectiveScope())
	assert.Equal(t, ScopeCompile, p.Dependencies[1].EffectiveScope())
	assert.Equal(t, DefaultType, p.Dependencies[1].EffectiveType())
	assert.Equal(t, "[1.0,2.0)", p.Dependencies[1].Version)

	require.Len(t, p.Plugins, 1)
	assert.Equal(t, PluginType, p.Plugins[0].Type)
	assert.Equal(t, PluginType, p.Reports[0].Type)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("groupId: a\nartifactId: b\nversion: 1\ndependancies: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing project descriptor")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorContains(t, err, "empty project descriptor")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing project version", "groupId: a\nartifactId: b\n", "groupId, artifactId and version are required"},
		{"dependency without version", "groupId: a\nartifactId: b\nversion: 1\ndependencies:\n  - groupId: x\n    artifactId: y\n", "dependency #1"},
		{"unknown scope", "groupId: a\nartifactId: b\nversion: 1\ndependencies:\n  - {groupId: x, artifactId: y, version: 1, scope: weird}\n", "unknown scope"},
		{"plugin without version", "groupId: a\nartifactId: b\nversion: 1\nplugins:\n  - {groupId: x, artifactId: y}\n", "plugin"},
		{"repository without url", "groupId: a\nartifactId: b\nversion: 1\nrepositories:\n  - {id: x}\n", "need an id and a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParse_ExpandsRepositoryCredentials(t *testing.T) {
	t.Setenv("GOOFFLINE_TEST_USER", "alice")
	t.Setenv("GOOFFLINE_TEST_HOST", "repo.internal")

	p, err := Parse([]byte(`groupId: a
artifactId: b
version: "1"
repositories:
  - id: private
    url: https://${GOOFFLINE_TEST_HOST}/maven
    username: ${GOOFFLINE_TEST_USER}
`))
	require.NoError(t, err)
	assert.Equal(t, "https://repo.internal/maven", p.Repositories[0].URL)
	assert.Equal(t, "alice", p.Repositories[0].Username)
}

func TestProject_RepositoryFallback(t *testing.T) {
	p := &Project{GroupID: "a", ArtifactID: "b", Version: "1"}
	assert.Equal(t, []Repository{CentralRepository}, p.DependencyRepositories())
	assert.Equal(t, []Repository{CentralRepository}, p.PluginRepositoryList())

	p.PluginRepositories = []Repository{{ID: "plugins", URL: "https://plugins.example.org"}}
	assert.Equal(t, "plugins", p.PluginRepositoryList()[0].ID)
}

func TestDependency_Key(t *testing.T) {
	a := Dependency{GroupID: "org.x", ArtifactID: "lib", Version: "1.0", Scope: ScopeTest}
	b := a
	b.Scope = ScopeCompile

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Dependency{GroupID: "org.x", ArtifactID: "lib", Version: "1.0", Scope: ScopeTest}.Key())

	c := a
	c.Exclusions = []Exclusion{{GroupID: "org.y", ArtifactID: "*"}}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestProject_Artifact(t *testing.T) {
	p := &Project{GroupID: "org.y", ArtifactID: "mod1", Version: "2.0"}
	assert.Equal(t, Artifact{GroupID: "org.y", ArtifactID: "mod1", Version: "2.0", Type: "jar"}, p.Artifact())

	p.Packaging = "pom"
	assert.Equal(t, "pom", p.Artifact().Type)
}

func TestScopes(t *testing.T) {
	assert.Equal(t, []string{"compile", "import", "provided", "runtime", "system", "test"}, Scopes())
	assert.True(t, IsValidScope("runtime"))
	assert.False(t, IsValidScope(""))
}

// ---------------------------------------------------------------------------
// Reactor
// ---------------------------------------------------------------------------

func TestLoadReactor(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "groupId: org.y\nartifactId: parent\nversion: \"2.0\"\npackaging: pom\nmodules: [mod1, mod2]\n")
	writeDescriptor(t, filepath.Join(root, "mod1"), "groupId: org.y\nartifactId: mod1\nversion: \"2.0\"\n")
	writeDescriptor(t, filepath.Join(root, "mod2"), `groupId: org.y
artifactId: mod2
version: "2.0"
modules: [../mod1]
dependencies:
  - {groupId: org.y, artifactId: mod1, version: "2.0"}
`)

	r, err := LoadReactor(root)
	require.NoError(t, err)
	require.Len(t, r.Projects, 3)

	ids := make([]string, 0, len(r.Projects))
	for _, p := range r.Projects {
		ids = append(ids, p.ID())
	}

	assert.Equal(t, []string{"org.y:parent:2.0", "org.y:mod1:2.0", "org.y:mod2:2.0"}, ids)
	assert.Contains(t, r.Modules(), Artifact{GroupID: "org.y", ArtifactID: "mod1", Version: "2.0", Type: "jar"})
	assert.Len(t, r.Dirs(), 3)
}

func TestLoadReactor_MissingModule(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "groupId: a\nartifactId: b\nversion: \"1\"\nmodules: [missing]\n")

	_, err := LoadReactor(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "missing"`)
}

func TestLoad_NoDescriptor(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, DescriptorFile)
}
