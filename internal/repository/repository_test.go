package repository

import (
	"context"
	"crypto/sha1" //nolint:gosec // test fixture checksums
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/project"
)

// fakeRepo serves files from memory and counts requests per path.
type fakeRepo struct {
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

func (f *fakeRepo) count(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hits[p]
}

// newFakeRepo starts a test HTTP server for files. A .sha1 sidecar is added
// for every file that does not already have one.
func newFakeRepo(t *testing.T, files map[string]string) (*httptest.Server, *fakeRepo) {
	t.Helper()

	all := make(map[string]string, 2*len(files))
	for p, content := range files {
		all[p] = content
	}

	for p, content := range files {
		if strings.HasSuffix(p, ".sha1") {
			continue
		}

		if _, ok := all[p+".sha1"]; !ok {
			all[p+".sha1"] = sha1Hex(content)
		}
	}

	repo := &fakeRepo{files: all, hits: make(map[string]int)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")

		repo.mu.Lock()
		repo.hits[p]++
		content, ok := repo.files[p]
		repo.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(content))
	}))
	t.Cleanup(srv.Close)

	return srv, repo
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // test fixture checksums
	return hex.EncodeToString(sum[:])
}

func pomXMLDoc(groupID, artifactID, version, body string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
%s
</project>
`, groupID, artifactID, version, body)
}

func newTestResolver(t *testing.T, srv *httptest.Server, opts Options) *Resolver {
	t.Helper()

	h, err := NewHTTPTransport(HTTPOptions{})
	require.NoError(t, err)

	if opts.LocalRepository == "" {
		opts.LocalRepository = t.TempDir()
	}

	s, err := NewSession(NewMultiTransport(h, nil), opts)
	require.NoError(t, err)

	var remotes []Repository
	if srv != nil {
		remotes = []Repository{{ID: "test", URL: srv.URL}}
	}

	return s.Context(remotes)
}

func coordStrings(artifacts []Artifact) []string {
	out := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a.Coordinate.String())
	}

	sort.Strings(out)

	return out
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

func TestPath(t *testing.T) {
	tests := []struct {
		c    coord.Coordinate
		want string
	}{
		{coord.New("org.x", "lib", "1.0", "", ""), "org/x/lib/1.0/lib-1.0.jar"},
		{coord.New("org.x", "lib", "1.0", "pom", ""), "org/x/lib/1.0/lib-1.0.pom"},
		{coord.New("org.x", "lib", "1.0", "jar", "sources"), "org/x/lib/1.0/lib-1.0-sources.jar"},
		{coord.New("org.x", "lib", "1.0", "test-jar", ""), "org/x/lib/1.0/lib-1.0-tests.jar"},
		{coord.New("org.x", "plugin", "3.1", "maven-plugin", ""), "org/x/plugin/3.1/plugin-3.1.jar"},
		{coord.New("com.acme.tools", "dist", "2", "zip", "bin"), "com/acme/tools/dist/2/dist-2-bin.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Path(tt.c))
		})
	}

	assert.Equal(t, "org/x/lib/maven-metadata.xml", MetadataPath("org.x", "lib"))
}

func TestFromProject(t *testing.T) {
	got := FromProject([]project.Repository{{ID: "central", URL: "https://repo", Username: "u", Password: "p"}})
	require.Len(t, got, 1)
	assert.Equal(t, Repository{ID: "central", URL: "https://repo", Username: "u", Password: "p"}, got[0])
	assert.Equal(t, "central (https://repo)", got[0].String())
}

// ---------------------------------------------------------------------------
// Versions
// ---------------------------------------------------------------------------

func TestIsDynamic(t *testing.T) {
	assert.True(t, IsDynamic("[1.0,2.0)"))
	assert.True(t, IsDynamic("(,1.0]"))
	assert.True(t, IsDynamic("LATEST"))
	assert.True(t, IsDynamic("RELEASE"))
	assert.False(t, IsDynamic("1.0"))
	assert.False(t, IsDynamic("1.0-SNAPSHOT"))
}

func TestSelectVersion(t *testing.T) {
	candidates := []string{"1.0", "1.2", "1.5", "2.0", "2.1-beta", "not-a-version"}

	tests := []struct {
		expr string
		want string
	}{
		{"[1.0,2.0)", "1.5"},
		{"[1.0,2.0]", "2.0"},
		{"[1.5,)", "2.0"},
		{"(,1.2]", "1.2"},
		{"(,1.2)", "1.0"},
		{"(1.0,1.5)", "1.2"},
		{"[1.2]", "1.2"},
		{"(,1.0],[1.5,1.9]", "1.5"},
		{"3.0", "3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := SelectVersion(tt.expr, candidates, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectVersion_MavenQualifiers(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		candidates []string
		want       string
	}{
		{"jre qualifier", "[30.0,32.0)", []string{"30.1-jre", "31.1-jre", "32.0.0-jre", "31.1-android"}, "31.1-jre"},
		{"Final suffix", "[5.0,6.0)", []string{"5.4.1.Final", "5.6.15.Final", "6.0.0.Final"}, "5.6.15.Final"},
		{"RELEASE suffix", "[5.0,5.3)", []string{"5.2.9.RELEASE", "5.3.1.RELEASE"}, "5.2.9.RELEASE"},
		{"four components", "[1.2.3,1.2.4)", []string{"1.2.3.4", "1.2.3.10", "1.2.4"}, "1.2.3.10"},
		{"snapshot skipped", "[1.0,)", []string{"1.0", "1.1-SNAPSHOT"}, "1.0"},
		{"snapshot bound", "[1.1-SNAPSHOT,)", []string{"1.0", "1.1-SNAPSHOT"}, "1.1-SNAPSHOT"},
		{"exact with qualifier", "[1.0.Final]", []string{"1.0", "1.1"}, "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectVersion(tt.expr, tt.candidates, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	ordered := []string{
		"1.0-alpha1", "1.0-beta", "1.0-beta-2", "1.0-rc1", "1.0-SNAPSHOT",
		"1.0", "1.0-sp1", "1.0-android", "1.0-jre", "1.0.0.1", "1.0.1", "1.1",
	}

	for i := 1; i < len(ordered); i++ {
		lo, err := ParseVersion(ordered[i-1])
		require.NoError(t, err)
		hi, err := ParseVersion(ordered[i])
		require.NoError(t, err)

		assert.Equal(t, -1, lo.Compare(hi), "%s < %s", ordered[i-1], ordered[i])
		assert.Equal(t, 1, hi.Compare(lo), "%s > %s", ordered[i], ordered[i-1])
	}

	for _, same := range [][2]string{{"1.0", "1.0.0"}, {"1.0", "1.0.Final"}, {"2.0.GA", "2"}, {"3.1.RELEASE", "3.1.0"}} {
		a, err := ParseVersion(same[0])
		require.NoError(t, err)
		b, err := ParseVersion(same[1])
		require.NoError(t, err)
		assert.Equal(t, 0, a.Compare(b), "%s == %s", same[0], same[1])
	}

	_, err := ParseVersion("not-a-version")
	assert.Error(t, err)
}

func TestVersion_CompareProperties(t *testing.T) {
	qualifiers := []string{"", "-alpha1", "-beta", "-rc2", "-SNAPSHOT", ".Final", "-jre", "-sp1"}

	gen := rapid.Custom(func(t *rapid.T) string {
		parts := rapid.SliceOfN(rapid.IntRange(0, 20), 1, 5).Draw(t, "parts")

		nums := make([]string, len(parts))
		for i, p := range parts {
			nums[i] = fmt.Sprint(p)
		}

		return strings.Join(nums, ".") + rapid.SampledFrom(qualifiers).Draw(t, "qualifier")
	})

	rapid.Check(t, func(t *rapid.T) {
		a, err := ParseVersion(gen.Draw(t, "a"))
		require.NoError(t, err)
		b, err := ParseVersion(gen.Draw(t, "b"))
		require.NoError(t, err)

		if a.Compare(b) != -b.Compare(a) {
			t.Fatalf("compare not antisymmetric: %s vs %s", a, b)
		}

		if a.Compare(a) != 0 {
			t.Fatalf("%s not equal to itself", a)
		}
	})
}

func TestSelectVersion_Keywords(t *testing.T) {
	candidates := []string{"1.0", "2.0", "2.1-beta"}

	v, err := SelectVersion("LATEST", candidates, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2.1-beta", v)

	v, err = SelectVersion("RELEASE", candidates, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2.0", v)

	v, err = SelectVersion("RELEASE", candidates, "2.1-beta", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", v)
}

func TestSelectVersion_NoMatch(t *testing.T) {
	_, err := SelectVersion("[3.0,)", []string{"1.0", "2.0"}, "", "")
	assert.ErrorIs(t, err, ErrNoMatchingVersion)

	_, err = SelectVersion("LATEST", nil, "", "")
	assert.ErrorIs(t, err, ErrNoMatchingVersion)
}

func TestParseRange_Invalid(t *testing.T) {
	for _, expr := range []string{"[1.0", "1.0]", "(1.0)", "[]", "[2.0,1.0]", "[x,2.0)"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseRange(expr)
			assert.Error(t, err)
		})
	}
}

// ---------------------------------------------------------------------------
// Metadata
// ---------------------------------------------------------------------------

func TestParseMetadata_Merge(t *testing.T) {
	a, err := ParseMetadata([]byte(`<metadata>
  <groupId>org.x</groupId>
  <artifactId>lib</artifactId>
  <versioning>
    <latest>1.5</latest>
    <release>1.5</release>
    <versions><version>1.0</version><version>1.5</version></versions>
  </versioning>
</metadata>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "1.5"}, a.Versions)

	b := &Metadata{Latest: "2.0-rc1", Release: "1.9", Versions: []string{"1.5", "1.9", "2.0-rc1"}}
	a.Merge(b)

	assert.Equal(t, []string{"1.0", "1.5", "1.9", "2.0-rc1"}, a.Versions)
	assert.Equal(t, "2.0-rc1", a.Latest)
	assert.Equal(t, "1.9", a.Release)
}

func TestParseMetadata_Invalid(t *testing.T) {
	_, err := ParseMetadata([]byte("<metadata><versioning>"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// POM model
// ---------------------------------------------------------------------------

func TestNewModel_InterpolationAndManagement(t *testing.T) {
	parentRaw, err := parsePOM([]byte(pomXMLDoc("org.x", "parent", "1.0", `
  <properties><lib.version>2.0</lib.version></properties>
  <dependencyManagement><dependencies>
    <dependency><groupId>org.x</groupId><artifactId>lib</artifactId><version>${lib.version}</version></dependency>
  </dependencies></dependencyManagement>`)))
	require.NoError(t, err)

	parent := newModel(coord.New("org.x", "parent", "1.0", "pom", ""), parentRaw, nil)

	childRaw, err := parsePOM([]byte(`<project>
  <parent><groupId>org.x</groupId><artifactId>parent</artifactId><version>1.0</version></parent>
  <artifactId>app</artifactId>
  <properties><lib.version>2.1</lib.version></properties>
  <dependencies>
    <dependency><groupId>org.x</groupId><artifactId>lib</artifactId></dependency>
    <dependency><groupId>${project.groupId}</groupId><artifactId>sibling</artifactId><version>${project.version}</version></dependency>
  </dependencies>
</project>`))
	require.NoError(t, err)

	m := newModel(coord.New("org.x", "app", "1.0", "pom", ""), childRaw, parent)

	require.Len(t, m.dependencies, 2)
	assert.Equal(t, "2.0", m.dependencies[0].Version, "managed version is interpolated where it is declared")
	assert.Equal(t, "org.x", m.dependencies[1].GroupID)
	assert.Equal(t, "1.0", m.dependencies[1].Version)
	assert.Equal(t, []coord.Coordinate{parent.coordinate}, m.parents)
	assert.Equal(t, "2.1", m.properties["lib.version"])
}

func TestInterpolate_UnknownReferenceKept(t *testing.T) {
	m := &model{properties: map[string]string{"a": "${b}", "b": "x"}}

	assert.Equal(t, "x", m.interpolate("${a}"))
	assert.Equal(t, "${missing}", m.interpolate("${missing}"))
	assert.True(t, unresolved(m.interpolate("${missing}")))
}

func TestExclusionSet(t *testing.T) {
	e := exclusionSet{}.with([]pomExclusion{{GroupID: "org.x", ArtifactID: "gone"}, {GroupID: "org.bad", ArtifactID: "*"}})

	assert.True(t, e.excludes("org.x", "gone"))
	assert.True(t, e.excludes("org.bad", "anything"))
	assert.False(t, e.excludes("org.x", "kept"))
}

// ---------------------------------------------------------------------------
// Transports
// ---------------------------------------------------------------------------

func TestHTTPTransport_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != "deploy" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	h, err := NewHTTPTransport(HTTPOptions{})
	require.NoError(t, err)

	rc, err := h.Fetch(context.Background(), Repository{URL: srv.URL + "/", Username: "deploy", Password: "secret"}, "a/b")
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "ok", string(data))

	_, err = h.Fetch(context.Background(), Repository{URL: srv.URL}, "a/b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPTransport_NotFound(t *testing.T) {
	srv, _ := newFakeRepo(t, nil)

	h, err := NewHTTPTransport(HTTPOptions{})
	require.NoError(t, err)

	_, err = h.Fetch(context.Background(), Repository{URL: srv.URL}, "missing.jar")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPTransport_InvalidCAFile(t *testing.T) {
	ca := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("not a certificate"), 0o600))

	_, err := NewHTTPTransport(HTTPOptions{CaFile: ca})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid certificates")
}

func TestFileTransport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "org", "x"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "org", "x", "f.txt"), []byte("data"), 0o600))

	repo := Repository{ID: "disk", URL: "file://" + filepath.ToSlash(dir)}

	rc, err := FileTransport{}.Fetch(context.Background(), repo, "org/x/f.txt")
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "data", string(data))

	_, err = FileTransport{}.Fetch(context.Background(), repo, "org/x/none.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMultiTransport_UnsupportedScheme(t *testing.T) {
	m := NewMultiTransport(nil, nil)

	_, err := m.Fetch(context.Background(), Repository{ID: "ftp", URL: "ftp://host/repo"}, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "ftp"`)
}

func TestObjectLocation(t *testing.T) {
	bucket, key, err := objectLocation("s3://artifacts/maven/releases", "org/x/lib/1.0/lib-1.0.jar")
	require.NoError(t, err)
	assert.Equal(t, "artifacts", bucket)
	assert.Equal(t, "maven/releases/org/x/lib/1.0/lib-1.0.jar", key)

	_, _, err = objectLocation("s3:///nobucket", "a")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

func TestResolver_DownloadsAndStores(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/lib/1.0/lib-1.0.jar": "jar-bytes",
	})

	r := newTestResolver(t, srv, Options{})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	a := artifacts[0]
	assert.Equal(t, "test", a.Repository)

	data, err := os.ReadFile(a.File)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(data))

	sidecar, err := os.ReadFile(a.File + ".sha1")
	require.NoError(t, err)
	assert.Equal(t, sha1Hex("jar-bytes"), strings.TrimSpace(string(sidecar)))

	again, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, LocalRepositoryID, again[0].Repository)
}

func TestResolver_LocalOnly(t *testing.T) {
	local := t.TempDir()
	p := filepath.Join(local, "org", "x", "lib", "1.0", "lib-1.0.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte("cached"), 0o600))

	r := newTestResolver(t, nil, Options{LocalRepository: local})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, p, artifacts[0].File)
}

func TestResolver_NotFoundIsResolutionError(t *testing.T) {
	srv, repo := newFakeRepo(t, nil)
	r := newTestResolver(t, srv, Options{})
	c := coord.New("org.x", "missing", "1.0", "", "")

	_, err := r.Resolve(context.Background(), c, nil)
	require.Error(t, err)

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, c, re.Coordinate)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsResolutionError(err))

	_, err = r.Resolve(context.Background(), c, nil)
	require.Error(t, err)
	assert.Equal(t, 1, repo.count("org/x/missing/1.0/missing-1.0.jar"), "not-found lookups are cached")
}

func TestResolver_ChecksumMismatch(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/lib/1.0/lib-1.0.jar":      "jar-bytes",
		"org/x/lib/1.0/lib-1.0.jar.sha1": "0000000000000000000000000000000000000000",
	})

	local := t.TempDir()
	r := newTestResolver(t, srv, Options{LocalRepository: local})

	_, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.True(t, IsResolutionError(err))

	_, statErr := os.Stat(filepath.Join(local, "org", "x", "lib", "1.0", "lib-1.0.jar"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "a corrupt download is not stored")
}

func TestResolver_StorageErrorIsSystemic(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/lib/1.0/lib-1.0.jar": "jar-bytes",
	})

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	r := newTestResolver(t, srv, Options{LocalRepository: filepath.Join(blocker, "repo")})

	_, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.Error(t, err)

	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.False(t, IsResolutionError(err))
}

func TestResolver_CancelledContextIsSystemic(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/lib/1.0/lib-1.0.jar": "jar-bytes",
	})

	r := newTestResolver(t, srv, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsResolutionError(err))
}

func TestResolver_SharedDownloadSurvivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".jar") {
			once.Do(func() { close(started) })
			<-release
			_, _ = w.Write([]byte("jar-bytes"))

			return
		}

		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	r := newTestResolver(t, srv, Options{})
	c := coord.New("org.x", "slow", "1.0", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)

	go func() {
		_, err := r.Resolve(ctx, c, nil)
		firstErr <- err
	}()

	<-started
	cancel()

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsResolutionError(err))
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared download")
	}

	second := make(chan error, 1)

	go func() {
		artifacts, err := r.Resolve(context.Background(), c, nil)
		if err == nil && len(artifacts) != 1 {
			err = fmt.Errorf("got %d artifacts", len(artifacts))
		}
		second <- err
	}()

	close(release)

	select {
	case err := <-second:
		assert.NoError(t, err, "a live caller is not failed by another caller's cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("download did not complete")
	}
}

func TestResolver_VersionRange(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/ranged/maven-metadata.xml": `<metadata><versioning><versions>
  <version>1.0</version><version>1.5</version><version>2.0</version>
</versions></versioning></metadata>`,
		"org/x/ranged/1.5/ranged-1.5.jar": "v15",
	})

	r := newTestResolver(t, srv, Options{})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "ranged", "[1.0,2.0)", "", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.x:ranged:jar:1.5"}, coordStrings(artifacts))
}

func TestResolver_VersionRangeNoMatch(t *testing.T) {
	srv, _ := newFakeRepo(t, map[string]string{
		"org/x/ranged/maven-metadata.xml": `<metadata><versioning><versions><version>1.0</version></versions></versioning></metadata>`,
	})

	r := newTestResolver(t, srv, Options{})

	_, err := r.Resolve(context.Background(), coord.New("org.x", "ranged", "[2.0,)", "", ""), nil)
	assert.ErrorIs(t, err, ErrNoMatchingVersion)
	assert.True(t, IsResolutionError(err))
}

// transitiveFixture is a small repository:
//
//	app 1.0 (parent: parent 1.0)
//	├── lib (version from parent dependencyManagement, ${lib.version} = 2.0)
//	├── opt 1.0 (optional)
//	├── testlib 1.0 (test scope)
//	└── holder 1.0, excluding gone
//	    ├── gone 1.0 (absent from the repository)
//	    └── kept ${project.version}
func transitiveFixture() map[string]string {
	dep := func(a, v, extra string) string {
		return fmt.Sprintf("<dependency><groupId>org.x</groupId><artifactId>%s</artifactId>%s%s</dependency>", a, v, extra)
	}

	return map[string]string{
		"org/x/parent/1.0/parent-1.0.pom": pomXMLDoc("org.x", "parent", "1.0", `
  <packaging>pom</packaging>
  <properties><lib.version>2.0</lib.version></properties>
  <dependencyManagement><dependencies>`+dep("lib", "<version>${lib.version}</version>", "")+`</dependencies></dependencyManagement>`),
		"org/x/app/1.0/app-1.0.pom": `<project>
  <parent><groupId>org.x</groupId><artifactId>parent</artifactId><version>1.0</version></parent>
  <artifactId>app</artifactId>
  <dependencies>` +
			dep("lib", "", "") +
			dep("opt", "<version>1.0</version>", "<optional>true</optional>") +
			dep("testlib", "<version>1.0</version>", "<scope>test</scope>") +
			dep("holder", "<version>1.0</version>", "<exclusions><exclusion><groupId>org.x</groupId><artifactId>gone</artifactId></exclusion></exclusions>") + `
  </dependencies>
</project>`,
		"org/x/app/1.0/app-1.0.jar":       "app",
		"org/x/lib/2.0/lib-2.0.pom":       pomXMLDoc("org.x", "lib", "2.0", ""),
		"org/x/lib/2.0/lib-2.0.jar":       "lib",
		"org/x/holder/1.0/holder-1.0.jar": "holder",
		"org/x/holder/1.0/holder-1.0.pom": pomXMLDoc("org.x", "holder", "1.0", "<dependencies>"+
			dep("gone", "<version>1.0</version>", "")+
			dep("kept", "<version>${project.version}</version>", "")+
			"</dependencies>"),
		"org/x/kept/1.0/kept-1.0.jar":       "kept",
		"org/x/opt/1.0/opt-1.0.jar":         "opt",
		"org/x/testlib/1.0/testlib-1.0.jar": "testlib",
	}
}

func TestResolver_Transitive(t *testing.T) {
	srv, _ := newFakeRepo(t, transitiveFixture())
	r := newTestResolver(t, srv, Options{Transitive: true})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "app", "1.0", "", ""), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"org.x:app:jar:1.0",
		"org.x:holder:jar:1.0",
		"org.x:kept:jar:1.0",
		"org.x:lib:jar:2.0",
	}, coordStrings(artifacts))
}

func TestResolver_NonTransitive(t *testing.T) {
	srv, repo := newFakeRepo(t, transitiveFixture())
	r := newTestResolver(t, srv, Options{})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "app", "1.0", "", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.x:app:jar:1.0"}, coordStrings(artifacts))
	assert.Zero(t, repo.count("org/x/app/1.0/app-1.0.pom"))
}

func TestResolver_IncludeParents(t *testing.T) {
	srv, _ := newFakeRepo(t, transitiveFixture())
	r := newTestResolver(t, srv, Options{IncludeParents: true})

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "app", "1.0", "", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.x:app:jar:1.0", "org.x:parent:pom:1.0"}, coordStrings(artifacts))
}

func TestResolver_FilterPrunesCandidates(t *testing.T) {
	srv, repo := newFakeRepo(t, transitiveFixture())
	r := newTestResolver(t, srv, Options{Transitive: true})

	noHolder := ArtifactFilterFunc(func(c coord.Coordinate) bool { return c.ArtifactID != "holder" })

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "app", "1.0", "", ""), noHolder)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.x:app:jar:1.0", "org.x:lib:jar:2.0"}, coordStrings(artifacts))
	assert.Zero(t, repo.count("org/x/holder/1.0/holder-1.0.jar"), "rejected candidates are never fetched")
}

func TestResolver_FilterRejectsRoot(t *testing.T) {
	srv, _ := newFakeRepo(t, transitiveFixture())
	r := newTestResolver(t, srv, Options{Transitive: true})

	none := ArtifactFilterFunc(func(coord.Coordinate) bool { return false })

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "app", "1.0", "", ""), none)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestResolver_TransitiveFailureFailsRoot(t *testing.T) {
	files := transitiveFixture()
	files["org/x/broken/1.0/broken-1.0.jar"] = "broken"
	files["org/x/broken/1.0/broken-1.0.pom"] = pomXMLDoc("org.x", "broken", "1.0",
		"<dependencies><dependency><groupId>org.x</groupId><artifactId>nowhere</artifactId><version>9</version></dependency></dependencies>")

	srv, _ := newFakeRepo(t, files)
	r := newTestResolver(t, srv, Options{Transitive: true})
	root := coord.New("org.x", "broken", "1.0", "", "")

	_, err := r.Resolve(context.Background(), root, nil)
	require.Error(t, err)

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, root, re.Coordinate)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_SecondRemote(t *testing.T) {
	empty, _ := newFakeRepo(t, nil)
	full, _ := newFakeRepo(t, map[string]string{"org/x/lib/1.0/lib-1.0.jar": "jar"})

	h, err := NewHTTPTransport(HTTPOptions{})
	require.NoError(t, err)

	s, err := NewSession(NewMultiTransport(h, nil), Options{LocalRepository: t.TempDir()})
	require.NoError(t, err)

	r := s.Context([]Repository{{ID: "first", URL: empty.URL}, {ID: "second", URL: full.URL}})
	assert.Len(t, r.Repositories(), 2)

	artifacts, err := r.Resolve(context.Background(), coord.New("org.x", "lib", "1.0", "", ""), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "second", artifacts[0].Repository)
}

func TestNewSession_RequiresLocalRepository(t *testing.T) {
	_, err := NewSession(NewMultiTransport(nil, nil), Options{})
	assert.Error(t, err)
}

func TestSession_PurgeRereadsMetadataOnly(t *testing.T) {
	srv, repo := newFakeRepo(t, map[string]string{
		"org/x/ranged/maven-metadata.xml": `<metadata><versioning><versions><version>1.5</version></versions></versioning></metadata>`,
		"org/x/ranged/1.5/ranged-1.5.jar": "v15",
	})

	r := newTestResolver(t, srv, Options{})
	ranged := coord.New("org.x", "ranged", "[1.0,2.0)", "", "")
	missing := coord.New("org.x", "missing", "1.0", "", "")

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), ranged, nil)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), missing, nil)
		require.Error(t, err)
	}

	assert.Equal(t, 1, repo.count("org/x/ranged/maven-metadata.xml"))

	r.session.Purge()

	_, err := r.Resolve(context.Background(), ranged, nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), missing, nil)
	require.Error(t, err)

	assert.Equal(t, 2, repo.count("org/x/ranged/maven-metadata.xml"))
	assert.Equal(t, 1, repo.count("org/x/missing/1.0/missing-1.0.jar"), "not-found entries survive a purge")
}
