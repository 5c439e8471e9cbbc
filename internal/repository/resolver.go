package repository

import (
	"context"
	"crypto/sha1" //nolint:gosec // Maven sidecars are SHA-1
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/logging"
)

const (
	// DefaultCacheSize bounds the parsed POM and metadata caches.
	DefaultCacheSize = 1024
	// DefaultNegativeTTL is how long a not-found lookup is remembered.
	DefaultNegativeTTL = 10 * time.Minute

	negativeCleanupInterval = 30 * time.Minute
	maxParentDepth          = 16
	maxMetadataSize         = 16 << 20
	maxPOMSize              = 16 << 20
)

var tracer = otel.Tracer("github.com/hupe1980/gooffline/internal/repository")

// Options configures a Session.
type Options struct {
	// LocalRepository is the directory downloads are stored in.
	LocalRepository string
	// Transitive follows compile and runtime dependencies declared in POMs.
	Transitive bool
	// IncludeParents yields the parent POM chain of every resolved artifact.
	IncludeParents bool
	// CacheSize bounds the POM and metadata caches. Defaults to DefaultCacheSize.
	CacheSize int
	// NegativeTTL defaults to DefaultNegativeTTL.
	NegativeTTL time.Duration
}

// Session holds the local repository and the caches shared by every
// Resolver created from it. It is safe for concurrent use.
type Session struct {
	transport Transport
	opts      Options

	models   *lru.Cache[coord.Coordinate, *model]
	metadata *lru.Cache[string, *Metadata]
	missing  *gocache.Cache
	inflight singleflight.Group
}

// NewSession creates a Session storing into opts.LocalRepository.
func NewSession(transport Transport, opts Options) (*Session, error) {
	if opts.LocalRepository == "" {
		return nil, errors.New("local repository path is required")
	}

	local, err := filepath.Abs(opts.LocalRepository)
	if err != nil {
		return nil, fmt.Errorf("resolving local repository path: %w", err)
	}

	opts.LocalRepository = local

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}

	models, err := lru.New[coord.Coordinate, *model](opts.CacheSize)
	if err != nil {
		return nil, err
	}

	metadata, err := lru.New[string, *Metadata](opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Session{
		transport: transport,
		opts:      opts,
		models:    models,
		metadata:  metadata,
		missing:   gocache.New(opts.NegativeTTL, negativeCleanupInterval),
	}, nil
}

// LocalRepository returns the absolute local repository path.
func (s *Session) LocalRepository() string {
	return s.opts.LocalRepository
}

// Purge drops cached version metadata so ranges are evaluated again.
// Parsed POMs of fixed versions never change and are kept. Not-found
// entries expire on their own TTL.
func (s *Session) Purge() {
	s.metadata.Purge()
}

// Context returns a Resolver over remotes.
func (s *Session) Context(remotes []Repository) *Resolver {
	return &Resolver{session: s, remotes: append([]Repository(nil), remotes...)}
}

// Resolver implements Context over one list of remotes.
type Resolver struct {
	session *Session
	remotes []Repository
}

var _ Context = (*Resolver)(nil)

// Repositories returns a copy of the remotes in lookup order.
func (r *Resolver) Repositories() []Repository {
	return append([]Repository(nil), r.remotes...)
}

type node struct {
	coordinate coord.Coordinate
	exclusions exclusionSet
}

// Resolve binds c, downloads it and, when enabled, its transitive
// dependencies and parent POMs. filter is consulted for c and for every
// candidate before it is fetched; rejected candidates are not followed.
// A failing transitive dependency fails c.
func (r *Resolver) Resolve(ctx context.Context, c coord.Coordinate, filter ArtifactFilter) ([]Artifact, error) {
	ctx, span := tracer.Start(ctx, "repository.Resolve")
	defer span.End()

	span.SetAttributes(attribute.String("coordinate", c.String()))

	accept := func(x coord.Coordinate) bool { return filter == nil || filter.Accept(x) }

	if !accept(c) {
		return nil, nil
	}

	root, err := r.bindVersion(ctx, c)
	if err != nil {
		return nil, r.classify(ctx, c, err)
	}

	if root != c && !accept(root) {
		return nil, nil
	}

	logger := logging.FromContext(ctx)
	opts := r.session.opts

	var artifacts []Artifact

	seen := map[string]bool{root.VersionlessKey(): true}
	yielded := make(map[coord.Coordinate]bool)
	queue := []node{{coordinate: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		a, err := r.fetch(ctx, cur.coordinate)
		if err != nil {
			return nil, r.classify(ctx, c, err)
		}

		artifacts = append(artifacts, a)
		yielded[cur.coordinate] = true

		if !opts.Transitive && !opts.IncludeParents {
			continue
		}

		m, err := r.model(ctx, cur.coordinate)
		if err != nil {
			if errors.Is(err, ErrNotFound) && cur.coordinate.Type != "pom" {
				logger.Debug("no POM, dependencies not followed", "coordinate", cur.coordinate.String())
				continue
			}

			return nil, r.classify(ctx, c, err)
		}

		if opts.IncludeParents {
			for _, p := range m.parents {
				if yielded[p] || !accept(p) {
					continue
				}

				pa, err := r.fetch(ctx, p)
				if err != nil {
					return nil, r.classify(ctx, c, err)
				}

				artifacts = append(artifacts, pa)
				yielded[p] = true
			}
		}

		if !opts.Transitive {
			continue
		}

		for _, d := range m.dependencies {
			if !followed(d) || cur.exclusions.excludes(d.GroupID, d.ArtifactID) {
				continue
			}

			if d.Version == "" || unresolved(d.Version) || unresolved(d.GroupID) || unresolved(d.ArtifactID) {
				logger.Debug("skipping dependency with undeterminable version",
					"dependency", d.GroupID+":"+d.ArtifactID,
					"declared_by", cur.coordinate.String(),
				)

				continue
			}

			child := d.coordinate()
			if seen[child.VersionlessKey()] || !accept(child) {
				continue
			}

			bound, err := r.bindVersion(ctx, child)
			if err != nil {
				return nil, r.classify(ctx, c, err)
			}

			if bound != child && !accept(bound) {
				continue
			}

			seen[child.VersionlessKey()] = true
			queue = append(queue, node{coordinate: bound, exclusions: cur.exclusions.with(d.Exclusions)})
		}
	}

	return artifacts, nil
}

// followed reports whether a POM dependency belongs to the runtime closure.
func followed(d pomDependency) bool {
	if d.optional() {
		return false
	}

	switch d.Scope {
	case "", "compile", "runtime":
		return true
	default:
		return false
	}
}

// classify wraps err as a ResolutionError of root unless it is systemic.
func (r *Resolver) classify(ctx context.Context, root coord.Coordinate, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	var re *ResolutionError
	if errors.As(err, &re) && re.Coordinate == root {
		return re
	}

	return &ResolutionError{Coordinate: root, Err: err}
}

// bindVersion replaces a range or keyword with a concrete version.
func (r *Resolver) bindVersion(ctx context.Context, c coord.Coordinate) (coord.Coordinate, error) {
	if !IsDynamic(c.Version) {
		return c, nil
	}

	md, err := r.readMetadata(ctx, c.GroupID, c.ArtifactID)
	if err != nil {
		return c, err
	}

	v, err := SelectVersion(c.Version, md.Versions, md.Latest, md.Release)
	if err != nil {
		return c, fmt.Errorf("%s:%s: %w", c.GroupID, c.ArtifactID, err)
	}

	logging.FromContext(ctx).Debug("bound version", "coordinate", c.String(), "version", v)

	return c.WithVersion(v), nil
}

func (r *Resolver) metadataKey(groupID, artifactID string) string {
	ids := make([]string, 0, len(r.remotes))
	for _, repo := range r.remotes {
		ids = append(ids, repo.URL)
	}

	return groupID + ":" + artifactID + "|" + strings.Join(ids, ",")
}

// readMetadata merges maven-metadata.xml over every remote with the version
// directories already present locally.
func (r *Resolver) readMetadata(ctx context.Context, groupID, artifactID string) (*Metadata, error) {
	key := r.metadataKey(groupID, artifactID)
	if md, ok := r.session.metadata.Get(key); ok {
		return md, nil
	}

	merged := &Metadata{GroupID: groupID, ArtifactID: artifactID}
	p := MetadataPath(groupID, artifactID)

	var lastErr error

	found := false

	for _, repo := range r.remotes {
		data, err := r.download(ctx, repo, p, maxMetadataSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if !errors.Is(err, ErrNotFound) {
				lastErr = err
			}

			continue
		}

		md, err := ParseMetadata(data)
		if err != nil {
			lastErr = fmt.Errorf("%s from %s: %w", p, repo.ID, err)
			continue
		}

		merged.Merge(md)

		found = true
	}

	if local := r.localVersions(groupID, artifactID); len(local) > 0 {
		merged.Merge(&Metadata{Versions: local})

		found = true
	}

	if !found {
		if lastErr != nil {
			return nil, lastErr
		}

		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, p, r.remoteIDs())
	}

	r.session.metadata.Add(key, merged)

	return merged, nil
}

func (r *Resolver) localVersions(groupID, artifactID string) []string {
	entries, err := os.ReadDir(filepath.Join(r.session.opts.LocalRepository, filepath.FromSlash(versionDir(groupID, artifactID))))
	if err != nil {
		return nil
	}

	var out []string

	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}

	return out
}

func (r *Resolver) remoteIDs() string {
	ids := make([]string, 0, len(r.remotes))
	for _, repo := range r.remotes {
		ids = append(ids, repo.ID)
	}

	return "[" + strings.Join(ids, ", ") + "]"
}

// download reads a whole file from one remote, consulting the negative cache.
func (r *Resolver) download(ctx context.Context, repo Repository, p string, limit int64) ([]byte, error) {
	missKey := repo.URL + "|" + p
	if _, ok := r.session.missing.Get(missKey); ok {
		return nil, fmt.Errorf("%w: %s in %s (cached)", ErrNotFound, p, repo.ID)
	}

	rc, err := r.session.transport.Fetch(ctx, repo, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.session.missing.SetDefault(missKey, struct{}{})
		}

		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", p, repo.ID, err)
	}

	return data, nil
}

// model returns the merged and interpolated POM of c.
func (r *Resolver) model(ctx context.Context, c coord.Coordinate) (*model, error) {
	return r.modelAt(ctx, pomOf(c), 0)
}

func (r *Resolver) modelAt(ctx context.Context, pc coord.Coordinate, depth int) (*model, error) {
	if m, ok := r.session.models.Get(pc); ok {
		return m, nil
	}

	if depth > maxParentDepth {
		return nil, fmt.Errorf("parent chain of %s deeper than %d", pc, maxParentDepth)
	}

	a, err := r.fetch(ctx, pc)
	if err != nil {
		return nil, err
	}

	data, err := readLimited(a.File, maxPOMSize)
	if err != nil {
		return nil, &StorageError{Path: a.File, Err: err}
	}

	raw, err := parsePOM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pc, err)
	}

	var parent *model

	if raw.Parent != nil && raw.Parent.ArtifactID != "" {
		parentCoord := coord.New(raw.Parent.GroupID, raw.Parent.ArtifactID, raw.Parent.Version, "pom", "")

		parent, err = r.modelAt(ctx, parentCoord, depth+1)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", pc, err)
		}
	}

	m := newModel(pc, raw, parent)

	for _, imp := range m.imports() {
		if imp.Version == "" || unresolved(imp.Version) {
			continue
		}

		bom, err := r.modelAt(ctx, imp.coordinate(), depth+1)
		if err != nil {
			return nil, fmt.Errorf("BOM imported by %s: %w", pc, err)
		}

		m.importBOM(bom)
	}

	r.session.models.Add(pc, m)

	return m, nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path is inside the local repository
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return io.ReadAll(io.LimitReader(f, limit))
}

// fetch returns c from the local repository, downloading it from the first
// remote that has it. Concurrent fetches of the same file share one download.
func (r *Resolver) fetch(ctx context.Context, c coord.Coordinate) (Artifact, error) {
	p := Path(c)
	local := filepath.Join(r.session.opts.LocalRepository, filepath.FromSlash(p))

	if fi, err := os.Stat(local); err == nil && fi.Mode().IsRegular() {
		return Artifact{Coordinate: c, File: local, Repository: LocalRepositoryID}, nil
	}

	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	// The shared download outlives any single caller; each caller still
	// stops waiting when its own context ends.
	ch := r.session.inflight.DoChan(local, func() (any, error) {
		return r.downloadToLocal(context.WithoutCancel(ctx), c, p, local)
	})

	select {
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Artifact{}, res.Err
		}

		return res.Val.(Artifact), nil
	}
}

func (r *Resolver) downloadToLocal(ctx context.Context, c coord.Coordinate, p, local string) (Artifact, error) {
	logger := logging.FromContext(ctx)

	var lastErr error

	for _, repo := range r.remotes {
		err := r.store(ctx, repo, p, local)
		if err == nil {
			logger.Debug("downloaded", "path", p, "repository", repo.ID)
			return Artifact{Coordinate: c, File: local, Repository: repo.ID}, nil
		}

		var se *StorageError
		if errors.As(err, &se) {
			return Artifact{}, err
		}

		if !errors.Is(err, ErrNotFound) {
			logger.Debug("download failed", "path", p, "repository", repo.ID, "error", err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return Artifact{}, lastErr
	}

	return Artifact{}, fmt.Errorf("%w: %s in %s", ErrNotFound, p, r.remoteIDs())
}

// store streams p from repo into local, verifying the .sha1 sidecar when the
// remote has one. The file appears atomically.
func (r *Resolver) store(ctx context.Context, repo Repository, p, local string) error {
	missKey := repo.URL + "|" + p
	if _, ok := r.session.missing.Get(missKey); ok {
		return fmt.Errorf("%w: %s in %s (cached)", ErrNotFound, p, repo.ID)
	}

	rc, err := r.session.transport.Fetch(ctx, repo, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.session.missing.SetDefault(missKey, struct{}{})
		}

		return err
	}
	defer func() { _ = rc.Close() }()

	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &StorageError{Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(local)+".*.part")
	if err != nil {
		return &StorageError{Path: dir, Err: err}
	}

	committed := false

	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha1.New() //nolint:gosec // Maven sidecars are SHA-1
	w := &storageWriter{w: tmp, h: h, path: local}

	if _, err := io.Copy(w, rc); err != nil {
		var se *StorageError
		if errors.As(err, &se) {
			return err
		}

		return fmt.Errorf("downloading %s from %s: %w", p, repo.ID, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))

	expected, err := r.sidecar(ctx, repo, p+".sha1")
	if err != nil {
		return err
	}

	if expected != "" && !strings.EqualFold(expected, sum) {
		return fmt.Errorf("%w: %s from %s: want %s, got %s", ErrChecksum, p, repo.ID, expected, sum)
	}

	if err := tmp.Close(); err != nil {
		return &StorageError{Path: local, Err: err}
	}

	if err := os.Rename(tmp.Name(), local); err != nil {
		return &StorageError{Path: local, Err: err}
	}

	committed = true

	if expected != "" {
		if err := os.WriteFile(local+".sha1", []byte(expected+"\n"), 0o600); err != nil {
			return &StorageError{Path: local + ".sha1", Err: err}
		}
	}

	return nil
}

// sidecar returns the first token of a checksum file, or "" when the remote
// has none.
func (r *Resolver) sidecar(ctx context.Context, repo Repository, p string) (string, error) {
	data, err := r.download(ctx, repo, p, 1024)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}

		return "", err
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", nil
	}

	return fields[0], nil
}

// storageWriter tags local write failures so they are reported as systemic.
type storageWriter struct {
	w    io.Writer
	h    hash.Hash
	path string
}

func (s *storageWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, &StorageError{Path: s.path, Err: err}
	}

	_, _ = s.h.Write(p[:n])

	return n, nil
}
