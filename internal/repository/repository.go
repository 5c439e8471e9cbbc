// Package repository resolves coordinates against a local repository and a
// list of remote repositories laid out the Maven way.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/project"
)

// Sentinel errors carried inside a ResolutionError.
var (
	// ErrNotFound is returned when no repository holds the requested path.
	ErrNotFound = errors.New("not found")
	// ErrNoMatchingVersion is returned when a version range or keyword has no
	// candidate in the repository metadata.
	ErrNoMatchingVersion = errors.New("no matching version")
	// ErrChecksum is returned when a download does not match its .sha1 sidecar.
	ErrChecksum = errors.New("checksum mismatch")
)

// Repository is a remote artifact source.
type Repository struct {
	ID       string
	URL      string
	Username string
	Password string
}

// String returns "id (url)".
func (r Repository) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.URL)
}

// FromProject converts repository entries of a project descriptor.
func FromProject(repos []project.Repository) []Repository {
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, Repository{
			ID:       r.ID,
			URL:      r.URL,
			Username: r.Username,
			Password: r.Password,
		})
	}

	return out
}

// Artifact is a resolved file in the local repository.
type Artifact struct {
	// Coordinate is the bound coordinate; its version is never a range.
	Coordinate coord.Coordinate
	// File is the absolute path inside the local repository.
	File string
	// Repository is the ID of the repository the file came from, or "local".
	Repository string
}

// LocalRepositoryID marks artifacts that were already present locally.
const LocalRepositoryID = "local"

// ArtifactFilter is applied to every coordinate a resolution would yield.
type ArtifactFilter interface {
	Accept(c coord.Coordinate) bool
}

// ArtifactFilterFunc adapts a function to ArtifactFilter.
type ArtifactFilterFunc func(c coord.Coordinate) bool

// Accept calls f(c).
func (f ArtifactFilterFunc) Accept(c coord.Coordinate) bool {
	return f(c)
}

// Context resolves coordinates against a fixed list of repositories.
type Context interface {
	// Repositories returns the remotes in lookup order.
	Repositories() []Repository
	// Resolve binds c and returns every artifact it yields. A failure that
	// concerns only c is returned as *ResolutionError; any other error is
	// systemic.
	Resolve(ctx context.Context, c coord.Coordinate, filter ArtifactFilter) ([]Artifact, error)
}

// ResolutionError reports a failure confined to one coordinate.
type ResolutionError struct {
	Coordinate coord.Coordinate
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Coordinate, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err is confined to one coordinate.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// StorageError reports a failure to write the local repository. It is
// always systemic.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local repository %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
