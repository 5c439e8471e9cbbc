package filter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/gooffline/internal/project"
)

// ErrInvalidValue is returned when an include or exclude list holds a value
// that can never match a record.
var ErrInvalidValue = errors.New("invalid filter value")

// Dimension names the record field an AttributeFilter inspects.
type Dimension string

// Supported dimensions.
const (
	DimensionArtifactID Dimension = "artifactId"
	DimensionGroupID    Dimension = "groupId"
	DimensionScope      Dimension = "scope"
	DimensionClassifier Dimension = "classifier"
	DimensionType       Dimension = "type"
)

// value extracts the dimension's value from a record. Unset scope and type
// take their defaults so "compile" and "jar" match records that omit them.
func (d Dimension) value(dep project.Dependency) string {
	switch d {
	case DimensionArtifactID:
		return dep.ArtifactID
	case DimensionGroupID:
		return dep.GroupID
	case DimensionScope:
		return dep.EffectiveScope()
	case DimensionClassifier:
		return dep.Classifier
	case DimensionType:
		return dep.EffectiveType()
	default:
		return ""
	}
}

// AttributeFilter keeps a record when its value for one dimension is in the
// include list (or the include list is empty) and is not in the exclude list.
type AttributeFilter struct {
	dimension Dimension
	include   map[string]bool
	exclude   map[string]bool
}

// NewAttributeFilter validates include and exclude and builds the filter.
func NewAttributeFilter(dim Dimension, include, exclude []string) (*AttributeFilter, error) {
	switch dim {
	case DimensionArtifactID, DimensionGroupID, DimensionScope, DimensionClassifier, DimensionType:
	default:
		return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidValue, dim)
	}

	inc, err := toSet(dim, "include", include)
	if err != nil {
		return nil, err
	}

	exc, err := toSet(dim, "exclude", exclude)
	if err != nil {
		return nil, err
	}

	return &AttributeFilter{dimension: dim, include: inc, exclude: exc}, nil
}

// NewArtifactIDFilter filters by artifactId.
func NewArtifactIDFilter(include, exclude []string) (*AttributeFilter, error) {
	return NewAttributeFilter(DimensionArtifactID, include, exclude)
}

// NewGroupIDFilter filters by groupId.
func NewGroupIDFilter(include, exclude []string) (*AttributeFilter, error) {
	return NewAttributeFilter(DimensionGroupID, include, exclude)
}

// NewScopeFilter filters by scope. Values must belong to the scope
// vocabulary.
func NewScopeFilter(include, exclude []string) (*AttributeFilter, error) {
	return NewAttributeFilter(DimensionScope, include, exclude)
}

// NewClassifierFilter filters by classifier.
func NewClassifierFilter(include, exclude []string) (*AttributeFilter, error) {
	return NewAttributeFilter(DimensionClassifier, include, exclude)
}

// NewTypeFilter filters by type.
func NewTypeFilter(include, exclude []string) (*AttributeFilter, error) {
	return NewAttributeFilter(DimensionType, include, exclude)
}

// Name returns the dimension name.
func (f *AttributeFilter) Name() string {
	return string(f.dimension)
}

// Dimension returns the inspected dimension.
func (f *AttributeFilter) Dimension() Dimension {
	return f.dimension
}

// Keep applies include then exclude.
func (f *AttributeFilter) Keep(dep project.Dependency) bool {
	v := f.dimension.value(dep)

	if len(f.include) > 0 && !f.include[v] {
		return false
	}

	return !f.exclude[v]
}

func toSet(dim Dimension, list string, values []string) (map[string]bool, error) {
	m := make(map[string]bool, len(values))

	for _, v := range values {
		if err := validateValue(dim, v); err != nil {
			return nil, fmt.Errorf("%s %s list: %w", list, dim, err)
		}

		m[v] = true
	}

	return m, nil
}

func validateValue(dim Dimension, v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty entry", ErrInvalidValue)
	}

	if strings.ContainsAny(v, ":,") || strings.IndexFunc(v, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace, ':' or ','", ErrInvalidValue, v)
	}

	if dim == DimensionScope && !project.IsValidScope(v) {
		return fmt.Errorf("%w: unknown scope %q (valid: %s)", ErrInvalidValue, v, strings.Join(project.Scopes(), ", "))
	}

	return nil
}
