package repository

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version keywords resolved through repository metadata.
const (
	KeywordLatest  = "LATEST"
	KeywordRelease = "RELEASE"
)

// Qualifier ranks in Maven order. Unknown qualifiers such as "jre" sort
// after a plain release and among themselves alphabetically.
const (
	rankAlpha = iota
	rankBeta
	rankMilestone
	rankCandidate
	rankSnapshot
	rankRelease
	rankServicePack
	rankUnknown
)

var qualifierRanks = map[string]int{
	"alpha":     rankAlpha,
	"a":         rankAlpha,
	"beta":      rankBeta,
	"b":         rankBeta,
	"milestone": rankMilestone,
	"m":         rankMilestone,
	"rc":        rankCandidate,
	"cr":        rankCandidate,
	"snapshot":  rankSnapshot,
	"":          rankRelease,
	"ga":        rankRelease,
	"final":     rankRelease,
	"release":   rankRelease,
	"sp":        rankServicePack,
}

// Version is a parsed Maven version: numeric components followed by an
// optional qualifier ("31.1-jre", "5.6.15.Final", "2.0-rc1").
type Version struct {
	original  string
	core      *semver.Version // first three numeric components
	extra     []uint64        // numeric components past the third
	qualifier string
	rank      int
	number    uint64
	tail      string
}

// ParseVersion parses s. Versions must start with a number.
func ParseVersion(s string) (*Version, error) {
	s = strings.TrimSpace(s)

	var nums []uint64

	i := 0

	for {
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}

		if j == i {
			break
		}

		n, err := strconv.ParseUint(s[i:j], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", s, err)
		}

		nums = append(nums, n)
		i = j

		if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
			i++

			continue
		}

		break
	}

	if len(nums) == 0 {
		return nil, fmt.Errorf("invalid version %q: no numeric component", s)
	}

	v := &Version{original: s}

	core := make([]uint64, 3)
	copy(core, nums)
	v.core = semver.New(core[0], core[1], core[2], "", "")

	if len(nums) > 3 {
		v.extra = nums[3:]
	}

	v.parseQualifier(strings.ToLower(strings.TrimLeft(s[i:], ".-_")))

	return v, nil
}

// parseQualifier splits rest into a qualifier name, its number and
// whatever follows: "rc1" -> (rc, 1), "beta-2" -> (beta, 2), "1" -> ("", 1).
func (v *Version) parseQualifier(rest string) {
	i := 0
	for i < len(rest) && !isDigit(rest[i]) && rest[i] != '.' && rest[i] != '-' && rest[i] != '_' {
		i++
	}

	v.qualifier = rest[:i]
	rest = strings.TrimLeft(rest[i:], ".-_")

	j := 0
	for j < len(rest) && isDigit(rest[j]) {
		j++
	}

	if j > 0 {
		v.number, _ = strconv.ParseUint(rest[:j], 10, 64)
	}

	v.tail = rest[j:]

	rank, ok := qualifierRanks[v.qualifier]
	if !ok {
		rank = rankUnknown
	}

	v.rank = rank
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// String returns the version as it was written.
func (v *Version) String() string {
	return v.original
}

// IsPrerelease reports whether v carries an alpha, beta, milestone,
// release-candidate or snapshot qualifier.
func (v *Version) IsPrerelease() bool {
	return v.rank < rankRelease
}

// Compare returns -1, 0 or +1 as v is lower than, equal to or higher than o.
// Trailing zeros and release qualifiers are insignificant: 1.0, 1.0.0 and
// 1.0.Final are equal.
func (v *Version) Compare(o *Version) int {
	if c := v.core.Compare(o.core); c != 0 {
		return c
	}

	for i := range max(len(v.extra), len(o.extra)) {
		if c := cmp.Compare(component(v.extra, i), component(o.extra, i)); c != 0 {
			return c
		}
	}

	if c := cmp.Compare(v.rank, o.rank); c != 0 {
		return c
	}

	if v.rank == rankUnknown {
		if c := strings.Compare(v.qualifier, o.qualifier); c != 0 {
			return c
		}
	}

	if c := cmp.Compare(v.number, o.number); c != 0 {
		return c
	}

	return strings.Compare(v.tail, o.tail)
}

func component(nums []uint64, i int) uint64 {
	if i < len(nums) {
		return nums[i]
	}

	return 0
}

// IsDynamic reports whether v must be bound through repository metadata.
func IsDynamic(v string) bool {
	v = strings.TrimSpace(v)
	if v == KeywordLatest || v == KeywordRelease {
		return true
	}

	return strings.HasPrefix(v, "[") || strings.HasPrefix(v, "(")
}

type bound struct {
	version   *Version
	inclusive bool
}

type interval struct {
	lower, upper *bound // nil is unbounded
}

func (iv interval) contains(v *Version) bool {
	if iv.lower != nil {
		c := v.Compare(iv.lower.version)
		if c < 0 || (c == 0 && !iv.lower.inclusive) {
			return false
		}
	}

	if iv.upper != nil {
		c := v.Compare(iv.upper.version)
		if c > 0 || (c == 0 && !iv.upper.inclusive) {
			return false
		}
	}

	return true
}

func (iv interval) namesPrerelease() bool {
	return (iv.lower != nil && iv.lower.version.IsPrerelease()) ||
		(iv.upper != nil && iv.upper.version.IsPrerelease())
}

// Range is a parsed Maven version range. Its intervals are alternatives.
type Range []interval

// Contains reports whether v lies in any interval. Prerelease versions only
// match an interval whose bounds are themselves prereleases.
func (r Range) Contains(v *Version) bool {
	for _, iv := range r {
		if v.IsPrerelease() && !iv.namesPrerelease() {
			continue
		}

		if iv.contains(v) {
			return true
		}
	}

	return false
}

// ParseRange parses a Maven version range such as "[1.0,2.0)", "[1.5,)",
// "(,1.0]" or "[1.2]". Comma-separated ranges are alternatives:
// "(,1.0],[1.2,)".
func ParseRange(expr string) (Range, error) {
	s := strings.TrimSpace(expr)

	var r Range

	for s != "" {
		if s[0] != '[' && s[0] != '(' {
			return nil, fmt.Errorf("invalid version range %q: expected '[' or '('", expr)
		}

		end := strings.IndexAny(s, "])")
		if end < 0 {
			return nil, fmt.Errorf("invalid version range %q: unterminated range", expr)
		}

		iv, err := parseInterval(s[0], s[1:end], s[end])
		if err != nil {
			return nil, fmt.Errorf("invalid version range %q: %w", expr, err)
		}

		r = append(r, iv)

		s = strings.TrimSpace(s[end+1:])
		s = strings.TrimSpace(strings.TrimPrefix(s, ","))
	}

	if len(r) == 0 {
		return nil, fmt.Errorf("invalid version range %q: empty", expr)
	}

	return r, nil
}

func parseInterval(open byte, body string, closing byte) (interval, error) {
	lower, upper, hasComma := strings.Cut(body, ",")
	lower = strings.TrimSpace(lower)
	upper = strings.TrimSpace(upper)

	if !hasComma {
		if open != '[' || closing != ']' || lower == "" {
			return interval{}, fmt.Errorf("exact version must be written [x]")
		}

		v, err := ParseVersion(lower)
		if err != nil {
			return interval{}, err
		}

		b := &bound{version: v, inclusive: true}

		return interval{lower: b, upper: b}, nil
	}

	var iv interval

	if lower != "" {
		v, err := ParseVersion(lower)
		if err != nil {
			return interval{}, err
		}

		iv.lower = &bound{version: v, inclusive: open == '['}
	}

	if upper != "" {
		v, err := ParseVersion(upper)
		if err != nil {
			return interval{}, err
		}

		iv.upper = &bound{version: v, inclusive: closing == ']'}
	}

	if iv.lower != nil && iv.upper != nil && iv.lower.version.Compare(iv.upper.version) > 0 {
		return interval{}, fmt.Errorf("lower bound %s above upper bound %s", lower, upper)
	}

	return iv, nil
}

// SelectVersion binds expr against the candidate versions. Ranges pick the
// highest satisfying candidate; LATEST and RELEASE prefer the metadata's
// latest and release markers and fall back to the highest candidate (RELEASE
// skips prereleases). Candidates that do not start with a number are ignored.
func SelectVersion(expr string, candidates []string, latest, release string) (string, error) {
	expr = strings.TrimSpace(expr)

	switch expr {
	case KeywordLatest:
		if latest != "" {
			return latest, nil
		}

		if v := highest(candidates, func(*Version) bool { return true }); v != nil {
			return v.String(), nil
		}

		return "", fmt.Errorf("%w: %s", ErrNoMatchingVersion, expr)
	case KeywordRelease:
		if release != "" {
			return release, nil
		}

		if v := highest(candidates, func(v *Version) bool { return !v.IsPrerelease() }); v != nil {
			return v.String(), nil
		}

		return "", fmt.Errorf("%w: %s", ErrNoMatchingVersion, expr)
	}

	if !IsDynamic(expr) {
		return expr, nil
	}

	r, err := ParseRange(expr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoMatchingVersion, err)
	}

	if v := highest(candidates, r.Contains); v != nil {
		return v.String(), nil
	}

	return "", fmt.Errorf("%w: %s among %d candidates", ErrNoMatchingVersion, expr, len(candidates))
}

func highest(candidates []string, keep func(*Version) bool) *Version {
	var best *Version

	for _, c := range candidates {
		v, err := ParseVersion(c)
		if err != nil || !keep(v) {
			continue
		}

		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}

	return best
}

// newerOf returns whichever of a and b is the higher version. Unparseable
// values lose to parseable ones.
func newerOf(a, b string) string {
	if a == "" {
		return b
	}

	if b == "" {
		return a
	}

	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)

	switch {
	case errA != nil && errB != nil:
		return a
	case errA != nil:
		return b
	case errB != nil:
		return a
	case vb.Compare(va) > 0:
		return b
	default:
		return a
	}
}
