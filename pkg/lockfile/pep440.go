package lockfile

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

var pep440Re = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:([0-9]+)!)?` + // epoch
	`([0-9]+(?:\.[0-9]+)*)` + // release
	`(?:[-_.]?(a|alpha|b|beta|c|rc|pre|preview)[-_.]?([0-9]+)?)?` +
	`(?:-([0-9]+)|[-_.]?(post|rev|r)[-_.]?([0-9]+)?)?` +
	`(?:[-_.]?(dev)[-_.]?([0-9]+)?)?` +
	`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?\s*$`)

// preRank orders pre-release kinds. A dev release of a final version sorts before all
// of them and a final release after.
var preRank = map[string]int{"a": 0, "b": 1, "rc": 2}

const (
	rankDevOnly = -1
	rankFinal   = 3
)

// Version is a Python package version as defined by PEP 440. The release segments are
// compared with go-version; epoch, pre, post, dev and local parts follow PEP 440 ordering.
type Version struct {
	raw      string
	epoch    int
	segments []int
	release  *version.Version
	preKind  string
	pre      int
	post     int
	dev      int
	local    string
}

// ParseVersion parses a PEP 440 version such as 2.9.0.post0, 1.0rc1, 1!2.0 or 1.0+cpu.
func ParseVersion(s string) (*Version, error) {
	m := pep440Re.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid version %q", s)
	}
	v := &Version{raw: strings.TrimSpace(s), post: -1, dev: -1}

	var err error
	if m[1] != "" {
		if v.epoch, err = strconv.Atoi(m[1]); err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	for _, p := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", s, err)
		}
		v.segments = append(v.segments, n)
	}
	if v.release, err = version.NewVersion(joinSegments(v.segments)); err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}

	if m[3] != "" {
		switch strings.ToLower(m[3]) {
		case "a", "alpha":
			v.preKind = "a"
		case "b", "beta":
			v.preKind = "b"
		default:
			v.preKind = "rc"
		}
		v.pre = atoiOrZero(m[4])
	}
	switch {
	case m[5] != "":
		v.post = atoiOrZero(m[5])
	case m[6] != "":
		v.post = atoiOrZero(m[7])
	}
	if m[8] != "" {
		v.dev = atoiOrZero(m[9])
	}
	v.local = strings.ToLower(m[10])
	return v, nil
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (v *Version) String() string {
	return v.raw
}

// IsPrerelease is true for alpha, beta, rc and dev releases.
func (v *Version) IsPrerelease() bool {
	return v.preKind != "" || v.dev >= 0
}

func (v *Version) IsPostrelease() bool {
	return v.post >= 0
}

// Compare returns -1, 0 or 1. Local labels take part in the comparison.
func (v *Version) Compare(o *Version) int {
	return compareVersions(v, o, false)
}

func compareVersions(a, b *Version, ignoreLocal bool) int {
	if c := compareInt(a.epoch, b.epoch); c != 0 {
		return c
	}
	if c := a.release.Compare(b.release); c != 0 {
		return c
	}
	aRank, aPre := a.preKey()
	bRank, bPre := b.preKey()
	if c := compareInt(aRank, bRank); c != 0 {
		return c
	}
	if c := compareInt(aPre, bPre); c != 0 {
		return c
	}
	if c := compareInt(a.post, b.post); c != 0 {
		return c
	}
	if c := compareInt(a.devKey(), b.devKey()); c != 0 {
		return c
	}
	if ignoreLocal {
		return 0
	}
	return compareLocal(a.local, b.local)
}

func (v *Version) preKey() (int, int) {
	switch {
	case v.preKind != "":
		return preRank[v.preKind], v.pre
	case v.post < 0 && v.dev >= 0:
		return rankDevOnly, 0
	default:
		return rankFinal, 0
	}
}

func (v *Version) devKey() int {
	if v.dev < 0 {
		return math.MaxInt
	}
	return v.dev
}

// sameRelease reports whether a and b share epoch and release segments.
func sameRelease(a, b *Version) bool {
	return a.epoch == b.epoch && a.release.Equal(b.release)
}

// compareLocal orders local labels segment by segment; numeric segments sort after
// alphanumeric ones, and a version without a label sorts first.
func compareLocal(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' || r == '_' })
	}
	as, bs := split(a), split(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aErr := strconv.Atoi(as[i])
		bn, bErr := strconv.Atoi(bs[i])
		switch {
		case aErr == nil && bErr == nil:
			if c := compareInt(an, bn); c != 0 {
				return c
			}
		case aErr == nil:
			return 1
		case bErr == nil:
			return -1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(as), len(bs))
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
