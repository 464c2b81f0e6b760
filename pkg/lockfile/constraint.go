package lockfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	nameSeparatorRe = regexp.MustCompile(`[-_.]+`)
	constraintRe    = regexp.MustCompile(`(===|==|!=|~=|>=|<=|\^|~|>|<|=)?\s*([0-9A-Za-z][0-9A-Za-z.*+!_-]*|\*)`)
)

// NormalizeName normalizes a Python distribution name so that Foo_Bar, foo-bar and
// foo.bar compare equal.
func NormalizeName(name string) string {
	return nameSeparatorRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Constraint is a Python version specifier (PEP 440 or poetry syntax). Alternatives are
// OR-ed; each alternative is a set of AND-ed clauses. An empty alternative matches any
// version.
type Constraint struct {
	raw          string
	alternatives [][]clause
}

type clause struct {
	op string
	v  *Version
}

// ParseConstraint translates a specifier such as "^2.31", ">=1.0,<2", "~=0.27.0",
// "1.2.*" or ">=1 <2 || ^3" into a Constraint.
func ParseConstraint(spec string) (*Constraint, error) {
	c := &Constraint{raw: strings.TrimSpace(spec)}

	for _, part := range strings.Split(c.raw, "||") {
		alternatives, err := translateConjunction(part)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint %q: %w", spec, err)
		}
		c.alternatives = append(c.alternatives, alternatives...)
	}
	return c, nil
}

// Check reports whether v satisfies any alternative.
func (c *Constraint) Check(v *Version) bool {
	for _, alt := range c.alternatives {
		ok := true
		for _, cl := range alt {
			if !cl.matches(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c *Constraint) String() string {
	if c.raw == "" {
		return "*"
	}
	return c.raw
}

// matches applies PEP 440 comparison semantics: a specifier without a local label
// ignores the candidate's label, > excludes post releases of the given version and
// < excludes its pre-releases unless the given version is itself one.
func (cl clause) matches(v *Version) bool {
	ignoreLocal := cl.v.local == ""
	cmp := compareVersions(v, cl.v, ignoreLocal)
	switch cl.op {
	case "===":
		return strings.EqualFold(v.raw, cl.v.raw)
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		if cmp <= 0 {
			return false
		}
		postOfSpec := sameRelease(v, cl.v) && v.preKind == cl.v.preKind && v.pre == cl.v.pre
		return !(v.IsPostrelease() && !cl.v.IsPostrelease() && postOfSpec)
	case "<":
		if cmp >= 0 {
			return false
		}
		return !(v.IsPrerelease() && !cl.v.IsPrerelease() && sameRelease(v, cl.v))
	}
	return false
}

// translateConjunction translates comma or space separated clauses into OR-ed
// alternatives of AND-ed clauses.
func translateConjunction(spec string) ([][]clause, error) {
	spec = strings.TrimSpace(strings.ReplaceAll(spec, ",", " "))
	if spec == "" || spec == "*" {
		return [][]clause{nil}, nil
	}

	matches := constraintRe.FindAllStringSubmatchIndex(spec, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no version found")
	}

	result := [][]clause{nil}
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(spec[consumed:m[0]]) != "" {
			return nil, fmt.Errorf("unexpected %q", strings.TrimSpace(spec[consumed:m[0]]))
		}
		consumed = m[1]

		op := ""
		if m[2] >= 0 {
			op = spec[m[2]:m[3]]
		}
		alternatives, err := translateClause(op, spec[m[4]:m[5]])
		if err != nil {
			return nil, err
		}

		// AND distributes over the OR-ed alternatives of the clause
		next := make([][]clause, 0, len(result)*len(alternatives))
		for _, r := range result {
			for _, alt := range alternatives {
				joined := append(append([]clause{}, r...), alt...)
				next = append(next, joined)
			}
		}
		result = next
	}
	if strings.TrimSpace(spec[consumed:]) != "" {
		return nil, fmt.Errorf("unexpected %q", strings.TrimSpace(spec[consumed:]))
	}
	return result, nil
}

func translateClause(op string, raw string) ([][]clause, error) {
	if raw == "*" {
		if op != "" && op != "==" && op != "=" {
			return nil, fmt.Errorf("wildcard cannot be used with %s", op)
		}
		return [][]clause{nil}, nil
	}

	if strings.HasSuffix(raw, ".*") {
		v, err := ParseVersion(strings.TrimSuffix(raw, ".*"))
		if err != nil {
			return nil, err
		}
		if v.preKind != "" || v.post >= 0 || v.dev >= 0 || v.local != "" {
			return nil, fmt.Errorf("wildcard must follow a release, got %s", raw)
		}
		// The series starts at its first dev release and ends before the next one.
		lower := seriesStart(v.epoch, v.segments)
		upper := seriesStart(v.epoch, bump(v.segments, len(v.segments)-1))
		switch op {
		case "", "==", "=":
			return [][]clause{{{">=", lower}, {"<", upper}}}, nil
		case "!=":
			return [][]clause{{{"<", lower}}, {{">=", upper}}}, nil
		default:
			return nil, fmt.Errorf("wildcard cannot be used with %s", op)
		}
	}

	v, err := ParseVersion(raw)
	if err != nil {
		return nil, err
	}

	switch op {
	case "===":
		return [][]clause{{{"===", v}}}, nil
	case "", "==", "=":
		return [][]clause{{{"==", v}}}, nil
	case "!=", ">=", "<=", ">", "<":
		return [][]clause{{{op, v}}}, nil
	case "^":
		idx := len(v.segments) - 1
		for i, n := range v.segments {
			if n != 0 {
				idx = i
				break
			}
		}
		return [][]clause{{{">=", v}, {"<", releaseOf(v.epoch, bump(v.segments, idx))}}}, nil
	case "~":
		idx := 1
		if len(v.segments) == 1 {
			idx = 0
		}
		return [][]clause{{{">=", v}, {"<", releaseOf(v.epoch, bump(v.segments, idx))}}}, nil
	case "~=":
		if len(v.segments) < 2 {
			return nil, fmt.Errorf("~= needs at least two version components, got %s", raw)
		}
		return [][]clause{{{">=", v}, {"<", releaseOf(v.epoch, bump(v.segments, len(v.segments)-2))}}}, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func releaseOf(epoch int, segments []int) *Version {
	s := joinSegments(segments)
	if epoch > 0 {
		s = strconv.Itoa(epoch) + "!" + s
	}
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func seriesStart(epoch int, segments []int) *Version {
	v := releaseOf(epoch, segments)
	v.dev = 0
	v.raw += ".dev0"
	return v
}

// bump truncates after idx and increments the segment at idx.
func bump(segments []int, idx int) []int {
	out := append([]int{}, segments[:idx+1]...)
	out[idx]++
	return out
}

func joinSegments(segments []int) string {
	parts := make([]string, len(segments))
	for i, n := range segments {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
