package lockfile

import (
	"fmt"
	"strings"

	"github.com/cat21/botbox/pkg/errors"
)

type Reason string

const (
	ReasonMissing      Reason = "not in lock"
	ReasonUnsatisfied  Reason = "locked version does not satisfy the manifest"
	ReasonInvalid      Reason = "constraint or locked version cannot be parsed"
	ReasonUnpinned     Reason = "lock entry does not pin an exact version"
	ReasonStaleLock    Reason = "lock was generated from a different manifest"
)

const contentHashWarning = "%s content-hash does not match %s; it may have been written by a poetry version that hashes differently. Run `poetry lock` if the build fails."

// Mismatch is a single way in which the lock fails to satisfy the manifest.
type Mismatch struct {
	Name       string
	Constraint string
	Locked     string
	Reason     Reason
}

func (m Mismatch) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.Constraint != "" {
		b.WriteString(" " + m.Constraint)
	}
	if m.Locked != "" {
		b.WriteString(" (locked " + m.Locked + ")")
	}
	b.WriteString(": " + string(m.Reason))
	return b.String()
}

// Result is the outcome of Check.
type Result struct {
	Pair       Pair
	Mismatches []Mismatch
	Warnings   []string
}

func (r *Result) OK() bool {
	return len(r.Mismatches) == 0
}

// Err returns a LockMismatch error listing every mismatch, or nil.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		lines[i] = "  " + m.String()
	}
	return errors.LockMismatch(
		fmt.Sprintf("%s is out of date with %s", r.Pair.LockPath, r.Pair.ManifestPath),
		fmt.Errorf("%d problem(s):\n%s", len(lines), strings.Join(lines, "\n")),
	)
}

// Check compares every dependency the manifest declares against the lock.
func Check(project *Project) *Result {
	result := &Result{Pair: project.Pair}
	locked := project.Lock.versions()

	for _, line := range project.Lock.Unpinned {
		result.Mismatches = append(result.Mismatches, Mismatch{Name: line, Reason: ReasonUnpinned})
	}

	for _, dep := range project.Manifest.Dependencies {
		versions, ok := locked[NormalizeName(dep.Name)]
		if !ok {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Name:       dep.Name,
				Constraint: dep.Constraint,
				Reason:     ReasonMissing,
			})
			continue
		}
		if dep.Direct {
			continue
		}
		if m := checkVersions(dep, versions); m != nil {
			result.Mismatches = append(result.Mismatches, *m)
		}
	}

	manifestHash := project.Manifest.ContentHash
	lockHash := project.Lock.ContentHash
	if manifestHash != "" && lockHash != "" && manifestHash != lockHash {
		if result.OK() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(contentHashWarning, project.Pair.LockPath, project.Pair.ManifestPath))
		} else {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Name:   project.Pair.LockPath,
				Reason: ReasonStaleLock,
			})
		}
	}

	return result
}

func checkVersions(dep Dependency, versions []string) *Mismatch {
	constraint, err := ParseConstraint(dep.Constraint)
	if err != nil {
		return &Mismatch{
			Name:       dep.Name,
			Constraint: dep.Constraint,
			Locked:     strings.Join(versions, ", "),
			Reason:     ReasonInvalid,
		}
	}
	for _, v := range versions {
		parsed, err := ParseVersion(v)
		if err != nil {
			return &Mismatch{Name: dep.Name, Constraint: dep.Constraint, Locked: v, Reason: ReasonInvalid}
		}
		if constraint.Check(parsed) {
			return nil
		}
	}
	return &Mismatch{
		Name:       dep.Name,
		Constraint: constraint.String(),
		Locked:     strings.Join(versions, ", "),
		Reason:     ReasonUnsatisfied,
	}
}
