package image

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/lockfile"
	"github.com/cat21/botbox/pkg/util/console"
)

// Freeze lists the packages installed in an image as sorted, normalized name==version lines.
func Freeze(ctx context.Context, dockerCommand command.Command, imageName string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	err := dockerCommand.Run(ctx, command.RunOptions{
		Image:  imageName,
		Args:   []string{"python", "-m", "pip", "freeze", "--all"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		console.Debug(stderr.String())
		return nil, fmt.Errorf("Failed to list packages in %s: %w", imageName, err)
	}
	return parseFreeze(stdout.String()), nil
}

func parseFreeze(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, version, ok := strings.Cut(line, "=="); ok {
			line = lockfile.NormalizeName(name) + "==" + strings.TrimSpace(version)
		} else if name, ref, ok := strings.Cut(line, " @ "); ok {
			line = lockfile.NormalizeName(name) + " @ " + strings.TrimSpace(ref)
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

// FreezeDiff is the difference between two installed package sets.
type FreezeDiff struct {
	OnlyA []string
	OnlyB []string
}

func (d FreezeDiff) Empty() bool {
	return len(d.OnlyA) == 0 && len(d.OnlyB) == 0
}

func (d FreezeDiff) String() string {
	var b strings.Builder
	for _, line := range d.OnlyA {
		b.WriteString("- " + line + "\n")
	}
	for _, line := range d.OnlyB {
		b.WriteString("+ " + line + "\n")
	}
	return b.String()
}

// CompareFreeze reports the lines present in only one of two Freeze results.
func CompareFreeze(a, b []string) FreezeDiff {
	inA := make(map[string]bool, len(a))
	for _, line := range a {
		inA[line] = true
	}
	inB := make(map[string]bool, len(b))
	for _, line := range b {
		inB[line] = true
	}

	var diff FreezeDiff
	for _, line := range a {
		if !inB[line] {
			diff.OnlyA = append(diff.OnlyA, line)
		}
	}
	for _, line := range b {
		if !inA[line] {
			diff.OnlyB = append(diff.OnlyB, line)
		}
	}
	return diff
}
