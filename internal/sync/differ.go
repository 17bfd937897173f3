package sync

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Differ produces a human-readable diff between local and remote content for
// interactive display.
type Differ interface {
	Diff(local, remote string) string
}

// LineDiffer renders a line-oriented diff using diffmatchpatch in line mode.
type LineDiffer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewLineDiffer creates a differ.
func NewLineDiffer() *LineDiffer {
	return &LineDiffer{dmp: diffmatchpatch.New()}
}

// Diff returns a unified-style text diff with -/+/space line prefixes.
func (d *LineDiffer) Diff(local, remote string) string {
	a, b, lines := d.dmp.DiffLinesToChars(local, remote)
	diffs := d.dmp.DiffCharsToLines(d.dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range splitKeepNonEmpty(diff.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// splitKeepNonEmpty splits text into lines, dropping only a trailing empty
// segment produced by a final newline.
func splitKeepNonEmpty(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
