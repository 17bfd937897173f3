// Package sync implements change detection and conflict resolution between
// the local feature set and the staged remote snapshot.
package sync

import "strings"

// Strategy is one automatic-merge variant tried against a conflicting pair.
// Strategies are attempted in increasing order of whitespace tolerance.
type Strategy string

const (
	// StrategyIgnoreSpaceChange ignores changes in the amount of whitespace.
	StrategyIgnoreSpaceChange Strategy = "ignore-space-change"

	// StrategyIgnoreAllSpace ignores all whitespace when comparing lines.
	StrategyIgnoreAllSpace Strategy = "ignore-all-space"

	// StrategyIgnoreBlankLines ignores changes whose lines are all blank.
	StrategyIgnoreBlankLines Strategy = "ignore-blank-lines"
)

// AllStrategies returns the automatic-merge strategies in attempt order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyIgnoreSpaceChange, StrategyIgnoreAllSpace, StrategyIgnoreBlankLines}
}

// IsValid returns true if the strategy is recognized.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyIgnoreSpaceChange, StrategyIgnoreAllSpace, StrategyIgnoreBlankLines:
		return true
	default:
		return false
	}
}

// String returns the string representation of the strategy.
func (s Strategy) String() string { return string(s) }

// Normalize applies the strategy's whitespace tolerance to document text.
// Two versions that differ only within the tolerance normalize to identical
// text, so an exact merge over the normalized copies resolves them cleanly.
func (s Strategy) Normalize(text string) string {
	lines := strings.Split(text, "\n")
	switch s {
	case StrategyIgnoreSpaceChange:
		for i, line := range lines {
			lines[i] = collapseSpaceRuns(line)
		}
	case StrategyIgnoreAllSpace:
		for i, line := range lines {
			lines[i] = stripWhitespace(line)
		}
	case StrategyIgnoreBlankLines:
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			kept = append(kept, line)
		}
		lines = kept
	}
	return strings.Join(lines, "\n")
}

// collapseSpaceRuns reduces every whitespace run within a line to a single
// space and drops leading and trailing whitespace.
func collapseSpaceRuns(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// ConflictType classifies a modification that no merge strategy resolved.
type ConflictType string

const (
	// ConflictWhitespaceOnly means the versions are identical once all
	// whitespace is stripped. Auto-resolved.
	ConflictWhitespaceOnly ConflictType = "whitespace-only"

	// ConflictCommentsOnly means the versions are identical once pure
	// comment lines are removed. Auto-resolved.
	ConflictCommentsOnly ConflictType = "comments-only"

	// ConflictContentChanges means substantive content differs. Requires
	// manual resolution.
	ConflictContentChanges ConflictType = "content-changes"
)

// Choice is one interactive resolution decision.
type Choice string

const (
	// ChoiceKeepRemote replaces the local content with the remote version.
	ChoiceKeepRemote Choice = "keep-remote"

	// ChoiceKeepLocal keeps the local version, discarding the remote change.
	ChoiceKeepLocal Choice = "keep-local"

	// ChoiceMarkers writes a standard three-part conflict block into the
	// staged copy for later manual editing.
	ChoiceMarkers Choice = "inject-conflict-markers"

	// ChoiceSkip defers the conflict to a future run.
	ChoiceSkip Choice = "skip"

	// ChoiceShowDiff re-displays the diff and prompts again.
	ChoiceShowDiff Choice = "show-diff"
)

// IsValid returns true if the choice is recognized.
func (c Choice) IsValid() bool {
	switch c {
	case ChoiceKeepRemote, ChoiceKeepLocal, ChoiceMarkers, ChoiceSkip, ChoiceShowDiff:
		return true
	default:
		return false
	}
}

// Conflict marker tokens. Merged output containing any of these is treated
// as an unresolved merge.
const (
	MarkerStart  = "<<<<<<<"
	MarkerMiddle = "======="
	MarkerEnd    = ">>>>>>>"
)

// markerTokens in scan order.
var markerTokens = []string{MarkerStart, MarkerMiddle, MarkerEnd}
