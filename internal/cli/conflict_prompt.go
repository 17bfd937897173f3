package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauern/featsync/internal/sync"
	"github.com/klauern/featsync/internal/ui"
)

// ConflictPrompter handles interactive conflict resolution with users. It
// implements sync.Prompter over stdin/stdout.
type ConflictPrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewConflictPrompter creates a prompter reading from stdin and writing to
// stdout.
func NewConflictPrompter() *ConflictPrompter {
	return &ConflictPrompter{
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// NewConflictPrompterIO creates a prompter over arbitrary streams, for tests
// and scripted sessions.
func NewConflictPrompterIO(in io.Reader, out io.Writer) *ConflictPrompter {
	return &ConflictPrompter{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// menu lists the resolution choices in prompt order.
var menu = []struct {
	label  string
	choice sync.Choice
}{
	{"Keep remote version (overwrite local)", sync.ChoiceKeepRemote},
	{"Keep local version (push to remote)", sync.ChoiceKeepLocal},
	{"Inject conflict markers for manual editing", sync.ChoiceMarkers},
	{"Skip this file (resolve later)", sync.ChoiceSkip},
	{"Show diff", sync.ChoiceShowDiff},
}

// Choose prompts for a resolution choice for one conflicted document,
// re-prompting on invalid input.
func (cp *ConflictPrompter) Choose(feature string) (sync.Choice, error) {
	fmt.Fprintf(cp.out, "\n%s %s\n", ui.Header("Conflict:"), ui.Bold(feature))
	fmt.Fprintln(cp.out, "How would you like to resolve this conflict?")
	for i, item := range menu {
		fmt.Fprintf(cp.out, "  %d. %s\n", i+1, item.label)
	}
	fmt.Fprintf(cp.out, "\nEnter choice [1-%d]: ", len(menu))

	for {
		response, err := cp.reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		n, err := strconv.Atoi(strings.TrimSpace(response))
		if err != nil || n < 1 || n > len(menu) {
			fmt.Fprintf(cp.out, "Invalid choice. Enter 1-%d: ", len(menu))
			continue
		}
		return menu[n-1].choice, nil
	}
}

// ShowDiff displays the diff with colored added/removed lines.
func (cp *ConflictPrompter) ShowDiff(feature, diff string) error {
	fmt.Fprintf(cp.out, "\n%s %s\n", ui.Header("Diff:"), ui.Bold(feature))
	fmt.Fprintln(cp.out, strings.Repeat("-", 50))

	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(cp.out, ui.Added(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(cp.out, ui.Removed(line))
		default:
			fmt.Fprintln(cp.out, ui.Dim(line))
		}
	}

	fmt.Fprintln(cp.out, strings.Repeat("-", 50))
	return nil
}

// Close releases the prompter. Stdin is not owned by the prompter, so this
// is a no-op.
func (cp *ConflictPrompter) Close() error { return nil }
