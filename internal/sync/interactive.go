package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
)

// Prompter is the interactive collaborator offered each complex conflict.
// Satisfied by the CLI prompt in production and by scripted stubs in tests.
type Prompter interface {
	// Choose returns the resolution choice for one conflicted document.
	Choose(feature string) (Choice, error)

	// ShowDiff displays a diff for the document before re-prompting.
	ShowDiff(feature, diff string) error

	// Close releases any resources held by the interactive session.
	Close() error
}

// Applied records one interactively resolved document.
type Applied struct {
	Path   string
	Choice Choice
}

// InteractiveResult is the outcome of an interactive resolution session.
// Skipped conflicts are deferred to a future run, never dropped.
type InteractiveResult struct {
	Resolved []Applied
	Deferred []string
}

// ResolveInteractive offers each complex conflict to the prompter and
// applies the chosen resolution. The per-document loop terminates only on a
// choice other than show-diff.
func (r *Resolver) ResolveInteractive(ctx context.Context, prompter Prompter, complex []Outcome) (*InteractiveResult, error) {
	result := &InteractiveResult{}

	for _, outcome := range complex {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		choice, err := r.promptLoop(prompter, outcome.Path)
		if err != nil {
			return result, &errs.InteractionError{Err: err}
		}

		if err := r.apply(outcome.Path, choice); err != nil {
			return result, err
		}

		if choice == ChoiceSkip {
			result.Deferred = append(result.Deferred, outcome.Path)
		} else {
			result.Resolved = append(result.Resolved, Applied{Path: outcome.Path, Choice: choice})
		}
		r.emit(events.UserChoice, Applied{Path: outcome.Path, Choice: choice})

		logging.Info("conflict resolved interactively",
			logging.Feature(outcome.Path),
			logging.Operation("interactive"),
			logging.Strategy(string(choice)),
		)
	}

	return result, nil
}

// promptLoop re-prompts after each show-diff request.
func (r *Resolver) promptLoop(prompter Prompter, rel string) (Choice, error) {
	for {
		choice, err := prompter.Choose(rel)
		if err != nil {
			return "", err
		}
		if choice != ChoiceShowDiff {
			return choice, nil
		}
		diff, err := r.DiffFor(rel)
		if err != nil {
			return "", err
		}
		if err := prompter.ShowDiff(rel, diff); err != nil {
			return "", err
		}
	}
}

// apply carries out one resolution choice.
func (r *Resolver) apply(rel string, choice Choice) error {
	localPath := r.staging.LocalPath(rel)
	stagedPath := r.staging.StagedPath(rel)

	switch choice {
	case ChoiceKeepRemote:
		remote, err := r.files.ReadFile(stagedPath)
		if err != nil {
			return err
		}
		return r.files.WriteFile(localPath, remote)

	case ChoiceKeepLocal:
		local, err := r.files.ReadFile(localPath)
		if err != nil {
			return err
		}
		return r.files.WriteFile(stagedPath, local)

	case ChoiceMarkers:
		local, err := r.files.ReadFile(localPath)
		if err != nil {
			return err
		}
		remote, err := r.files.ReadFile(stagedPath)
		if err != nil {
			return err
		}
		return r.files.WriteFile(stagedPath, conflictBlock(local, remote))

	case ChoiceSkip:
		return nil

	default:
		return &errs.ConflictError{Feature: rel, Err: fmt.Errorf("unknown choice %q", choice)}
	}
}

// conflictBlock builds a standard three-part conflict block for later manual
// editing.
func conflictBlock(local, remote string) string {
	var sb strings.Builder
	sb.WriteString(MarkerStart + " local\n")
	sb.WriteString(strings.TrimRight(local, "\n"))
	sb.WriteString("\n" + MarkerMiddle + "\n")
	sb.WriteString(strings.TrimRight(remote, "\n"))
	sb.WriteString("\n" + MarkerEnd + " remote\n")
	return sb.String()
}

// ApplyAutoResolved writes each auto-resolved document's content to the
// local path.
func (r *Resolver) ApplyAutoResolved(outcomes []Outcome) error {
	for _, outcome := range outcomes {
		if !outcome.AutoResolved {
			continue
		}
		if err := r.files.WriteFile(r.staging.LocalPath(outcome.Path), outcome.Content); err != nil {
			return err
		}
	}
	return nil
}
