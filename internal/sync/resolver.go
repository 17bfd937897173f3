package sync

import (
	"context"
	"strings"
	"unicode"

	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
	"github.com/klauern/featsync/internal/staging"
)

// Outcome is the resolution result for one modified document. Exactly one
// outcome exists per document in a change set's modifications.
type Outcome struct {
	// Path is the document path relative to the feature roots.
	Path string

	// AutoResolved is true when no human input was needed.
	AutoResolved bool

	// Strategy names what resolved the document: a merge strategy, or the
	// content-analysis classification for the fallback cases.
	Strategy string

	// Type is the content-analysis classification.
	Type ConflictType

	// Content is the resolved text when AutoResolved is true.
	Content string
}

// FailedResolution records a document whose resolution raised an error.
type FailedResolution struct {
	Path string
	Err  error
}

// Batch is the result of resolving a set of modifications. A failure on one
// document never prevents processing the rest.
type Batch struct {
	AutoResolved []Outcome
	Manual       []Outcome
	Failed       []FailedResolution
}

// Resolver reconciles two diverging versions of the same document.
type Resolver struct {
	staging *staging.Manager
	files   *staging.FileReader
	runner  MergeRunner
	differ  Differ
	bus     *events.Bus
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(st *staging.Manager, files *staging.FileReader, runner MergeRunner, differ Differ, bus *events.Bus) *Resolver {
	return &Resolver{staging: st, files: files, runner: runner, differ: differ, bus: bus}
}

// Resolve reconciles one modified document, in strict order: automatic merge
// attempts in increasing whitespace tolerance, then content-analysis
// classification, with content-changes left for manual resolution.
//
// A strategy that merges cleanly proves the two versions equivalent under
// its tolerance; the remote version is recorded as the resolved content, the
// same rule the classification fallback applies. A strategy whose merge
// attempt errors is logged and skipped, never aborting the cascade.
func (r *Resolver) Resolve(ctx context.Context, rel string) (Outcome, error) {
	localPath := r.staging.LocalPath(rel)
	stagedPath := r.staging.StagedPath(rel)

	local, err := r.files.ReadFile(localPath)
	if err != nil {
		return Outcome{}, &errs.ConflictError{Feature: rel, Err: err}
	}
	remote, err := r.files.ReadFile(stagedPath)
	if err != nil {
		return Outcome{}, &errs.ConflictError{Feature: rel, Err: err}
	}

	for _, strategy := range AllStrategies() {
		out, err := r.runner.Merge(ctx, localPath, stagedPath, strategy)
		if err != nil {
			logging.Warn("merge strategy failed",
				logging.Feature(rel),
				logging.Strategy(strategy.String()),
				logging.Err(err),
			)
			continue
		}
		if out.Clean() {
			logging.Debug("merge strategy succeeded",
				logging.Feature(rel),
				logging.Strategy(strategy.String()),
			)
			outcome := Outcome{
				Path:         rel,
				AutoResolved: true,
				Strategy:     strategy.String(),
				Content:      remote,
			}
			r.emit(events.ConflictResolved, outcome)
			return outcome, nil
		}
	}

	outcome := r.classify(rel, local, remote)
	if outcome.AutoResolved {
		r.emit(events.ConflictResolved, outcome)
	} else {
		r.emit(events.ConflictManual, outcome)
	}
	return outcome, nil
}

// classify applies the content-analysis fallback, in order: whitespace-only,
// comments-only, content-changes. The remote version wins for the two
// auto-resolvable classes.
func (r *Resolver) classify(rel, local, remote string) Outcome {
	switch {
	case stripWhitespace(local) == stripWhitespace(remote):
		return Outcome{
			Path:         rel,
			AutoResolved: true,
			Strategy:     string(ConflictWhitespaceOnly),
			Type:         ConflictWhitespaceOnly,
			Content:      remote,
		}
	case stripCommentLines(local) == stripCommentLines(remote):
		return Outcome{
			Path:         rel,
			AutoResolved: true,
			Strategy:     string(ConflictCommentsOnly),
			Type:         ConflictCommentsOnly,
			Content:      remote,
		}
	default:
		return Outcome{
			Path: rel,
			Type: ConflictContentChanges,
		}
	}
}

// ResolveAll processes the modification set with per-document isolation: a
// failure while resolving one document is captured and does not prevent
// processing the rest of the batch.
func (r *Resolver) ResolveAll(ctx context.Context, rels []string) (*Batch, error) {
	defer logging.Timer("resolve-all")()

	batch := &Batch{}
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		outcome, err := r.Resolve(ctx, rel)
		if err != nil {
			logging.Warn("resolution failed",
				logging.Feature(rel),
				logging.Err(err),
			)
			batch.Failed = append(batch.Failed, FailedResolution{Path: rel, Err: err})
			continue
		}
		if outcome.AutoResolved {
			batch.AutoResolved = append(batch.AutoResolved, outcome)
		} else {
			batch.Manual = append(batch.Manual, outcome)
		}
	}

	logging.Debug("batch resolution completed",
		logging.Operation("resolve"),
		logging.Count(len(batch.AutoResolved)+len(batch.Manual)),
	)
	return batch, nil
}

// DiffFor returns a display diff between the local and staged versions.
func (r *Resolver) DiffFor(rel string) (string, error) {
	local, err := r.files.ReadFile(r.staging.LocalPath(rel))
	if err != nil {
		return "", err
	}
	remote, err := r.files.ReadFile(r.staging.StagedPath(rel))
	if err != nil {
		return "", err
	}
	return r.differ.Diff(local, remote), nil
}

func (r *Resolver) emit(name string, payload any) {
	if r.bus != nil {
		r.bus.Emit(name, payload)
	}
}

// stripWhitespace removes every whitespace rune.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// stripCommentLines drops pure comment lines, leaving other lines untouched.
func stripCommentLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
