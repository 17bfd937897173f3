package validation

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
)

// DefaultFanOut bounds how many documents are validated concurrently.
const DefaultFanOut = 5

// ContentSource supplies document text for batch validation. Satisfied by
// staging.FileReader in production and by stubs in tests.
type ContentSource interface {
	ReadFile(path string) (string, error)
}

// BatchOptions configures batch validation behavior.
type BatchOptions struct {
	// FanOut is the maximum number of documents validated concurrently.
	// Defaults to DefaultFanOut.
	FanOut int
}

// BatchFailure records a document that could not be validated at all.
type BatchFailure struct {
	Path string
	Err  error
}

// Progress is the payload of validation.progress events.
type Progress struct {
	Completed int
	Total     int
}

// Counts returns the completed and total counts for progress display.
func (p Progress) Counts() (completed, total int) {
	return p.Completed, p.Total
}

// Summary aggregates counts across a batch.
type Summary struct {
	Total     int
	Valid     int
	Invalid   int
	Warnings  int
	Failed    int
	Tags      []string
	Languages []string
}

// BatchResult holds per-file results plus the aggregate summary.
type BatchResult struct {
	Results []*Result
	Failed  []BatchFailure
	Summary Summary
}

// ValidateBatch validates paths with bounded concurrency, emitting a
// validation.progress event after each completed batch. Completion order
// within a batch is unspecified; results are attributed per document
// regardless. A document whose text cannot be read lands in Failed without
// aborting the rest of the batch.
func (v *Validator) ValidateBatch(ctx context.Context, source ContentSource, paths []string, opts BatchOptions, bus *events.Bus) (*BatchResult, error) {
	defer logging.Timer("validate-batch")()

	fanOut := opts.FanOut
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}

	batch := &BatchResult{Results: make([]*Result, 0, len(paths))}
	results := make([]*Result, len(paths))
	failures := make([]error, len(paths))

	for start := 0; start < len(paths); start += fanOut {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+fanOut, len(paths))
		g, _ := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				content, err := source.ReadFile(paths[i])
				if err != nil {
					failures[i] = err
					return nil
				}
				results[i] = v.Validate(content, paths[i])
				return nil
			})
		}
		_ = g.Wait()

		if bus != nil {
			bus.Emit(events.ValidationProgress, Progress{Completed: end, Total: len(paths)})
		}
	}

	for i, path := range paths {
		switch {
		case failures[i] != nil:
			batch.Failed = append(batch.Failed, BatchFailure{Path: path, Err: failures[i]})
		case results[i] != nil:
			batch.Results = append(batch.Results, results[i])
		}
	}
	batch.Summary = summarize(batch)

	if bus != nil {
		bus.Emit(events.ValidationCompleted, batch.Summary)
	}
	return batch, nil
}

// summarize computes the aggregate counts, tag set, and language set.
func summarize(batch *BatchResult) Summary {
	s := Summary{
		Total:  len(batch.Results) + len(batch.Failed),
		Failed: len(batch.Failed),
	}
	tags := make(map[string]bool)
	langs := make(map[string]bool)

	for _, r := range batch.Results {
		if r.IsValid {
			s.Valid++
		} else {
			s.Invalid++
		}
		s.Warnings += len(r.Warnings)
		if r.Metadata != nil {
			for _, tag := range r.Metadata.AllTags() {
				tags[tag] = true
			}
			langs[r.Metadata.Language] = true
		}
	}

	s.Tags = sortedKeys(tags)
	s.Languages = sortedKeys(langs)
	return s
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
