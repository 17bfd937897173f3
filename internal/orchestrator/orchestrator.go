// Package orchestrator drives a complete sync run as an ordered sequence of
// phases, each wrapped with events and failure tagging, with cleanup
// guaranteed on every path out.
package orchestrator

import (
	"context"
	"time"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/config"
	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/gherkin"
	"github.com/klauern/featsync/internal/logging"
	"github.com/klauern/featsync/internal/staging"
	fsync "github.com/klauern/featsync/internal/sync"
	"github.com/klauern/featsync/internal/validation"
)

// Phase names, in execution order.
const (
	PhaseConfigValidation       = "configuration-validation"
	PhaseStagingSetup           = "staging-setup"
	PhaseChangeDetection        = "change-detection-and-validation"
	PhaseConflictClassification = "conflict-classification"
	PhaseInteractiveResolution  = "interactive-resolution"
	PhaseCleanup                = "cleanup"
)

// Status is the terminal state of a run.
type Status string

// Run statuses.
const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Options configures run behavior.
type Options struct {
	// DryRun computes and classifies changes without writing any document.
	DryRun bool
	// NonInteractive defers every complex conflict instead of prompting.
	NonInteractive bool
	// Prompter resolves complex conflicts interactively. Required unless
	// NonInteractive or DryRun is set.
	Prompter fsync.Prompter
}

// PhaseResult records one executed phase.
type PhaseResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Counts aggregates per-class document totals for a run.
type Counts struct {
	Simple       int
	AutoResolved int
	Complex      int
	Deferred     int
	Failed       int
}

// Outcome is the structured result of a run. It is populated as far as the
// run progressed, on failure paths included.
type Outcome struct {
	Status          Status
	Err             error
	Phases          []PhaseResult
	Counts          Counts
	DemoCredentials bool

	Changes     *fsync.ChangeSet
	Validation  *validation.BatchResult
	Classified  *fsync.ClassifiedChanges
	Interactive *fsync.InteractiveResult
}

// Orchestrator wires the sync components together and runs them in phases.
type Orchestrator struct {
	cfg    *config.Config
	opts   Options
	bus    *events.Bus
	caches *cache.Manager

	staging   *staging.Manager
	files     *staging.FileReader
	validator *validation.Validator
	resolver  *fsync.Resolver
	diffs     *fsync.Manager

	cleaned bool
}

// New builds an orchestrator and its full component graph from configuration.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	bus := events.New(cfg.Sync.HistoryMax)

	var (
		fileCache    *cache.Cache[string]
		processCache *cache.Cache[fsync.MergeOutput]
		featureCache *cache.Cache[*gherkin.Feature]
		resultCache  *cache.Cache[*validation.Result]
		manager      = cache.NewManager()
	)
	if cfg.Cache.Enabled {
		fileCache = cache.NewFileCache(bus)
		processCache = cache.NewProcessCache[fsync.MergeOutput](bus)
		featureCache = cache.NewValidationCache[*gherkin.Feature](bus)
		resultCache = cache.NewValidationCache[*validation.Result](bus)
		manager = cache.NewManager(fileCache, processCache, featureCache, resultCache)
	}

	source, err := staging.SourceFromURL(cfg.Remote.URL)
	if err != nil {
		return nil, err
	}
	transport := &staging.DirTransport{Source: source, Extension: cfg.Sync.Extension}

	st := staging.New(staging.Options{
		LocalDir:   cfg.Paths.FeaturesDir,
		StagingDir: cfg.Paths.StagingDir,
		Extension:  cfg.Sync.Extension,
		Transport:  transport,
		Bus:        bus,
	})
	files := staging.NewFileReader(fileCache)

	runner := fsync.NewGitMergeRunner(processCache)
	runner.Git = cfg.Sync.MergeTool
	resolver := fsync.NewResolver(st, files, runner, fsync.NewLineDiffer(), bus)

	return &Orchestrator{
		cfg:       cfg,
		opts:      opts,
		bus:       bus,
		caches:    manager,
		staging:   st,
		files:     files,
		validator: validation.New(gherkin.NewCachedParser(featureCache), resultCache),
		resolver:  resolver,
		diffs:     fsync.NewManager(st, files, resolver, bus),
	}, nil
}

// Bus returns the run's event bus so callers can subscribe before Run.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// Run executes the sync pipeline. Phases run strictly in order and a phase
// failure stops the pipeline; cleanup still runs, exactly once, and its own
// failure never masks the original error. The returned outcome is populated
// as far as the run progressed.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	defer logging.Timer("sync-run")()

	outcome := &Outcome{}
	o.bus.Emit(events.SyncStarted, nil)
	defer func() {
		o.bus.Emit(events.SyncFinished, outcome.Status)
	}()

	if err := o.phase(ctx, outcome, PhaseConfigValidation, o.validateConfig(outcome)); err != nil {
		return o.fail(outcome, err)
	}
	if err := o.phase(ctx, outcome, PhaseStagingSetup, o.setupStaging); err != nil {
		return o.fail(outcome, err)
	}
	if err := o.phase(ctx, outcome, PhaseChangeDetection, o.detectAndValidate(outcome)); err != nil {
		return o.fail(outcome, err)
	}
	if err := o.phase(ctx, outcome, PhaseConflictClassification, o.classify(outcome)); err != nil {
		return o.fail(outcome, err)
	}

	if outcome.Classified != nil && len(outcome.Classified.Complex) > 0 {
		if err := o.phase(ctx, outcome, PhaseInteractiveResolution, o.resolveComplex(outcome)); err != nil {
			return o.fail(outcome, err)
		}
	} else {
		logging.Debug("no complex conflicts, skipping interactive resolution",
			logging.Phase(PhaseInteractiveResolution))
	}

	if err := o.phase(ctx, outcome, PhaseCleanup, func(context.Context) error {
		return o.cleanup()
	}); err != nil {
		return o.fail(outcome, err)
	}

	outcome.Status = StatusCompleted
	outcome.Counts = countOutcome(outcome)
	return outcome, nil
}

// phase brackets fn with phase events and wraps its failure with the phase
// name.
func (o *Orchestrator) phase(ctx context.Context, outcome *Outcome, name string, fn func(context.Context) error) error {
	o.bus.Emit(events.PhaseStarted, name)
	logging.Debug("phase started", logging.Phase(name))

	start := time.Now()
	err := fn(ctx)
	result := PhaseResult{Name: name, Duration: time.Since(start), Err: err}
	outcome.Phases = append(outcome.Phases, result)

	if err != nil {
		o.bus.Emit(events.PhaseFailed, result)
		logging.Error("phase failed",
			logging.Phase(name),
			logging.Err(err),
		)
		return &errs.PhaseError{Phase: name, Partial: outcome, Err: err}
	}

	o.bus.Emit(events.PhaseCompleted, result)
	logging.Debug("phase completed", logging.Phase(name))
	return nil
}

// fail records a terminal failure, running cleanup if it hasn't run yet.
func (o *Orchestrator) fail(outcome *Outcome, err error) (*Outcome, error) {
	if cleanErr := o.cleanup(); cleanErr != nil {
		logging.Warn("cleanup after failure also failed", logging.Err(cleanErr))
	}
	outcome.Status = StatusError
	outcome.Err = err
	outcome.Counts = countOutcome(outcome)
	return outcome, err
}

// validateConfig checks configuration and reports a demo-credential
// substitution when it happens.
func (o *Orchestrator) validateConfig(outcome *Outcome) func(context.Context) error {
	return func(context.Context) error {
		demo, err := o.cfg.Validate()
		if err != nil {
			return err
		}
		outcome.DemoCredentials = demo
		if demo {
			logging.Warn("credentials missing, using demo credentials",
				logging.Operation("config"))
			o.bus.Emit(events.ConfigDemoCredentials, o.cfg.Remote.Username)
		}
		o.bus.Emit(events.ConfigValidated, nil)
		return nil
	}
}

// setupStaging recreates the staging area and fetches the remote snapshot.
func (o *Orchestrator) setupStaging(ctx context.Context) error {
	if err := o.staging.Create(); err != nil {
		return err
	}
	return o.staging.Fetch(ctx)
}

// detectAndValidate computes the change set and batch-validates the staged
// snapshot.
func (o *Orchestrator) detectAndValidate(outcome *Outcome) func(context.Context) error {
	return func(ctx context.Context) error {
		cs, err := o.diffs.DetectChanges()
		if err != nil {
			return err
		}
		outcome.Changes = cs

		remote, err := o.staging.ListRemote()
		if err != nil {
			return err
		}
		paths := make([]string, len(remote))
		for i, rel := range remote {
			paths[i] = o.staging.StagedPath(rel)
		}

		batch, err := o.validator.ValidateBatch(ctx, o.files, paths,
			validation.BatchOptions{FanOut: o.cfg.Sync.FanOut}, o.bus)
		if err != nil {
			return err
		}
		outcome.Validation = batch
		return nil
	}
}

// classify partitions the change set and applies auto-resolutions unless this
// is a dry run.
func (o *Orchestrator) classify(outcome *Outcome) func(context.Context) error {
	return func(ctx context.Context) error {
		classified, err := o.diffs.ClassifyChanges(ctx, outcome.Changes)
		if err != nil {
			return err
		}
		outcome.Classified = classified

		if o.opts.DryRun {
			return nil
		}
		return o.resolver.ApplyAutoResolved(classified.AutoResolved)
	}
}

// resolveComplex runs the interactive session, or defers everything when
// running non-interactively.
func (o *Orchestrator) resolveComplex(outcome *Outcome) func(context.Context) error {
	return func(ctx context.Context) error {
		pending := outcome.Classified.Complex

		if o.opts.NonInteractive || o.opts.DryRun || o.opts.Prompter == nil {
			deferred := make([]string, len(pending))
			for i, c := range pending {
				deferred[i] = c.Path
			}
			outcome.Interactive = &fsync.InteractiveResult{Deferred: deferred}
			logging.Info("deferring complex conflicts",
				logging.Operation("interactive"),
				logging.Count(len(deferred)),
			)
			return nil
		}

		result, err := o.resolver.ResolveInteractive(ctx, o.opts.Prompter, pending)
		outcome.Interactive = result
		return err
	}
}

// cleanup removes the staging area, clears all caches, and releases the
// prompter. It runs at most once per orchestrator, whether reached as the
// final phase or from a failure path.
func (o *Orchestrator) cleanup() error {
	if o.cleaned {
		return nil
	}
	o.cleaned = true

	o.caches.Clear()
	if o.opts.Prompter != nil {
		if err := o.opts.Prompter.Close(); err != nil {
			logging.Warn("closing prompter failed", logging.Err(err))
		}
	}
	return o.staging.Clean()
}

// countOutcome derives the aggregate counts from whatever the run produced.
func countOutcome(outcome *Outcome) Counts {
	c := Counts{}
	if outcome.Classified != nil {
		c.Simple = len(outcome.Classified.Simple)
		c.AutoResolved = len(outcome.Classified.AutoResolved)
		c.Complex = len(outcome.Classified.Complex)
		c.Failed = len(outcome.Classified.Failed)
	}
	if outcome.Interactive != nil {
		c.Deferred = len(outcome.Interactive.Deferred)
	}
	return c
}
