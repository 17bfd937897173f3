package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/gherkin"
	"github.com/klauern/featsync/internal/orchestrator"
	"github.com/klauern/featsync/internal/progress"
	"github.com/klauern/featsync/internal/staging"
	"github.com/klauern/featsync/internal/ui"
	"github.com/klauern/featsync/internal/validation"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display the effective configuration",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Never print credentials.
			cfg.Remote.Token = ""
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize local feature files with the remote snapshot",
		Description: `Fetch the remote feature snapshot into a staging area, detect
   changes against the local feature directory, auto-resolve what can be
   resolved, and prompt for the rest.

   Examples:
     featsync sync
     featsync sync --dry-run
     featsync sync --non-interactive`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview changes without modifying files",
			},
			&cli.BoolFlag{
				Name:  "non-interactive",
				Usage: "Defer complex conflicts instead of prompting",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			opts := orchestrator.Options{
				DryRun:         cmd.Bool("dry-run"),
				NonInteractive: cmd.Bool("non-interactive"),
			}
			if !opts.DryRun && !opts.NonInteractive {
				prompter := NewConflictPrompter()
				defer func() { _ = prompter.Close() }()
				opts.Prompter = prompter
			}

			orch, err := orchestrator.New(cfg, opts)
			if err != nil {
				return err
			}
			attachProgress(orch.Bus())

			outcome, runErr := orch.Run(ctx)
			printOutcome(outcome)
			if runErr != nil {
				if phase, ok := errs.PhaseOf(runErr); ok {
					return fmt.Errorf("sync failed during %s: %w", phase, runErr)
				}
				return runErr
			}
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate feature files without syncing",
		UsageText: "featsync validate [options] [path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Report format: text, tsv, or json",
			},
			&cli.IntFlag{
				Name:  "fan-out",
				Usage: "Maximum concurrent validations",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			format, err := validation.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			paths, err := collectPaths(cmd.Args().Slice(), cfg.Paths.FeaturesDir, cfg.Sync.Extension)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no feature files found")
			}

			bus := events.New(cfg.Sync.HistoryMax)
			fileCache := cache.NewFileCache(bus)
			validator := validation.New(
				gherkin.NewCachedParser(cache.NewValidationCache[*gherkin.Feature](bus)),
				cache.NewValidationCache[*validation.Result](bus),
			)

			bar := progress.Simple(int64(len(paths)), "Validating")
			sub := bar.Attach(bus, events.ValidationProgress)
			defer bus.Off(sub)

			fanOut := int(cmd.Int("fan-out"))
			if fanOut == 0 {
				fanOut = cfg.Sync.FanOut
			}

			batch, err := validator.ValidateBatch(ctx, staging.NewFileReader(fileCache), paths,
				validation.BatchOptions{FanOut: fanOut}, bus)
			if err != nil {
				return err
			}
			_ = bar.Finish()

			if err := validation.Render(os.Stdout, batch, format); err != nil {
				return err
			}
			if batch.Summary.Invalid > 0 || batch.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d files failed validation",
					batch.Summary.Invalid+batch.Summary.Failed, batch.Summary.Total)
			}
			return nil
		},
	}
}

// attachProgress renders validation progress during a sync run.
func attachProgress(bus *events.Bus) {
	var bar *progress.Bar
	bus.On(events.ValidationProgress, func(ev events.Event) {
		p, ok := ev.Payload.(validation.Progress)
		if !ok {
			return
		}
		if bar == nil {
			bar = progress.Simple(int64(p.Total), "Validating")
		}
		_ = bar.Set(p.Completed)
	})
	bus.On(events.ValidationCompleted, func(events.Event) {
		if bar != nil {
			_ = bar.Finish()
		}
	})
}

// printOutcome renders a run summary.
func printOutcome(outcome *orchestrator.Outcome) {
	if outcome == nil {
		return
	}

	if outcome.DemoCredentials {
		fmt.Printf("%s using demo credentials; configure remote credentials for production use\n",
			ui.Warning(ui.SymbolWarning))
	}

	fmt.Println(ui.Header("Sync summary"))
	c := outcome.Counts
	fmt.Printf("  simple changes:  %d\n", c.Simple)
	fmt.Printf("  auto-resolved:   %d\n", c.AutoResolved)
	fmt.Printf("  complex:         %d\n", c.Complex)
	if c.Deferred > 0 {
		fmt.Printf("  deferred:        %s\n", ui.Warning(fmt.Sprint(c.Deferred)))
	}
	if c.Failed > 0 {
		fmt.Printf("  failed:          %s\n", ui.Error(fmt.Sprint(c.Failed)))
		if outcome.Classified != nil {
			for _, f := range outcome.Classified.Failed {
				fmt.Printf("    %s %s: %v\n", ui.Error(ui.SymbolError), f.Path, f.Err)
			}
		}
	}

	if outcome.Validation != nil {
		s := outcome.Validation.Summary
		fmt.Printf("  validated:       %d (%d invalid, %d warnings)\n", s.Total, s.Invalid, s.Warnings)
	}

	switch outcome.Status {
	case orchestrator.StatusCompleted:
		fmt.Printf("%s sync completed\n", ui.Success(ui.SymbolSuccess))
	case orchestrator.StatusError:
		fmt.Printf("%s sync failed\n", ui.Error(ui.SymbolError))
	}
}

// collectPaths expands the argument list into feature file paths. With no
// arguments the configured features directory is scanned.
func collectPaths(args []string, defaultDir, ext string) ([]string, error) {
	if ext == "" {
		ext = staging.DefaultExtension
	}
	if len(args) == 0 {
		args = []string{defaultDir}
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}
