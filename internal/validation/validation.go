// Package validation runs structural and business-rule checks over parsed
// feature files.
//
// Structural failures make a document invalid; style findings are warnings
// and never affect validity.
package validation

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/gherkin"
	"github.com/klauern/featsync/internal/logging"
)

// Style thresholds. Documents beyond these limits get warnings, not errors.
const (
	// MaxStepsPerScenario is the step count above which a scenario is
	// flagged as oversized.
	MaxStepsPerScenario = 10
	// MaxStepTextLength is the step text length above which a step is
	// flagged as oversized.
	MaxStepTextLength = 100
	// LargeDocumentScenarios is the scenario count above which a document
	// is expected to carry at least one priority-class tag.
	LargeDocumentScenarios = 5
	// MinNameLength is the name length below which a name is flagged as
	// near-empty.
	MinNameLength = 3
)

// genericNames are names that say nothing about what is being specified.
var genericNames = map[string]bool{
	"test": true, "feature": true, "scenario": true, "todo": true,
	"tbd": true, "untitled": true, "new feature": true,
}

// priorityTags are the tags that mark a document as triaged.
var priorityTags = map[string]bool{
	"@critical": true, "@high": true, "@medium": true, "@low": true,
	"@smoke": true, "@regression": true, "@priority": true, "@p0": true,
	"@p1": true, "@p2": true,
}

// Result is the outcome of validating one document.
type Result struct {
	// Path is the source path of the document.
	Path string
	// IsValid is false when any structural check failed.
	IsValid bool
	// Errors lists structural failures.
	Errors []string
	// Warnings lists style findings. Warnings never affect IsValid.
	Warnings []string
	// Metadata is the parsed feature tree, nil when parsing failed.
	Metadata *gherkin.Feature
}

// Err converts the result's errors into a typed validation error, or nil.
func (r *Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &errs.ValidationError{Path: r.Path, Messages: r.Errors}
}

// Validator checks feature documents, memoizing results by content hash.
type Validator struct {
	parser  *gherkin.CachedParser
	results *cache.Cache[*Result]
}

// New creates a validator backed by the given parser and result cache. A nil
// result cache disables memoization.
func New(parser *gherkin.CachedParser, results *cache.Cache[*Result]) *Validator {
	return &Validator{parser: parser, results: results}
}

// Validate checks one document. The result cache is consulted by
// (sourcePath, contentHash) before the parser is invoked, so an unchanged
// document is never re-validated.
func (v *Validator) Validate(content, sourcePath string) *Result {
	key := cache.ValidationKey(sourcePath, cache.Hash(content))
	if v.results != nil {
		if cached, ok := v.results.Get(key); ok {
			return cached
		}
	}

	result := v.validate(content, sourcePath)
	if v.results != nil {
		v.results.Set(key, result)
	}
	return result
}

func (v *Validator) validate(content, sourcePath string) *Result {
	result := &Result{Path: sourcePath, IsValid: true}

	feature, err := v.parser.Parse(content, sourcePath)
	if err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Metadata = feature

	v.checkStructure(feature, result)
	v.checkStyle(feature, result)

	logging.Debug("validated document",
		logging.Path(sourcePath),
		logging.Operation("validate"),
		logging.Count(len(result.Errors)+len(result.Warnings)),
	)
	return result
}

// checkStructure applies the checks that make a document invalid.
func (v *Validator) checkStructure(feature *gherkin.Feature, result *Result) {
	scenarios := feature.Scenarios()
	if len(scenarios) == 0 {
		result.addError("feature has no scenarios")
	}

	for _, sc := range scenarios {
		if sc.Type == gherkin.TypeOutline && exampleRowCount(sc) == 0 {
			result.addError(fmt.Sprintf("scenario outline %q has no example rows", sc.Name))
		}
	}

	for _, tag := range feature.AllTags() {
		if !strings.HasPrefix(tag, gherkin.TagSigil) {
			result.addError(fmt.Sprintf("tag %q does not begin with %s", tag, gherkin.TagSigil))
		}
	}
}

// checkStyle applies the findings that are warnings only.
func (v *Validator) checkStyle(feature *gherkin.Feature, result *Result) {
	checkName(feature.Name, "feature", result)

	if strings.TrimSpace(feature.Description) == "" {
		result.addWarning("feature has no description")
	}

	if _, err := language.Parse(feature.Language); err != nil {
		result.addWarning(fmt.Sprintf("unrecognized language %q", feature.Language))
	}

	scenarios := feature.Scenarios()
	seen := make(map[string]bool)
	for _, sc := range scenarios {
		checkName(sc.Name, "scenario", result)

		if seen[sc.Name] {
			result.addWarning(fmt.Sprintf("duplicate scenario name %q", sc.Name))
		}
		seen[sc.Name] = true

		if len(sc.Steps) > MaxStepsPerScenario {
			result.addWarning(fmt.Sprintf("scenario %q has %d steps (max %d recommended)",
				sc.Name, len(sc.Steps), MaxStepsPerScenario))
		}
		for _, step := range sc.Steps {
			if len(step.Text) > MaxStepTextLength {
				result.addWarning(fmt.Sprintf("scenario %q: step text exceeds %d characters",
					sc.Name, MaxStepTextLength))
			}
		}
		if missing := missingCoverage(sc, feature.Background); len(missing) > 0 {
			result.addWarning(fmt.Sprintf("scenario %q missing %s coverage",
				sc.Name, strings.Join(missing, "/")))
		}
	}

	if len(scenarios) > LargeDocumentScenarios && !hasPriorityTag(feature) {
		result.addWarning(fmt.Sprintf("document has %d scenarios but no priority, smoke, or regression tag",
			len(scenarios)))
	}
}

func (r *Result) addError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func checkName(name, kind string, result *Result) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinNameLength {
		result.addWarning(fmt.Sprintf("%s name %q is empty or too short", kind, name))
		return
	}
	if genericNames[strings.ToLower(trimmed)] {
		result.addWarning(fmt.Sprintf("%s name %q is generic", kind, name))
	}
}

func exampleRowCount(sc gherkin.Scenario) int {
	rows := 0
	for _, ex := range sc.Examples {
		rows += len(ex.Rows)
	}
	return rows
}

// missingCoverage returns which of Given/When/Then a scenario lacks. And,
// But, and * continue the preceding keyword; background steps count toward
// Given coverage.
func missingCoverage(sc gherkin.Scenario, bg *gherkin.Background) []string {
	covered := make(map[string]bool)
	if bg != nil {
		collectKeywords(bg.Steps, covered)
	}
	collectKeywords(sc.Steps, covered)

	var missing []string
	for _, kw := range []string{"Given", "When", "Then"} {
		if !covered[kw] {
			missing = append(missing, kw)
		}
	}
	return missing
}

func collectKeywords(steps []gherkin.Step, covered map[string]bool) {
	last := ""
	for _, step := range steps {
		switch step.Keyword {
		case "And", "But", "*":
			if last != "" {
				covered[last] = true
			}
		default:
			covered[step.Keyword] = true
			last = step.Keyword
		}
	}
}

func hasPriorityTag(feature *gherkin.Feature) bool {
	for _, tag := range feature.AllTags() {
		if priorityTags[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}
