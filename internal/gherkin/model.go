// Package gherkin parses feature files into a structured metadata tree of
// tags, scenarios, and steps. Parsing is purely structural; judging validity
// is the validation package's job.
package gherkin

// ScenarioType distinguishes plain scenarios from scenario outlines.
type ScenarioType string

const (
	// TypeScenario is a plain scenario.
	TypeScenario ScenarioType = "scenario"

	// TypeOutline is a scenario outline driven by examples tables.
	TypeOutline ScenarioType = "outline"
)

// Feature is the root of a parsed feature file.
type Feature struct {
	// Name is the text after the Feature: keyword.
	Name string

	// Description is the free text between the Feature: line and the first
	// child keyword.
	Description string

	// Tags are the @-sigil tags attached to the feature.
	Tags []string

	// Language is the value of a "# language:" header, or "en".
	Language string

	// Background holds the optional Background section.
	Background *Background

	// Children are the feature's scenarios and rules in source order.
	Children []Child

	// SourcePath is the path the feature was parsed from.
	SourcePath string
}

// Child is one ordered element of a feature body: exactly one of Scenario or
// Rule is set.
type Child struct {
	Scenario *Scenario
	Rule     *Rule
}

// Rule is a named grouping of scenarios.
type Rule struct {
	Name        string
	Description string
	Tags        []string
	Scenarios   []Scenario
}

// Background is a set of steps run before each scenario.
type Background struct {
	Name  string
	Steps []Step
}

// Scenario is a named, ordered sequence of steps.
type Scenario struct {
	Name     string
	Tags     []string
	Type     ScenarioType
	Steps    []Step
	Examples []ExamplesTable
}

// ExamplesTable holds the example rows driving a scenario outline.
type ExamplesTable struct {
	Name string
	Tags []string
	// Header is the first table row (column names).
	Header []string
	// Rows are the data rows, excluding the header.
	Rows [][]string
}

// Step is one Given/When/Then line with optional attached arguments.
type Step struct {
	// Keyword is the step keyword (Given, When, Then, And, But, *).
	Keyword string
	// Text is the step text after the keyword.
	Text string
	// Table is an attached data table, if any.
	Table [][]string
	// DocString is an attached literal text block, if any.
	DocString string
}

// Scenarios returns every scenario in the feature in source order, including
// those nested under rules.
func (f *Feature) Scenarios() []Scenario {
	var out []Scenario
	for _, child := range f.Children {
		switch {
		case child.Scenario != nil:
			out = append(out, *child.Scenario)
		case child.Rule != nil:
			out = append(out, child.Rule.Scenarios...)
		}
	}
	return out
}

// AllTags returns the union of feature, rule, scenario, and examples tags.
func (f *Feature) AllTags() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tags []string) {
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(f.Tags)
	for _, child := range f.Children {
		switch {
		case child.Scenario != nil:
			add(child.Scenario.Tags)
			for _, ex := range child.Scenario.Examples {
				add(ex.Tags)
			}
		case child.Rule != nil:
			add(child.Rule.Tags)
			for _, sc := range child.Rule.Scenarios {
				add(sc.Tags)
				for _, ex := range sc.Examples {
					add(ex.Tags)
				}
			}
		}
	}
	return out
}
