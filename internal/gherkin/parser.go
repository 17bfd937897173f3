package gherkin

import (
	"regexp"
	"strings"

	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/logging"
)

// TagSigil is the character every tag must begin with.
const TagSigil = "@"

// DefaultLanguage is assumed when no language header is present.
const DefaultLanguage = "en"

var languageHeader = regexp.MustCompile(`^#\s*language:\s*(\S+)`)

// Step keywords recognized by the parser.
var stepKeywords = []string{"Given", "When", "Then", "And", "But", "*"}

// Parse converts raw feature file text into a Feature tree. It fails only
// for text with no recognizable Feature declaration or an unterminated
// docstring block; all other findings are left to the validator.
func Parse(content, sourcePath string) (*Feature, error) {
	defer logging.Timer("parse")()

	p := &parser{
		path:  sourcePath,
		lines: strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n"),
	}
	feature, err := p.run()
	if err != nil {
		logging.Debug("parse failed",
			logging.Path(sourcePath),
			logging.Err(err),
		)
		return nil, err
	}
	return feature, nil
}

type parser struct {
	path  string
	lines []string
	pos   int

	feature         *Feature
	pendingTags     []string
	pendingLanguage string

	// current containers; nil when not inside one
	rule     *Rule
	scenario *Scenario
	bg       *Background
	examples *ExamplesTable

	// inDescription is true between the Feature:/Rule: line and its first
	// child keyword, where free text accumulates as description.
	inDescription bool
	descTarget    *string
}

func (p *parser) run() (*Feature, error) {
	for ; p.pos < len(p.lines); p.pos++ {
		line := p.lines[p.pos]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue

		case strings.HasPrefix(trimmed, "#"):
			if m := languageHeader.FindStringSubmatch(trimmed); m != nil && p.feature == nil {
				p.pendingLanguage = m[1]
			}
			// Comments carry no structure.

		case strings.HasPrefix(trimmed, TagSigil):
			p.pendingTags = append(p.pendingTags, strings.Fields(trimmed)...)

		case hasKeyword(trimmed, "Feature:"):
			p.startFeature(keywordValue(trimmed, "Feature:"))

		case hasKeyword(trimmed, "Background:"):
			if err := p.requireFeature(); err != nil {
				return nil, err
			}
			p.flushScenario()
			p.bg = &Background{Name: keywordValue(trimmed, "Background:")}
			p.feature.Background = p.bg
			p.endDescription()

		case hasKeyword(trimmed, "Rule:"):
			if err := p.requireFeature(); err != nil {
				return nil, err
			}
			p.flushScenario()
			p.flushRule()
			p.rule = &Rule{
				Name: keywordValue(trimmed, "Rule:"),
				Tags: p.takeTags(),
			}
			p.startDescription(&p.rule.Description)

		case hasKeyword(trimmed, "Scenario Outline:"), hasKeyword(trimmed, "Scenario Template:"):
			if err := p.startScenario(trimmed, TypeOutline); err != nil {
				return nil, err
			}

		case hasKeyword(trimmed, "Scenario:"), hasKeyword(trimmed, "Example:"):
			if err := p.startScenario(trimmed, TypeScenario); err != nil {
				return nil, err
			}

		case hasKeyword(trimmed, "Examples:"), hasKeyword(trimmed, "Scenarios:"):
			if p.scenario == nil {
				// Examples outside a scenario carry no structure; the
				// validator flags outlines with no examples.
				p.takeTags()
				continue
			}
			p.scenario.Examples = append(p.scenario.Examples, ExamplesTable{
				Name: keywordValueAny(trimmed, "Examples:", "Scenarios:"),
				Tags: p.takeTags(),
			})
			p.examples = &p.scenario.Examples[len(p.scenario.Examples)-1]
			p.endDescription()

		case strings.HasPrefix(trimmed, "|"):
			p.addTableRow(trimmed)

		case strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "```"):
			if err := p.collectDocString(trimmed[:3]); err != nil {
				return nil, err
			}

		default:
			if keyword, text, ok := stepLine(trimmed); ok && p.feature != nil {
				p.addStep(keyword, text)
				continue
			}
			if p.inDescription && p.descTarget != nil {
				if *p.descTarget != "" {
					*p.descTarget += "\n"
				}
				*p.descTarget += trimmed
			}
			// Free text elsewhere is ignored, matching lenient readers.
		}
	}

	if p.feature == nil {
		return nil, &errs.ParseError{Path: p.path, Message: "no Feature declaration found"}
	}
	p.flushScenario()
	p.flushRule()
	return p.feature, nil
}

func (p *parser) startFeature(name string) {
	lang := p.pendingLanguage
	if lang == "" {
		lang = DefaultLanguage
	}
	p.feature = &Feature{
		Name:       name,
		Tags:       p.takeTags(),
		Language:   lang,
		SourcePath: p.path,
	}
	p.startDescription(&p.feature.Description)
}

func (p *parser) startScenario(trimmed string, typ ScenarioType) error {
	if err := p.requireFeature(); err != nil {
		return err
	}
	p.flushScenario()
	name := keywordValueAny(trimmed,
		"Scenario Outline:", "Scenario Template:", "Scenario:", "Example:")
	p.scenario = &Scenario{
		Name: name,
		Tags: p.takeTags(),
		Type: typ,
	}
	p.endDescription()
	return nil
}

func (p *parser) addStep(keyword, text string) {
	step := Step{Keyword: keyword, Text: text}
	switch {
	case p.scenario != nil:
		p.scenario.Steps = append(p.scenario.Steps, step)
	case p.bg != nil:
		p.bg.Steps = append(p.bg.Steps, step)
	}
	p.examples = nil
	p.endDescription()
}

// lastStep returns the step a table or docstring should attach to.
func (p *parser) lastStep() *Step {
	if p.scenario != nil && len(p.scenario.Steps) > 0 {
		return &p.scenario.Steps[len(p.scenario.Steps)-1]
	}
	if p.bg != nil && len(p.bg.Steps) > 0 {
		return &p.bg.Steps[len(p.bg.Steps)-1]
	}
	return nil
}

func (p *parser) addTableRow(trimmed string) {
	row := splitTableRow(trimmed)
	if p.examples != nil {
		if p.examples.Header == nil {
			p.examples.Header = row
		} else {
			p.examples.Rows = append(p.examples.Rows, row)
		}
		return
	}
	if step := p.lastStep(); step != nil {
		step.Table = append(step.Table, row)
	}
}

// collectDocString consumes lines until the closing delimiter, attaching the
// block to the last step. Reaching EOF first is a parse error.
func (p *parser) collectDocString(delim string) error {
	var block []string
	for p.pos++; p.pos < len(p.lines); p.pos++ {
		trimmed := strings.TrimSpace(p.lines[p.pos])
		if strings.HasPrefix(trimmed, delim) {
			if step := p.lastStep(); step != nil {
				step.DocString = strings.Join(block, "\n")
			}
			return nil
		}
		block = append(block, p.lines[p.pos])
	}
	return &errs.ParseError{Path: p.path, Message: "unterminated docstring block"}
}

func (p *parser) flushScenario() {
	if p.scenario == nil {
		return
	}
	sc := p.scenario
	p.scenario = nil
	p.examples = nil
	if p.rule != nil {
		p.rule.Scenarios = append(p.rule.Scenarios, *sc)
		return
	}
	p.feature.Children = append(p.feature.Children, Child{Scenario: sc})
}

func (p *parser) flushRule() {
	if p.rule == nil {
		return
	}
	p.feature.Children = append(p.feature.Children, Child{Rule: p.rule})
	p.rule = nil
}

func (p *parser) requireFeature() error {
	if p.feature == nil {
		return &errs.ParseError{Path: p.path, Message: "keyword before Feature declaration"}
	}
	return nil
}

func (p *parser) takeTags() []string {
	tags := p.pendingTags
	p.pendingTags = nil
	return tags
}

func (p *parser) startDescription(target *string) {
	p.inDescription = true
	p.descTarget = target
}

func (p *parser) endDescription() {
	p.inDescription = false
	p.descTarget = nil
}

// hasKeyword reports whether the trimmed line starts with the keyword.
func hasKeyword(trimmed, keyword string) bool {
	return strings.HasPrefix(trimmed, keyword)
}

func keywordValue(trimmed, keyword string) string {
	return strings.TrimSpace(strings.TrimPrefix(trimmed, keyword))
}

func keywordValueAny(trimmed string, keywords ...string) string {
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) {
			return keywordValue(trimmed, kw)
		}
	}
	return trimmed
}

// stepLine splits a step into keyword and text if the line starts with a
// recognized step keyword.
func stepLine(trimmed string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		if kw == "*" {
			if strings.HasPrefix(trimmed, "* ") {
				return "*", strings.TrimSpace(trimmed[2:]), true
			}
			continue
		}
		if strings.HasPrefix(trimmed, kw+" ") {
			return kw, strings.TrimSpace(trimmed[len(kw)+1:]), true
		}
	}
	return "", "", false
}

// splitTableRow splits a "| a | b |" line into trimmed cells.
func splitTableRow(trimmed string) []string {
	trimmed = strings.Trim(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells
}
