package gherkin

import (
	"errors"
	"strings"
	"testing"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/errs"
)

const loginFeature = `# language: en
@auth @smoke
Feature: User login
  As a registered user
  I want to log in

  Background:
    Given a registered user "alice"

  @happy
  Scenario: Successful login
    When alice enters valid credentials
    Then she sees the dashboard

  Scenario Outline: Failed login
    When alice enters "<password>"
    Then she sees "<message>"

    Examples:
      | password | message           |
      | wrong    | invalid password  |
      |          | password required |
`

func TestParseFullFeature(t *testing.T) {
	feature, err := Parse(loginFeature, "login.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if feature.Name != "User login" {
		t.Errorf("Name = %q, want %q", feature.Name, "User login")
	}
	if feature.Language != "en" {
		t.Errorf("Language = %q, want %q", feature.Language, "en")
	}
	if len(feature.Tags) != 2 || feature.Tags[0] != "@auth" || feature.Tags[1] != "@smoke" {
		t.Errorf("Tags = %v, want [@auth @smoke]", feature.Tags)
	}
	if !strings.Contains(feature.Description, "As a registered user") {
		t.Errorf("Description = %q, missing narrative text", feature.Description)
	}

	if feature.Background == nil {
		t.Fatal("expected a Background")
	}
	if len(feature.Background.Steps) != 1 {
		t.Fatalf("background steps = %d, want 1", len(feature.Background.Steps))
	}

	scenarios := feature.Scenarios()
	if len(scenarios) != 2 {
		t.Fatalf("scenarios = %d, want 2", len(scenarios))
	}

	first := scenarios[0]
	if first.Type != TypeScenario {
		t.Errorf("first.Type = %q, want %q", first.Type, TypeScenario)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "@happy" {
		t.Errorf("first.Tags = %v, want [@happy]", first.Tags)
	}
	if len(first.Steps) != 2 {
		t.Errorf("first steps = %d, want 2", len(first.Steps))
	}

	outline := scenarios[1]
	if outline.Type != TypeOutline {
		t.Errorf("outline.Type = %q, want %q", outline.Type, TypeOutline)
	}
	if len(outline.Examples) != 1 {
		t.Fatalf("examples tables = %d, want 1", len(outline.Examples))
	}
	ex := outline.Examples[0]
	if len(ex.Header) != 2 || ex.Header[0] != "password" {
		t.Errorf("examples header = %v, want [password message]", ex.Header)
	}
	if len(ex.Rows) != 2 {
		t.Errorf("examples rows = %d, want 2", len(ex.Rows))
	}
	if ex.Rows[1][0] != "" || ex.Rows[1][1] != "password required" {
		t.Errorf("second row = %v, want [ password required]", ex.Rows[1])
	}
}

func TestParseLanguageHeader(t *testing.T) {
	feature, err := Parse("# language: fr\nFeature: Connexion\n", "f.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if feature.Language != "fr" {
		t.Errorf("Language = %q, want %q", feature.Language, "fr")
	}
}

func TestParseDefaultLanguage(t *testing.T) {
	feature, err := Parse("Feature: Login\n", "f.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if feature.Language != DefaultLanguage {
		t.Errorf("Language = %q, want %q", feature.Language, DefaultLanguage)
	}
}

func TestParseRuleGroupsScenarios(t *testing.T) {
	content := `Feature: Checkout

  Scenario: Top level
    Given a cart

  Rule: Payment limits
    Business constraint text

    Scenario: Under limit
      Given a small cart

    Scenario: Over limit
      Given a huge cart
`
	feature, err := Parse(content, "checkout.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(feature.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(feature.Children))
	}
	if feature.Children[0].Scenario == nil {
		t.Fatal("first child should be a scenario")
	}
	rule := feature.Children[1].Rule
	if rule == nil {
		t.Fatal("second child should be a rule")
	}
	if rule.Name != "Payment limits" {
		t.Errorf("rule.Name = %q, want %q", rule.Name, "Payment limits")
	}
	if !strings.Contains(rule.Description, "Business constraint") {
		t.Errorf("rule.Description = %q, missing free text", rule.Description)
	}
	if len(rule.Scenarios) != 2 {
		t.Errorf("rule scenarios = %d, want 2", len(rule.Scenarios))
	}

	if got := len(feature.Scenarios()); got != 3 {
		t.Errorf("flattened scenarios = %d, want 3", got)
	}
}

func TestParseDocStringAndStepTable(t *testing.T) {
	content := `Feature: API

  Scenario: Create user
    When the client posts:
      """
      {"name": "alice"}
      """
    Then the response contains:
      | field | value |
      | name  | alice |
`
	feature, err := Parse(content, "api.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	steps := feature.Scenarios()[0].Steps
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if !strings.Contains(steps[0].DocString, `"name": "alice"`) {
		t.Errorf("DocString = %q, missing body", steps[0].DocString)
	}
	if len(steps[1].Table) != 2 {
		t.Fatalf("step table rows = %d, want 2", len(steps[1].Table))
	}
	if steps[1].Table[1][1] != "alice" {
		t.Errorf("table cell = %q, want %q", steps[1].Table[1][1], "alice")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{
			name:    "no feature declaration",
			content: "just some text\n",
			message: "no Feature declaration found",
		},
		{
			name:    "scenario before feature",
			content: "Scenario: Orphan\n  Given nothing\n",
			message: "keyword before Feature declaration",
		},
		{
			name:    "unterminated docstring",
			content: "Feature: F\n  Scenario: S\n    Given a step\n      \"\"\"\n      dangling\n",
			message: "unterminated docstring block",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content, "bad.feature")
			if err == nil {
				t.Fatal("expected parse error")
			}
			var pe *errs.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error type = %T, want *errs.ParseError", err)
			}
			if pe.Message != tt.message {
				t.Errorf("Message = %q, want %q", pe.Message, tt.message)
			}
			if pe.Path != "bad.feature" {
				t.Errorf("Path = %q, want %q", pe.Path, "bad.feature")
			}
		})
	}
}

func TestAllTags(t *testing.T) {
	content := `@feat
Feature: Tagged

  @sc @feat
  Scenario: One
    Given a step
`
	feature, err := Parse(content, "t.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tags := feature.AllTags()
	if len(tags) != 2 || tags[0] != "@feat" || tags[1] != "@sc" {
		t.Errorf("AllTags = %v, want [@feat @sc]", tags)
	}
}

func TestCachedParserMemoizes(t *testing.T) {
	c := cache.NewValidationCache[*Feature](nil)
	cp := NewCachedParser(c)

	first, err := cp.Parse("Feature: Cached\n", "c.feature")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	second, err := cp.Parse("Feature: Cached\n", "c.feature")
	if err != nil {
		t.Fatalf("second Parse failed: %v", err)
	}
	if first != second {
		t.Error("expected the memoized tree on the second parse")
	}

	changed, err := cp.Parse("Feature: Changed\n", "c.feature")
	if err != nil {
		t.Fatalf("third Parse failed: %v", err)
	}
	if changed == first {
		t.Error("changed content must not hit the cache")
	}
}
