package intent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cfocopilot/internal/core"

	"gopkg.in/yaml.v2"
)

// Rule routes a question to Intent when any trigger matches. Rules are tried
// in order, so more specific phrases must come before generic ones.
type Rule struct {
	Intent   core.IntentKind `yaml:"intent"`
	Triggers []string        `yaml:"triggers"`
}

// Category is a filterable account with the words that name it in questions.
type Category struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// RuleSet is everything the classifier needs. It is also the YAML file layout.
type RuleSet struct {
	Rules       []Rule     `yaml:"rules"`
	Categories  []Category `yaml:"categories"`
	Suggestions []string   `yaml:"suggestions"`
}

var ErrInvalidRules = errors.New("invalid classifier rules")

// DefaultRuleSet is the compiled-in routing table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Intent: core.CashRunway, Triggers: []string{
				"cash runway", "runway", "cash burn", "burn rate", "burn",
				"how long cash", "months of cash", "cash left", "cash last",
			}},
			{Intent: core.GrossMarginTrend, Triggers: []string{
				"gross margin", "margin trend", "gross profit",
			}},
			{Intent: core.OpexBreakdown, Triggers: []string{
				"opex", "operating expense", "operating cost", "expense breakdown",
				"cost breakdown", "expenses", "spend", "spending",
			}},
			{Intent: core.EbitdaAnalysis, Triggers: []string{
				"ebitda", "operating profit", "operating income", "profitability",
				"earnings", "profit",
			}},
			{Intent: core.RevenueVsBudget, Triggers: []string{
				"revenue", "sales", "top line", "turnover", "budget",
			}},
			// Generic words last so the specific phrases above win.
			{Intent: core.CashRunway, Triggers: []string{"cash"}},
			{Intent: core.GrossMarginTrend, Triggers: []string{"margin"}},
			{Intent: core.OpexBreakdown, Triggers: []string{"cost"}},
		},
		Categories: []Category{
			{Name: "Revenue", Aliases: []string{"revenue"}},
			{Name: "COGS", Aliases: []string{"cogs", "cost of goods"}},
			{Name: "Opex", Aliases: []string{"opex"}},
			{Name: "Opex:Marketing", Aliases: []string{"marketing"}},
			{Name: "Opex:R&D", Aliases: []string{"r&d", "research", "engineering"}},
			{Name: "Opex:G&A", Aliases: []string{"g&a", "general and administrative", "admin"}},
			{Name: "Opex:Sales", Aliases: []string{"sales and marketing"}},
			{Name: "Opex:Payroll", Aliases: []string{"payroll", "salaries"}},
			{Name: "Opex:Facilities", Aliases: []string{"facilities", "rent"}},
			{Name: "Opex:Travel", Aliases: []string{"travel"}},
			{Name: "Opex:Software", Aliases: []string{"software", "saas"}},
		},
		Suggestions: []string{
			"What was June 2023 revenue vs budget?",
			"Show gross margin trend for the last 3 months",
			"Break down Opex for 2023-01",
			"What was EBITDA last quarter?",
			"What is our cash runway?",
		},
	}
}

// LoadRuleSet reads a YAML rule file. Sections left out of the file keep
// their compiled-in defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(data)
}

func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.UnmarshalStrict(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	def := DefaultRuleSet()
	if len(rs.Rules) == 0 {
		rs.Rules = def.Rules
	}
	if len(rs.Categories) == 0 {
		rs.Categories = def.Categories
	}
	if len(rs.Suggestions) == 0 {
		rs.Suggestions = def.Suggestions
	}
	return rs, rs.Validate()
}

// Validate checks that every rule names a real intent and has usable triggers.
func (rs RuleSet) Validate() error {
	var errs []string
	for i, r := range rs.Rules {
		if !r.Intent.IsValid() || r.Intent == core.Unknown {
			errs = append(errs, fmt.Sprintf("rule %d: unknown intent %q", i+1, r.Intent))
		}
		if len(r.Triggers) == 0 {
			errs = append(errs, fmt.Sprintf("rule %d: no triggers", i+1))
		}
		for _, t := range r.Triggers {
			if len(tokenize(t)) == 0 {
				errs = append(errs, fmt.Sprintf("rule %d: empty trigger %q", i+1, t))
			}
		}
	}
	for _, c := range rs.Categories {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, "category with empty name")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalidRules, strings.Join(errs, "\n- "))
	}
	return nil
}
