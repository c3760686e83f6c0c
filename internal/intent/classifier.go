// Package intent maps free-text finance questions onto a closed set of
// intents with an ordered keyword rule table.
package intent

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"cfocopilot/internal/core"

	"github.com/agnivade/levenshtein"
)

// fuzzyMinLen is the shortest keyword that tolerates a missing or extra letter.
const fuzzyMinLen = 6

type (
	trigger struct {
		phrase string
		words  []string
	}

	compiledRule struct {
		intent   core.IntentKind
		triggers []trigger
	}

	alias struct {
		category string
		words    []string
	}
)

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	rules       []compiledRule
	aliases     []alias
	suggestions []string
}

// New compiles a rule set.
func New(rs RuleSet) (*Classifier, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{suggestions: slices.Clone(rs.Suggestions)}
	for _, r := range rs.Rules {
		cr := compiledRule{intent: r.Intent}
		for _, t := range r.Triggers {
			cr.triggers = append(cr.triggers, trigger{phrase: strings.ToLower(strings.TrimSpace(t)), words: tokenize(t)})
		}
		c.rules = append(c.rules, cr)
	}
	for _, cat := range rs.Categories {
		names := append([]string{cat.Name}, cat.Aliases...)
		for _, n := range names {
			if w := tokenize(n); len(w) > 0 {
				c.aliases = append(c.aliases, alias{category: cat.Name, words: w})
			}
		}
	}
	// Longer aliases first so "sales and marketing" beats "marketing", then
	// subcategories before the top-level accounts.
	slices.SortStableFunc(c.aliases, func(a, b alias) int {
		if d := len(b.words) - len(a.words); d != 0 {
			return d
		}
		return depth(b.category) - depth(a.category)
	})
	return c, nil
}

// Default returns a classifier over the compiled-in rules.
func Default() *Classifier {
	c, err := New(DefaultRuleSet())
	if err != nil {
		panic(err)
	}
	return c
}

// NewFromFile loads rules from path, or uses the defaults when path is empty.
func NewFromFile(path string) (*Classifier, error) {
	if path == "" {
		return New(DefaultRuleSet())
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		return nil, err
	}
	return New(rs)
}

// Suggestions are example questions offered when nothing matches.
func (c *Classifier) Suggestions() []string { return slices.Clone(c.suggestions) }

// Classify never fails: questions no rule matches come back as core.Unknown
// carrying suggestions. The result depends only on the query text.
func (c *Classifier) Classify(query string) core.Intent {
	tokens := tokenize(query)
	in := core.Intent{Kind: core.Unknown, Period: extractPeriod(tokens)}

	for _, r := range c.rules {
		if t, ok := r.match(tokens); ok {
			in.Kind = r.intent
			in.Trigger = t
			break
		}
	}
	if in.Kind == core.Unknown {
		in.Suggestions = c.Suggestions()
		return in
	}
	if in.Kind == core.OpexBreakdown {
		in.Category = c.subcategory(tokens, core.CategoryOpex)
	}
	return in
}

func (r compiledRule) match(tokens []string) (string, bool) {
	for _, t := range r.triggers {
		if containsInOrder(tokens, t.words) {
			return t.phrase, true
		}
	}
	return "", false
}

// subcategory finds the first alias below parent spelled out as consecutive
// tokens.
func (c *Classifier) subcategory(tokens []string, parent string) string {
	prefix := strings.ToLower(parent + core.CategorySeparator)
	for _, a := range c.aliases {
		if strings.HasPrefix(strings.ToLower(a.category), prefix) && containsRun(tokens, a.words) {
			return a.category
		}
	}
	return ""
}

// containsInOrder reports whether every keyword appears in tokens in the
// given order, with any number of other tokens in between.
func containsInOrder(tokens, keywords []string) bool {
	i := 0
	for _, tok := range tokens {
		if i == len(keywords) {
			break
		}
		if wordMatch(tok, keywords[i]) {
			i++
		}
	}
	return i == len(keywords)
}

func depth(category string) int {
	return strings.Count(category, core.CategorySeparator)
}

func containsRun(tokens, words []string) bool {
	for start := 0; start+len(words) <= len(tokens); start++ {
		ok := true
		for j, w := range words {
			if !wordMatch(tokens[start+j], w) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// wordMatch accepts one missing or extra letter when the first two letters
// agree. Substitutions never match: "revenge" is not "revenue".
func wordMatch(token, keyword string) bool {
	if token == keyword {
		return true
	}
	if utf8.RuneCountInString(keyword) < fuzzyMinLen || !isAlpha(token) {
		return false
	}
	if d := len(token) - len(keyword); d != 1 && d != -1 {
		return false
	}
	if !strings.HasPrefix(token, keyword[:2]) {
		return false
	}
	return levenshtein.ComputeDistance(token, keyword) == 1
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}

// tokenRe keeps YYYY-MM together and "&" inside words such as "r&d".
var tokenRe = regexp.MustCompile(`[\p{L}\p{N}&]+(?:-\d+)?`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}
