// Package router picks the target framework for a prompt.
//
// Routing is keyword scoring over the lower-cased prompt. Each framework owns a
// list of rules; a rule matches when every one of its terms occurs in the
// prompt. Ties go to the framework listed first in types.Frameworks.
package router

import (
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Rule is a set of terms that must all appear for the rule to score.
type Rule struct {
	Terms  []string
	Weight int
}

func rule(terms ...string) Rule {
	return Rule{Terms: terms, Weight: 1}
}

// DefaultRules is the keyword table used by New.
var DefaultRules = map[types.Framework][]Rule{
	types.FrameworkTauri: {
		rule("tauri"),
		rule("rust gui"),
		rule("native web desktop", "rust"),
	},
	types.FrameworkPythonWeb: {
		rule("dashboard"),
		rule("web app", "login"),
		rule("web app", "database"),
		rule("web app", "rest api"),
		rule("flask"),
		rule("fastapi"),
	},
	types.FrameworkPythonTk: {
		rule("tkinter"),
		rule("python", "gui"),
		rule("python", "timer"),
		rule("python", "sprite"),
	},
	types.FrameworkPowerShellModule: {
		rule("module"),
		rule("cmdlet"),
		rule("profile module"),
		rule("automation module"),
	},
	types.FrameworkPowerShell: {
		rule("powershell"),
	},
}

// Router scores prompts against a rule table.
type Router struct {
	rules map[types.Framework][]Rule
}

// New returns a router over DefaultRules.
func New() *Router {
	return &Router{rules: DefaultRules}
}

// NewWithRules returns a router over a custom rule table.
func NewWithRules(rules map[types.Framework][]Rule) *Router {
	return &Router{rules: rules}
}

// Decision explains a routing result.
type Decision struct {
	Framework types.Framework
	Scores    map[types.Framework]int
	Override  bool
	Defaulted bool
}

// Route returns the framework for prompt. A recognised override always wins.
func (r *Router) Route(prompt string, override string) types.Framework {
	return r.Explain(prompt, override).Framework
}

// Explain is Route with the scores that produced the decision.
func (r *Router) Explain(prompt string, override string) Decision {
	if fw, ok := types.ParseFramework(override); ok {
		return Decision{Framework: fw, Override: true}
	}

	text := strings.ToLower(prompt)
	scores := make(map[types.Framework]int)
	for fw, rules := range r.rules {
		for _, rl := range rules {
			if matchesAll(text, rl.Terms) {
				scores[fw] += rl.Weight
			}
		}
	}

	best := types.FrameworkPowerShell
	bestScore := 0
	for _, fw := range types.Frameworks {
		if scores[fw] > bestScore {
			best = fw
			bestScore = scores[fw]
		}
	}
	return Decision{
		Framework: best,
		Scores:    scores,
		Defaulted: bestScore == 0,
	}
}

func matchesAll(text string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}
