package policy

import (
	"fmt"
	"regexp"
)

// ErrRegexCompile is returned when a policy's allowRegex/denyRegex pattern
// fails to compile. This is a fatal policy-load error: spec.md resolves the
// "malformed regex" open question by rejecting it eagerly rather than
// deferring to the regex engine at evaluation time.
type ErrRegexCompile struct {
	RuleId  string
	Pattern string
	Err     error
}

func (e *ErrRegexCompile) Error() string {
	return fmt.Sprintf("policy rule %q: invalid regex %q: %v", e.RuleId, e.Pattern, e.Err)
}

func (e *ErrRegexCompile) Unwrap() error { return e.Err }

// CompiledLists holds compiled allow/deny regexes for one Algorithms or
// Providers block.
type CompiledLists struct {
	AllowRegex []*regexp.Regexp
	DenyRegex  []*regexp.Regexp
}

// CompiledPolicy pairs a normalized Policy with its precompiled regexes, so
// the engine never compiles a pattern per finding.
type CompiledPolicy struct {
	Policy *Policy

	algorithms map[int]CompiledLists // keyed by rule index in Policy.Rules
	providers  map[int]CompiledLists
}

// Compile compiles every regex pattern in p, failing fast with
// ErrRegexCompile on the first invalid one. It does not normalize p;
// LoadBytes calls Normalize before Compile.
func Compile(p *Policy) (*CompiledPolicy, error) {
	cp := &CompiledPolicy{
		Policy:     p,
		algorithms: make(map[int]CompiledLists, len(p.Rules)),
		providers:  make(map[int]CompiledLists, len(p.Rules)),
	}
	for i, r := range p.Rules {
		if r.Algorithms != nil {
			lists, err := compileLists(r.Id, r.Algorithms.AllowRegex, r.Algorithms.DenyRegex)
			if err != nil {
				return nil, err
			}
			cp.algorithms[i] = lists
		}
		if r.Providers != nil {
			lists, err := compileLists(r.Id, r.Providers.AllowRegex, r.Providers.DenyRegex)
			if err != nil {
				return nil, err
			}
			cp.providers[i] = lists
		}
	}
	return cp, nil
}

func compileLists(ruleId string, allow, deny []string) (CompiledLists, error) {
	var lists CompiledLists
	for _, pattern := range allow {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return CompiledLists{}, &ErrRegexCompile{RuleId: ruleId, Pattern: pattern, Err: err}
		}
		lists.AllowRegex = append(lists.AllowRegex, re)
	}
	for _, pattern := range deny {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return CompiledLists{}, &ErrRegexCompile{RuleId: ruleId, Pattern: pattern, Err: err}
		}
		lists.DenyRegex = append(lists.DenyRegex, re)
	}
	return lists, nil
}

// AlgorithmRegexesFor returns the compiled algorithm regexes for the rule
// at ruleIndex, or the zero value if that rule has no Algorithms block.
func (cp *CompiledPolicy) AlgorithmRegexesFor(ruleIndex int) CompiledLists {
	return cp.algorithms[ruleIndex]
}

// ProviderRegexesFor returns the compiled provider regexes for the rule at
// ruleIndex, or the zero value if that rule has no Providers block.
func (cp *CompiledPolicy) ProviderRegexesFor(ruleIndex int) CompiledLists {
	return cp.providers[ruleIndex]
}
