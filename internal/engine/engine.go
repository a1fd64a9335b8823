// Package engine implements the deterministic policy-evaluation algorithm
// of spec.md §4.6 as a single concrete function — no PolicyEngine
// interface, since only one implementation ever existed (spec.md §9).
package engine

import (
	"regexp"
	"strings"

	"cryptoaudit/internal/catalog"
	"cryptoaudit/internal/policy"
	"cryptoaudit/internal/scan"
)

// Evaluate computes the Analysis for a finding against a compiled policy,
// consulting cat for the finding's algorithm/provider argument positions.
func Evaluate(cat *catalog.Catalog, finding scan.Finding, pol *policy.CompiledPolicy) policy.Analysis {
	var applicable []int
	for i, r := range pol.Policy.Rules {
		if r.Api == finding.Api {
			applicable = append(applicable, i)
		}
	}

	if len(applicable) == 0 {
		return result(finding, pol.Policy.PolicyId, policy.RuleNoPolicyRule, policy.Unknown, policy.ReasonNoRuleForApi)
	}

	var firstFail *policy.Analysis
	for _, idx := range applicable {
		a := evaluateRule(cat, finding, pol, idx)
		if a.RuleId == "" {
			a.RuleId = ruleId(pol.Policy.Rules[idx])
		}

		switch a.Verdict {
		case policy.Pass, policy.Unknown:
			return a // short-circuit
		case policy.Fail:
			if firstFail == nil {
				fail := a
				firstFail = &fail
			}
		}
	}

	if firstFail != nil {
		return *firstFail
	}
	return result(finding, pol.Policy.PolicyId, policy.RuleNoDecision, policy.Unknown, policy.ReasonNoDecision)
}

// evaluateRule runs the single-rule algorithm/provider evaluation of
// spec.md §4.6 "Single-rule evaluation" against one rule.
func evaluateRule(cat *catalog.Catalog, f scan.Finding, pol *policy.CompiledPolicy, ruleIndex int) policy.Analysis {
	rule := pol.Policy.Rules[ruleIndex]
	id := ruleId(rule)

	spec, hasSpec := cat.ArgSpecByApi(f.DeclaringClass, f.MethodName)

	if !hasArg(spec.AlgorithmIndex, hasSpec, f) {
		return result(f, pol.Policy.PolicyId, id, policy.Pass, policy.ReasonDefaultAlgoAllowed)
	}

	algo := literalAt(f, *spec.AlgorithmIndex)
	if algo == nil {
		return result(f, pol.Policy.PolicyId, id, policy.Unknown, policy.ReasonAlgoUnresolved)
	}

	if rule.Algorithms == nil {
		return result(f, pol.Policy.PolicyId, id, policy.Unknown, policy.ReasonNoAlgorithmPolicy)
	}

	upperAlgo := strings.ToUpper(*algo)
	algoRegexes := pol.AlgorithmRegexesFor(ruleIndex)

	if matchesDeny(upperAlgo, rule.Algorithms.Deny, algoRegexes.DenyRegex) {
		return result(f, pol.Policy.PolicyId, id, policy.Fail, policy.ReasonAlgoDenied)
	}

	if rule.Algorithms.Allow != nil || rule.Algorithms.AllowRegex != nil {
		if !matchesAllow(upperAlgo, rule.Algorithms.Allow, algoRegexes.AllowRegex) {
			return result(f, pol.Policy.PolicyId, id, policy.Fail, policy.ReasonAlgoNotAllowed)
		}
	}

	if !hasArg(spec.ProviderNameIndex, hasSpec, f) {
		return result(f, pol.Policy.PolicyId, id, policy.Pass, policy.ReasonAllowedAlgoDefaultProvide)
	}

	provider := literalAt(f, *spec.ProviderNameIndex)
	if provider == nil {
		return result(f, pol.Policy.PolicyId, id, policy.Unknown, policy.ReasonProviderUnresolved)
	}

	upperProvider := strings.ToUpper(*provider)

	if rule.Providers != nil && contains(rule.Providers.Deny, upperProvider) {
		return result(f, pol.Policy.PolicyId, id, policy.Fail, policy.ReasonProviderDenied+":"+*provider)
	}

	if rule.Providers != nil && len(rule.Providers.Allow) > 0 && !contains(rule.Providers.Allow, upperProvider) {
		return result(f, pol.Policy.PolicyId, id, policy.Fail, policy.ReasonProviderNotAllowed+":"+*provider)
	}

	return result(f, pol.Policy.PolicyId, id, policy.Pass, policy.ReasonAllowedAlgo)
}

func hasArg(index *int, hasSpec bool, f scan.Finding) bool {
	if !hasSpec || index == nil {
		return false
	}
	return *index >= 0 && *index < len(f.Args)
}

func literalAt(f scan.Finding, index int) *string {
	if index < 0 || index >= len(f.Args) {
		return nil
	}
	return f.Args[index].LiteralOrNull
}

func matchesDeny(upper string, deny []string, denyRegex []*regexp.Regexp) bool {
	if contains(deny, upper) {
		return true
	}
	for _, re := range denyRegex {
		if re.MatchString(upper) {
			return true
		}
	}
	return false
}

func matchesAllow(upper string, allow []string, allowRegex []*regexp.Regexp) bool {
	if len(allow) > 0 && contains(allow, upper) {
		return true
	}
	for _, re := range allowRegex {
		if re.MatchString(upper) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ruleId(r policy.Rule) string {
	if r.Id != "" {
		return r.Id
	}
	return policy.RuleFallback
}

func result(f scan.Finding, policyId, ruleId string, v policy.Verdict, reason string) policy.Analysis {
	return policy.Analysis{
		Finding:  f,
		PolicyId: policyId,
		RuleId:   ruleId,
		Verdict:  v,
		Reason:   reason,
	}
}
