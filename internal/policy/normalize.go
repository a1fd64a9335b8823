package policy

import "strings"

// Normalize uppercases every allow/deny literal (locale-independent, since
// these are ASCII algorithm/provider names) and prefixes every regex with
// "(?i)" so matching is case-insensitive at evaluation time. nil slices
// stay nil; the "present but empty" distinction is preserved. Calling
// Normalize twice on an already-normalized Policy is a no-op: uppercasing
// an uppercase string changes nothing, and caseInsensitive leaves a regex
// that already starts with "(?i)" as it is instead of doubling the prefix.
func (p *Policy) Normalize() {
	for i := range p.Rules {
		p.Rules[i].Algorithms = normalizeAlgorithms(p.Rules[i].Algorithms)
		p.Rules[i].Providers = normalizeProviders(p.Rules[i].Providers)
	}
}

func normalizeAlgorithms(a *Algorithms) *Algorithms {
	if a == nil {
		return nil
	}
	return &Algorithms{
		Allow:      toUpper(a.Allow),
		Deny:       toUpper(a.Deny),
		AllowRegex: caseInsensitive(a.AllowRegex),
		DenyRegex:  caseInsensitive(a.DenyRegex),
	}
}

func normalizeProviders(p *Providers) *Providers {
	if p == nil {
		return nil
	}
	return &Providers{
		Allow:      toUpper(p.Allow),
		Deny:       toUpper(p.Deny),
		AllowRegex: caseInsensitive(p.AllowRegex),
		DenyRegex:  caseInsensitive(p.DenyRegex),
	}
}

func toUpper(list []string) []string {
	if list == nil {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToUpper(s)
	}
	return out
}

const caseInsensitivePrefix = "(?i)"

func caseInsensitive(regexes []string) []string {
	if regexes == nil {
		return nil
	}
	out := make([]string, len(regexes))
	for i, r := range regexes {
		if strings.HasPrefix(r, caseInsensitivePrefix) {
			out[i] = r
		} else {
			out[i] = caseInsensitivePrefix + r
		}
	}
	return out
}
