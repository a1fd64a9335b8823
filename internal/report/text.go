// Package report renders {class -> []Analysis} results as either a
// plain-text or HTML document, per spec.md §6.
package report

import (
	"fmt"
	"io"

	"cryptoaudit/internal/policy"
)

// WriteText renders one line per finding for each class in names order,
// followed by a per-class total, to w.
func WriteText(w io.Writer, names []string, results map[string][]policy.Analysis) error {
	for _, className := range names {
		analyses := results[className]
		for _, a := range analyses {
			if err := writeTextLine(w, className, a); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "Total findings: %d\n", len(analyses)); err != nil {
			return err
		}
	}
	return nil
}

func writeTextLine(w io.Writer, className string, a policy.Analysis) error {
	f := a.Finding
	_, err := fmt.Fprintf(w, "class=%s:%d  method=%s  api=%s  algorithm=%s  provider=%s  verdict=%s  reason=%s  rule=%s\n",
		className,
		f.Location.Line,
		f.Location.MethodSignature,
		f.Api,
		f.ArgOrNone(0),
		f.ArgOrNone(1),
		a.Verdict,
		a.Reason,
		a.RuleId,
	)
	return err
}
