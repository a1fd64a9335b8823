// Package scan matches decoded call sites against the API catalog and
// produces the Finding records spec.md §4.4 defines, using the classfile
// decoder for bytecode structure and the tracker package for argument
// value propagation.
package scan

import (
	"cryptoaudit/internal/catalog"
	"cryptoaudit/internal/classfile"
	"cryptoaudit/internal/tracker"
)

// ScanClass finds every call site in cls whose declaring class and method
// name match an entry in cat, returning one Finding per matched call
// site in class-then-method-then-instruction order.
func ScanClass(cls *classfile.Class, cat *catalog.Catalog) []Finding {
	var findings []Finding
	for _, m := range cls.Methods {
		if !m.HasCodeAttribute() {
			continue
		}
		findings = append(findings, scanMethod(cls, &m, cat)...)
	}
	return findings
}

// apiString renders the "<declaringClass>.<methodName>" form that
// Finding.Api uses for matching against a policy rule's api field. This
// is deliberately distinct from catalog.Key's "#"-joined lookup key.
func apiString(className, methodName string) string {
	return className + "." + methodName
}

func scanMethod(cls *classfile.Class, m *classfile.Method, cat *catalog.Catalog) []Finding {
	var findings []Finding
	for _, site := range tracker.Run(m) {
		ref := site.Instruction.Invoke
		if _, ok := cat.ArgSpecByApi(ref.DeclaringClass, ref.MethodName); !ok {
			continue
		}

		args := make([]ArgumentValue, len(site.Args))
		for i, v := range site.Args {
			arg := ArgumentValue{Index: i}
			if lit, ok := v.IsConst(); ok {
				arg.Printable = lit
				literal := lit
				arg.LiteralOrNull = &literal
			} else {
				arg.Printable = "<unresolved>"
				arg.LiteralOrNull = nil
			}
			args[i] = arg
		}

		findings = append(findings, Finding{
			Api:            apiString(ref.DeclaringClass, ref.MethodName),
			DeclaringClass: ref.DeclaringClass,
			MethodName:     ref.MethodName,
			SubSignature:   m.SubSignature(),
			Args:           args,
			Location: Location{
				ClassName:       cls.Name,
				MethodSignature: m.SubSignature(),
				SourceFile:      cls.SourceFile,
				Line:            site.Instruction.Line,
			},
		})
	}
	return findings
}
