package report

import (
	"embed"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"

	"cryptoaudit/internal/policy"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var (
	indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))
	classTmpl = template.Must(template.ParseFS(templateFS, "templates/class.html.tmpl"))
)

type classSummary struct {
	Name        string
	Page        string
	Pass        int
	Fail        int
	Unknown     int
	Total       int
	HasProblems bool
}

type indexData struct {
	PolicyId string
	Classes  []classSummary
}

type classRow struct {
	Line      int
	Method    string
	Api       string
	Algorithm string
	Provider  string
	Verdict   string
	Reason    string
	Rule      string
}

type classData struct {
	ClassName string
	Rows      []classRow
}

// WriteHTML renders a summary index.html plus one page per class that
// contains any FAIL or UNKNOWN analysis, and copies the static CSS/JS
// assets, into outDir.
func WriteHTML(outDir string, policyId string, names []string, results map[string][]policy.Analysis) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if err := copyStaticAssets(outDir); err != nil {
		return err
	}

	data := indexData{PolicyId: policyId}
	for _, name := range names {
		analyses := results[name]
		summary := classSummary{Name: name, Page: pageName(name), Total: len(analyses)}
		for _, a := range analyses {
			switch a.Verdict {
			case policy.Pass:
				summary.Pass++
			case policy.Fail:
				summary.Fail++
				summary.HasProblems = true
			case policy.Unknown:
				summary.Unknown++
				summary.HasProblems = true
			}
		}
		data.Classes = append(data.Classes, summary)

		if summary.HasProblems {
			if err := writeClassPage(outDir, name, analyses); err != nil {
				return err
			}
		}
	}

	f, err := os.Create(filepath.Join(outDir, "index.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return indexTmpl.Execute(f, data)
}

func writeClassPage(outDir, className string, analyses []policy.Analysis) error {
	data := classData{ClassName: className}
	for _, a := range analyses {
		f := a.Finding
		data.Rows = append(data.Rows, classRow{
			Line:      f.Location.Line,
			Method:    f.Location.MethodSignature,
			Api:       f.Api,
			Algorithm: f.ArgOrNone(0),
			Provider:  f.ArgOrNone(1),
			Verdict:   string(a.Verdict),
			Reason:    a.Reason,
			Rule:      a.RuleId,
		})
	}

	out, err := os.Create(filepath.Join(outDir, pageName(className)))
	if err != nil {
		return err
	}
	defer out.Close()
	return classTmpl.Execute(out, data)
}

func pageName(className string) string {
	return className + ".html"
}

func copyStaticAssets(outDir string) error {
	return fs.WalkDir(staticFS, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := staticFS.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("static", p)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outDir, rel), data, 0o644)
	})
}
