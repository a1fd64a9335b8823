// Package corpus enumerates compiled class artifacts from a filesystem
// path — a directory tree or a jar/zip archive — and runs the full
// decode-track-match-evaluate pipeline over them with a bounded worker
// pool, per spec.md §4.1 and §5.
package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"cryptoaudit/internal/catalog"
	"cryptoaudit/internal/classfile"
	"cryptoaudit/internal/engine"
	"cryptoaudit/internal/policy"
	"cryptoaudit/internal/scan"
)

const classExtension = ".class"

// ErrCorpusIo is returned when the input path does not exist or cannot be
// enumerated at all; it is fatal to a scan (spec.md §7).
type ErrCorpusIo struct {
	Path string
	Err  error
}

func (e *ErrCorpusIo) Error() string {
	return fmt.Sprintf("corpus %s: %v", e.Path, e.Err)
}

func (e *ErrCorpusIo) Unwrap() error { return e.Err }

// Entry is one class-file artifact awaiting decode: its source label
// (for error messages and SourceFile fallback) and raw bytes.
type Entry struct {
	Source string
	Data   []byte
}

// Skipped records one corpus entry that failed to decode. The scan
// continues past it; the caller decides how to surface the warning.
type Skipped struct {
	Source string
	Err    error
}

// Enumerate lists every class-file entry under path, in a stable,
// deterministic order: a directory is walked lexicographically by
// relative path, an archive is walked in its own entry order then
// stably sorted by name. Entries that cannot be opened or read are left
// out silently; no warning is reported for them.
func Enumerate(path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ErrCorpusIo{Path: path, Err: err}
	}
	if info.IsDir() {
		return enumerateDir(path)
	}
	return enumerateArchive(path)
}

func enumerateDir(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), classExtension) {
			return nil
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			// An individual unreadable file is skipped without aborting
			// the walk. The skip is silent: it is not reported to the
			// caller and no warning is logged.
			return nil
		}
		entries = append(entries, Entry{Source: p, Data: data})
		return nil
	})
	if err != nil {
		return nil, &ErrCorpusIo{Path: root, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries, nil
}

func enumerateArchive(path string) ([]Entry, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ErrCorpusIo{Path: path, Err: err}
	}
	defer r.Close()

	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, classExtension) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Source: fmt.Sprintf("%s!%s", path, f.Name), Data: data})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries, nil
}

// Result is the final, sorted findings-and-analyses set for one class.
type Result struct {
	ClassName string
	Analyses  []policy.Analysis
}

// Run decodes every entry, scans it for catalog matches, evaluates each
// finding against pol, and returns results keyed by class name; the map
// itself is unordered, and SortedClassNames gives its keys in the
// lexicographic order spec.md §5 describes. workers bounds the
// degree of parallelism; a value <= 0 defaults to the number of
// available CPUs. Cancellation via ctx is cooperative at class
// boundaries: once observed, remaining unscheduled classes are dropped
// and partial results are returned.
func Run(ctx context.Context, entries []Entry, cat *catalog.Catalog, pol *policy.CompiledPolicy, workers int) (map[string][]policy.Analysis, []Skipped) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan Entry)
	resultsCh := make(chan Result)
	skippedCh := make(chan Skipped)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				res, skip := processEntry(e, cat, pol)
				if skip != nil {
					skippedCh <- *skip
					continue
				}
				resultsCh <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, e := range entries {
			select {
			case <-ctx.Done():
				return
			case jobs <- e:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
		close(skippedCh)
	}()

	results := make(map[string][]policy.Analysis)
	var skipped []Skipped
	resultsOpen, skippedOpen := true, true
	for resultsOpen || skippedOpen {
		select {
		case r, ok := <-resultsCh:
			if !ok {
				resultsOpen = false
				continue
			}
			results[r.ClassName] = r.Analyses
		case s, ok := <-skippedCh:
			if !ok {
				skippedOpen = false
				continue
			}
			skipped = append(skipped, s)
		}
	}

	return results, skipped
}

func processEntry(e Entry, cat *catalog.Catalog, pol *policy.CompiledPolicy) (Result, *Skipped) {
	cls, err := classfile.Read(bytes.NewReader(e.Data), e.Source)
	if err != nil {
		return Result{}, &Skipped{Source: e.Source, Err: err}
	}

	findings := scan.ScanClass(cls, cat)
	analyses := make([]policy.Analysis, len(findings))
	for i, f := range findings {
		analyses[i] = engine.Evaluate(cat, f, pol)
	}

	return Result{ClassName: cls.Name, Analyses: analyses}, nil
}

// SortedClassNames returns the keys of results in lexicographic order.
func SortedClassNames(results map[string][]policy.Analysis) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
