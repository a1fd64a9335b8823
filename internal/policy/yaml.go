package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrLoad wraps any failure to read or parse a policy YAML file/resource.
type ErrLoad struct {
	Source string
	Err    error
}

func (e *ErrLoad) Error() string {
	return fmt.Sprintf("load policy %s: %v", e.Source, e.Err)
}

func (e *ErrLoad) Unwrap() error { return e.Err }

// LoadBytes parses raw policy YAML, normalizes it, and compiles its
// regexes, returning a ready-to-evaluate CompiledPolicy.
func LoadBytes(data []byte, source string) (*CompiledPolicy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &ErrLoad{Source: source, Err: err}
	}
	p.Normalize()
	return Compile(&p)
}

// LoadFile reads and parses a policy YAML file from disk.
func LoadFile(path string) (*CompiledPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrLoad{Source: path, Err: err}
	}
	return LoadBytes(data, path)
}
