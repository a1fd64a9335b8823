package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrLoad wraps any failure to read or parse a catalog YAML file/resource.
type ErrLoad struct {
	Source string
	Err    error
}

func (e *ErrLoad) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Source, e.Err)
}

func (e *ErrLoad) Unwrap() error { return e.Err }

// LoadBytes parses raw catalog YAML and normalizes the result. source is
// used only for error messages (a file path or a resource name).
func LoadBytes(data []byte, source string) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &ErrLoad{Source: source, Err: err}
	}
	c.Normalize()
	return &c, nil
}

// LoadFile reads and parses a catalog YAML file from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrLoad{Source: path, Err: err}
	}
	return LoadBytes(data, path)
}
