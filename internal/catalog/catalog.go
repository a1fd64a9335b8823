// Package catalog models the registry of cryptographic API entry points and
// the positional argument layout the scanner needs to pull algorithm and
// provider values out of a call site.
package catalog

import "fmt"

// ApiRef identifies a method by its declaring type and name.
type ApiRef struct {
	ClassName  string `yaml:"className"`
	MethodName string `yaml:"methodName"`
}

// ArgSpec gives the zero-based positions of the algorithm/provider
// arguments within an invocation's argument list (receiver excluded). A nil
// field means "not supplied" and is resolved to its default by Normalize.
type ArgSpec struct {
	AlgorithmIndex      *int `yaml:"algorithmIndex,omitempty"`
	ProviderNameIndex   *int `yaml:"providerNameIndex,omitempty"`
	ProviderObjectIndex *int `yaml:"providerObjectIndex,omitempty"`
}

const (
	defaultAlgorithmIndex      = 0
	defaultProviderNameIndex   = 1
	defaultProviderObjectIndex = 1
)

// normalized returns a copy of spec with every nil index field defaulted.
// A nil spec yields the all-defaults ArgSpec.
func (spec *ArgSpec) normalized() ArgSpec {
	algo, provName, provObj := defaultAlgorithmIndex, defaultProviderNameIndex, defaultProviderObjectIndex
	if spec != nil {
		if spec.AlgorithmIndex != nil {
			algo = *spec.AlgorithmIndex
		}
		if spec.ProviderNameIndex != nil {
			provName = *spec.ProviderNameIndex
		}
		if spec.ProviderObjectIndex != nil {
			provObj = *spec.ProviderObjectIndex
		}
	}
	return ArgSpec{
		AlgorithmIndex:      &algo,
		ProviderNameIndex:   &provName,
		ProviderObjectIndex: &provObj,
	}
}

// ApiEntry pairs an ApiRef with its (possibly absent) ArgSpec.
type ApiEntry struct {
	Api     ApiRef   `yaml:"api"`
	ArgSpec *ArgSpec `yaml:"argSpec,omitempty"`
}

// Catalog is the full, immutable-after-load registry of recognized APIs.
type Catalog struct {
	CatalogId string     `yaml:"catalogId"`
	Version   string     `yaml:"version,omitempty"`
	Apis      []ApiEntry `yaml:"apis"`

	// lookup is the derived "<class>#<method>" -> ArgSpec map, built once by
	// Normalize. Duplicate keys resolve first-wins, preserving insertion
	// order to keep that resolution deterministic.
	lookup map[string]ArgSpec
}

// Key builds the lookup key for a declaring class and method name.
func Key(className, methodName string) string {
	return fmt.Sprintf("%s#%s", className, methodName)
}

// Normalize applies ArgSpec defaults and builds the derived lookup map. It
// must be called exactly once after the catalog is unmarshalled; calling it
// again is idempotent (lookup is rebuilt from the same Apis slice and the
// ArgSpec defaulting produces the same result every time).
func (c *Catalog) Normalize() {
	lookup := make(map[string]ArgSpec, len(c.Apis))
	for _, entry := range c.Apis {
		key := Key(entry.Api.ClassName, entry.Api.MethodName)
		if _, exists := lookup[key]; exists {
			continue // first entry wins
		}
		lookup[key] = entry.ArgSpec.normalized()
	}
	c.lookup = lookup
}

// ArgSpecByApi returns the normalized ArgSpec registered for
// "<className>#<methodName>", and whether an entry exists at all.
func (c *Catalog) ArgSpecByApi(className, methodName string) (ArgSpec, bool) {
	spec, ok := c.lookup[Key(className, methodName)]
	return spec, ok
}

// Size reports the number of API entries in the catalog, used by the
// startup log message.
func (c *Catalog) Size() int {
	return len(c.Apis)
}
