// Package resources bundles the default catalog and policy documents
// used when the CLI is run without --catalog/--policy (spec.md §6).
package resources

import "embed"

//go:embed defaults/crypto-catalog-jce.yaml
var defaultCatalogFS embed.FS

//go:embed defaults/policy-fips-140-2-l1.yaml
var defaultPolicyFS embed.FS

// DefaultCatalogName is the bundled catalog's resource name, shown in the
// --catalog flag help and used as the source name in load errors when no
// --catalog path is supplied.
const DefaultCatalogName = "crypto-catalog-jce.yaml"

// DefaultPolicyName is the bundled policy's resource name, shown in the
// --policy flag help and used as the source name in load errors when no
// --policy path is supplied.
const DefaultPolicyName = "policy-fips-140-2-l1.yaml"

// DefaultCatalog returns the bundled default catalog YAML.
func DefaultCatalog() ([]byte, error) {
	return defaultCatalogFS.ReadFile("defaults/" + DefaultCatalogName)
}

// DefaultPolicy returns the bundled default policy YAML.
func DefaultPolicy() ([]byte, error) {
	return defaultPolicyFS.ReadFile("defaults/" + DefaultPolicyName)
}
