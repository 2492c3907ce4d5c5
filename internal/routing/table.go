// Package routing implements the declarative routing policy that maps
// dataset locators to storage locations.
package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table is an ordered routing policy. It is loaded once at startup and is
// immutable afterwards; concurrent reads require no locking.
type Table struct {
	rules []RouteRule
}

// tableDocument is the on-disk shape of the routing policy. YAML and JSON
// documents are both accepted.
type tableDocument struct {
	Routing []RouteRule `yaml:"routing" json:"routing"`
}

// NewTable builds a table from an ordered list of rules.
func NewTable(rules []RouteRule) (*Table, error) {
	if len(rules) == 0 {
		return nil, ErrEmptyTable
	}
	return &Table{rules: rules}, nil
}

// LoadTable reads and parses the routing policy document at path. A missing
// or empty document is a startup-fatal configuration error.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing table %s: %w", path, err)
	}

	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse routing table %s: %w", path, err)
	}

	return NewTable(doc.Routing)
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	return len(t.rules)
}

// Resolve returns the first rule whose every present criterion matches the
// locator. Evaluation is strictly in declaration order; ties are resolved
// by declaration order, never by specificity. Unknown valuation or state
// values fail closed.
func (t *Table) Resolve(locator DatasetLocator) (*RouteRule, error) {
	if err := locator.Validate(); err != nil {
		return nil, err
	}
	if !locator.Valuation.Known() || !locator.State.Known() {
		getMetrics().noRouteTotal.Inc()
		return nil, fmt.Errorf("%w: locator %s/%s", ErrNoRouteFound, locator.Valuation, locator.State)
	}

	for i := range t.rules {
		if t.rules[i].matches(locator) {
			getMetrics().resolutionsTotal.Inc()
			return &t.rules[i], nil
		}
	}

	getMetrics().noRouteTotal.Inc()
	return nil, fmt.Errorf("%w: path %q", ErrNoRouteFound, locator.Path)
}

// ResolveTarget performs a reverse lookup: it returns the first rule whose
// target matches the given scheme and host. Used when a prior authoritative
// location, such as a catalog record's parent URI, must be mapped back to
// its auth configuration.
func (t *Table) ResolveTarget(scheme, host string) (*RouteRule, error) {
	for i := range t.rules {
		target := t.rules[i].Target
		if target.Scheme == scheme && target.Host == host {
			return &t.rules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: target %s://%s", ErrNoRouteFound, scheme, host)
}
