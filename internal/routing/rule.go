package routing

import "strings"

// Criterion is a set of include and exclude predicates for one dimension of
// a routing rule. An empty criterion (no includes and no excludes) is
// vacuously satisfied.
type Criterion struct {
	Includes []string `yaml:"includes,omitempty" json:"includes,omitempty"`
	Excludes []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`
}

// match evaluates the criterion with the given predicate. Excludes are
// checked before includes: a matching exclude disqualifies regardless of
// includes, and a non-empty include set requires at least one match.
func (c *Criterion) match(pred func(string) bool) bool {
	if c == nil {
		return true
	}
	for _, v := range c.Excludes {
		if pred(v) {
			return false
		}
	}
	if len(c.Includes) == 0 {
		return true
	}
	for _, v := range c.Includes {
		if pred(v) {
			return true
		}
	}
	return false
}

// SourceCriteria selects which dataset locators a rule applies to. Absent
// criteria are wildcards.
type SourceCriteria struct {
	Paths      *Criterion `yaml:"paths,omitempty" json:"paths,omitempty"`
	Valuations *Criterion `yaml:"valuations,omitempty" json:"valuations,omitempty"`
	States     *Criterion `yaml:"states,omitempty" json:"states,omitempty"`
}

// RouteTarget is the storage location a rule resolves to, plus the
// per-operation authorization references used by the credential broker.
type RouteTarget struct {
	Scheme     string            `yaml:"scheme" json:"scheme"`
	Host       string            `yaml:"host" json:"host"`
	PathPrefix string            `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`
	Auth       map[string]string `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// URI returns the target location as "<scheme>://<host><pathPrefix>".
func (t RouteTarget) URI() string {
	return t.Scheme + "://" + t.Host + t.PathPrefix
}

// RouteRule is one ordered element of the routing policy.
type RouteRule struct {
	Source SourceCriteria `yaml:"source,omitempty" json:"source,omitempty"`
	Target RouteTarget    `yaml:"target" json:"target"`
}

// matches evaluates the rule against a locator. Criteria are evaluated in
// a fixed order: path, valuation, state.
func (r *RouteRule) matches(locator DatasetLocator) bool {
	if !r.Source.Paths.match(func(prefix string) bool {
		return strings.HasPrefix(locator.Path, prefix)
	}) {
		return false
	}
	if !r.Source.Valuations.match(func(v string) bool {
		return strings.EqualFold(v, string(locator.Valuation))
	}) {
		return false
	}
	if !r.Source.States.match(func(s string) bool {
		return strings.EqualFold(s, string(locator.State))
	}) {
		return false
	}
	return true
}
