// Package routing implements the routing-resolution engine of the data
// access service.
//
// A routing table is an ordered list of rules loaded once at startup from
// a declarative YAML or JSON document. Each rule carries source criteria
// (path prefixes, valuations, states, each with include and exclude sets)
// and a storage target (scheme, host, path prefix, per-operation auth
// references). Resolution is strictly first-match in declaration order;
// per criterion, excludes are checked before includes, and an absent
// criterion is a wildcard. The matcher never synthesizes a catch-all:
// tables without one fail resolution with ErrNoRouteFound.
package routing
