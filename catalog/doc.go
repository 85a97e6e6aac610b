// Package catalog provides read-only product catalogs, the static association
// rule table and product name resolution.
//
// InMemory serves fixtures and tests; the sqlite subpackage serves a catalog
// database. RuleSet implements core.RuleTable and can be loaded from YAML.
// Resolver maps free-text product names onto catalog entries with exact,
// containment and fuzzy matching.
package catalog
