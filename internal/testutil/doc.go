// Package testutil contains fixtures and builders shared by tests: a small
// coffee shop catalog with association rules, and a fluent SessionBuilder.
// It is not intended for production usage.
package testutil
