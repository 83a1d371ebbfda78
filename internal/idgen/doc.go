// Package idgen wraps the UUID generator so that task, session and brief ids
// can be stubbed in tests. Callers treat identifiers as opaque strings.
package idgen
