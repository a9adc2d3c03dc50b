// Package types defines the shared data model for the CasePrep analysis
// cache: the statistics record every component reports into, the decoded
// cache key form, and the interfaces at the cache boundary (durable backend,
// loader, prefetch strategy).
//
// The package has no dependencies beyond the standard library so that both
// internal components and external consumers can import it freely.
package types
