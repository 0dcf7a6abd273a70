// Package sanitizer normalizes client-supplied free text before validation
// and persistence. Strategies compose into pipelines so call sites state
// what a field is, not how to scrub it.
package sanitizer
