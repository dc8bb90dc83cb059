// Package pipeline runs a single detection request: resolve inputs, pick and
// load a backend, detect, report, annotate, and persist.
//
// Every failure is returned as an *Error whose Kind says which stage failed.
// A failed annotated-image write is not a failure: it is recorded in
// Outcome.ImageErr, reported, and the run continues.
package pipeline
