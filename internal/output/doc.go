// Package output renders a detection run for people and for programs: the
// console progress report and the results.json document.
//
// The report goes to stdout and is meant to be read; diagnostics go to the
// logger on stderr. results.json is rewritten on every run that asks for it.
package output
