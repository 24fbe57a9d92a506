// Package main hosts the oracletom CLI.
//
// The Cobra command tree resolves configuration once, applies flag
// overrides, and hands off to the internal packages: classify runs the full
// pipeline, hot and sql expose the TOM endpoints directly, taxonomy prints
// the class tree, and runs browses the optional results database.
package main
