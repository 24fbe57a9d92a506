// Package preflight provides readiness checks run before a classification:
// TOM credentials, the model backend, and the output paths.
//
// Checks never contact the TOM. A failed check is reported with a short
// detail; Err folds failures into one configuration error so the CLI can
// stop before logging in.
package preflight
