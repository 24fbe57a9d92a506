// Package services defines shared utilities consumed by the classify pipeline
// and its remote integrations (the TOM portal and the model backends).
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, diaobject IDs, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     CLI can tell configuration problems from remote or model failures.
package services
