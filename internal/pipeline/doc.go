// Package pipeline runs one classification pass: fetch hot transients from
// the TOM, condition their light curves, run ORACLE, and report predictions
// next to the simulation truth.
package pipeline
