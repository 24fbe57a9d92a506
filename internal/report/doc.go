// Package report renders classification runs for people and machines:
// terminal tables for light curves and predictions, a JSON document of the
// whole run, and an optional SQLite results file.
package report
