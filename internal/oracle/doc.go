// Package oracle turns conditioned light curves into model input batches,
// talks to the external ORACLE classifier, and interprets its hierarchical
// output.
//
// The classifier itself is not part of this module. A Model implementation
// either runs a command that reads a JSON batch on stdin (CommandModel) or
// posts the batch to an HTTP endpoint (HTTPModel). Both return one row of
// conditional probabilities per object in taxonomy.Nodes order, which the
// Predictor validates and folds into leaf probabilities.
package oracle
