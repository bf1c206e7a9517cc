// Package trainer orchestrates a training run: it prepares the training directory, loads
// the input, network and optimizer definitions, builds the training and evaluation
// branches over one set of parameters, and runs the step loop with periodic logging,
// checkpointing and evaluation.
package trainer
