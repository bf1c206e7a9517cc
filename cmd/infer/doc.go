// Command infer evaluates a checkpoint of a training directory on the test data and prints
// the precision. With --inspect it lists the tensors stored in the checkpoint instead.
package main
