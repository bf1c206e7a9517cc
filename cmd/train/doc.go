// Command train trains a convolutional image classifier from four definition files.
//
// The params file names the input, network and optimizer files. All four are copied into
// <train_dir>/model_files before training, so a run can be repeated from its directory:
//
//	train --config=configs/cifar10_params.toml
//
// Checkpoints, the checkpoint index, output.log and the events.db summary store are written
// to the training directory. SIGINT stops the run after saving a checkpoint.
package main
