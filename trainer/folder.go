package trainer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/neurlang/convtrain/params"
)

// Layout of a training directory
const (
	ModelFiles    = "model_files"
	ParamsFile    = "params.toml"
	InputFile     = "input.toml"
	NetworkFile   = "network.toml"
	OptimizerFile = "optimizer.toml"
	LogFile       = "output.log"
)

// ModelFile returns the path of a copied definition file
func ModelFile(trainDir, name string) string {
	return filepath.Join(trainDir, ModelFiles, name)
}

// InitializeTrainingFolder creates <trainDir>/model_files and copies the params file at
// configPath and the three definition files it names into it. The copied params file names
// its siblings, so the run only reads the copies and the folder can seed another one.
func InitializeTrainingFolder(trainDir, configPath string) error {
	p, err := params.Load(configPath)
	if err != nil {
		return err
	}
	target := filepath.Join(trainDir, ModelFiles)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	for _, c := range []struct{ src, dst string }{
		{p.Resolve(p.InputFile), InputFile},
		{p.Resolve(p.NetworkFile), NetworkFile},
		{p.Resolve(p.OptFile), OptimizerFile},
	} {
		if err := copyFile(c.src, filepath.Join(target, c.dst)); err != nil {
			return fmt.Errorf("copy %s to the training folder: %w", c.src, err)
		}
	}
	if err := copyParams(configPath, filepath.Join(target, ParamsFile)); err != nil {
		return fmt.Errorf("copy %s to the training folder: %w", configPath, err)
	}
	return nil
}

// copyParams writes the params file with its definition paths pointing at the copies
func copyParams(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return err
	}
	m["input_file"] = InputFile
	m["network_file"] = NetworkFile
	m["opt_file"] = OptimizerFile
	if data, err = toml.Marshal(m); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func copyFile(src, dst string) error {
	if a, err := os.Stat(src); err == nil {
		if b, err := os.Stat(dst); err == nil && os.SameFile(a, b) {
			return nil
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// OpenLogFile truncates and opens <trainDir>/output.log
func OpenLogFile(trainDir string) (*os.File, error) {
	if err := os.MkdirAll(trainDir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(trainDir, LogFile))
}
