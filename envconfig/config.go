// Package envconfig reads the CONVTRAIN_* environment variables
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neurlang/convtrain/logutil"
)

// TrainDir returns the training directory for the params file at configPath.
// CONVTRAIN_TRAIN_DIR wins when set, otherwise it is <Runs>/<config file stem>.
func TrainDir(configPath string) string {
	if s := Var("CONVTRAIN_TRAIN_DIR"); s != "" {
		return s
	}
	stem := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	return filepath.Join(Runs(), stem)
}

// Runs is the parent directory of per-config training directories
// Configurable via CONVTRAIN_RUNS
// Default: runs
func Runs() string {
	if s := Var("CONVTRAIN_RUNS"); s != "" {
		return s
	}
	return "runs"
}

// DataDir is where datasets are downloaded and extracted
// Configurable via CONVTRAIN_DATA_DIR
// Default: $HOME/.convtrain/data
func DataDir() string {
	if s := Var("CONVTRAIN_DATA_DIR"); s != "" {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".convtrain", "data")
	}
	return filepath.Join(home, ".convtrain", "data")
}

// Host is the listen address of the summary server
// Configurable via CONVTRAIN_HOST
// Default: 127.0.0.1:6006
func Host() string {
	if s := Var("CONVTRAIN_HOST"); s != "" {
		return s
	}
	return "127.0.0.1:6006"
}

// LogLevel returns the console log level
// Configurable via CONVTRAIN_DEBUG
// Values: 0/false = INFO, 1/true = DEBUG (default), 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelDebug
	if s := Var("CONVTRAIN_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			if !b {
				level = slog.LevelInfo
			}
		} else if i, _ := strconv.ParseInt(s, 10, 64); i > 1 {
			level = logutil.LevelTrace
		}
	}
	return level
}

// Threads overrides the worker count; 0 leaves the choice to the params file and the CPU
var Threads = Uint("CONVTRAIN_THREADS", 0)

// Var returns an environment variable stripped of surrounding quotes and spaces
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
