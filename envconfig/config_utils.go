package envconfig

import (
	"log/slog"
	"strconv"
)

// Uint returns a reader of a uint variable with a default
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one variable for the help output
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its current value
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CONVTRAIN_TRAIN_DIR": {"CONVTRAIN_TRAIN_DIR", Var("CONVTRAIN_TRAIN_DIR"), "Training directory (default <runs>/<config name>)"},
		"CONVTRAIN_RUNS":      {"CONVTRAIN_RUNS", Runs(), "Parent directory of training directories (default \"runs\")"},
		"CONVTRAIN_DATA_DIR":  {"CONVTRAIN_DATA_DIR", DataDir(), "Dataset download directory (default $HOME/.convtrain/data)"},
		"CONVTRAIN_DEBUG":     {"CONVTRAIN_DEBUG", LogLevel(), "Console log level: 0 info, 1 debug, 2 trace (default 1)"},
		"CONVTRAIN_HOST":      {"CONVTRAIN_HOST", Host(), "Summary server address (default 127.0.0.1:6006)"},
		"CONVTRAIN_THREADS":   {"CONVTRAIN_THREADS", Threads(), "Worker threads, 0 uses the params file or the physical core count"},
	}
}
