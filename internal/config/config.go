// Package config loads the VM/GC/trace tunables spec.md leaves as "e.g."
// constants (§3.6, §4.7) into a single struct, following the env-var +
// optional-file-overlay convention common to small CLI tools in the pack.
package config

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables spec.md names without pinning a value:
// StackMax and FramesMax (§3.6 "implementation-defined bound"),
// GCHeapGrowFactor and GCInitialThreshold (§4.7 "e.g. grow by 2x"),
// and the diagnostic switches (§4.6 trace, §4.7 verbose logging).
//
// None of the fields carry an `envDefault` tag: caarlos0/env overwrites a
// field with its default whenever the corresponding variable is unset,
// which would stomp a vex.yaml-loaded value right back to the hardcoded
// default. Defaults live in Default() instead, applied before the yaml
// overlay, so env.Parse only ever touches a field when its variable is
// actually present in the environment.
type Config struct {
	StackMax           int     `yaml:"stackMax" env:"VEX_STACK_MAX"`
	FramesMax          int     `yaml:"framesMax" env:"VEX_FRAMES_MAX"`
	GCHeapGrowFactor   float64 `yaml:"gcHeapGrowFactor" env:"VEX_GC_GROW_FACTOR"`
	GCInitialThreshold int     `yaml:"gcInitialThreshold" env:"VEX_GC_INITIAL_THRESHOLD"`
	StressGC           bool    `yaml:"stressGC" env:"VEX_STRESS_GC"`
	TraceExecution     bool    `yaml:"traceExecution" env:"VEX_TRACE_EXEC"`
	LogGC              bool    `yaml:"logGC" env:"VEX_LOG_GC"`
}

// Default returns the built-in tunables, used as the base Load starts
// from before any vex.yaml overlay or environment variable is applied.
func Default() Config {
	return Config{
		StackMax:           16384,
		FramesMax:          64,
		GCHeapGrowFactor:   2,
		GCInitialThreshold: 1048576,
	}
}

// Load starts from Default(), overlays path (if it exists) as vex.yaml,
// then applies environment variables over the result — env vars win, so
// a committed file can set project-wide defaults while a single
// invocation still overrides them. An absent path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		case os.IsNotExist(err):
			// no overlay file; proceed with Default() alone.
		default:
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
