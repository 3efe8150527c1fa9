package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runConfig mirrors the run command's flags so a whole experiment can be
// described in one YAML file. Explicit flags override file values.
type runConfig struct {
	Points     int     `yaml:"points"`
	Features   int     `yaml:"features"`
	Clusters   int     `yaml:"clusters"`
	Units      int     `yaml:"units"`
	Workers    int     `yaml:"workers"`
	BurstBytes int     `yaml:"burst_bytes"`
	Policy     string  `yaml:"policy"`
	Threshold  float64 `yaml:"threshold"`
	MaxIter    int     `yaml:"max_iter"`
	Seed       int64   `yaml:"seed"`
	Data       string  `yaml:"data"`
	OracleBind bool    `yaml:"oracle_bound"`
	Warmup     int     `yaml:"warmup"`
	Reps       int     `yaml:"reps"`
}

// applyConfigFile merges file values into flag-backed variables, keeping
// any value the user set explicitly on the command line.
func applyConfigFile(cmd *cobra.Command, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var cfg runConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	set := func(flag string, apply func()) {
		if !cmd.Flags().Changed(flag) {
			apply()
		}
	}

	if cfg.Points != 0 {
		set("points", func() { runPoints = cfg.Points })
	}
	if cfg.Features != 0 {
		set("features", func() { runFeatures = cfg.Features })
	}
	if cfg.Clusters != 0 {
		set("clusters", func() { runClusters = cfg.Clusters })
	}
	if cfg.Units != 0 {
		set("units", func() { runUnits = cfg.Units })
	}
	if cfg.Workers != 0 {
		set("workers", func() { runWorkers = cfg.Workers })
	}
	if cfg.BurstBytes != 0 {
		set("burst-bytes", func() { runBurstBytes = cfg.BurstBytes })
	}
	if cfg.Policy != "" {
		set("policy", func() { runPolicy = cfg.Policy })
	}
	if cfg.Threshold != 0 {
		set("threshold", func() { runThreshold = cfg.Threshold })
	}
	if cfg.MaxIter != 0 {
		set("max-iter", func() { runMaxIter = cfg.MaxIter })
	}
	if cfg.Seed != 0 {
		set("seed", func() { runSeed = cfg.Seed })
	}
	if cfg.Data != "" {
		set("data", func() { runData = cfg.Data })
	}
	if cfg.OracleBind {
		set("oracle-bound", func() { runOracleBound = true })
	}
	if cfg.Warmup != 0 {
		set("warmup", func() { runWarmup = cfg.Warmup })
	}
	if cfg.Reps != 0 {
		set("reps", func() { runReps = cfg.Reps })
	}
	return nil
}
