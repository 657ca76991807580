// Package config holds the simulator configuration: which policy runs, the
// processor count, time slices, and the synthetic workload shape. Values can
// be overridden from a YAML file; missing fields keep their defaults.
package config

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// SimConfig configures a schedsim run.
type SimConfig struct {
	Policy        string `yaml:"policy"`          // "fifo" or "mlfq"
	Processors    int    `yaml:"processors"`      // simulated CPUs
	TopSliceMS    int    `yaml:"top_slice_ms"`    // level-0 time slice
	BottomSliceMS int    `yaml:"bottom_slice_ms"` // level-1 time slice (mlfq)
	TaskCapacity  int    `yaml:"task_capacity"`   // registry bound, 0 = default

	DBPath          string `yaml:"db_path"`           // statistics table location
	FlushIntervalMS int    `yaml:"flush_interval_ms"` // 0 = flush only at the end
	Addr            string `yaml:"addr"`              // observability listen address, "" = off
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`

	Workload WorkloadConfig `yaml:"workload"`
}

// WorkloadConfig shapes the synthetic workload.
type WorkloadConfig struct {
	Processes         int   `yaml:"processes"`            // number of synthetic processes
	TasksPerProcess   int   `yaml:"tasks_per_process"`    // tasks (threads) per process
	MinWorkMS         int   `yaml:"min_work_ms"`          // CPU-bound work per task, lower bound
	MaxWorkMS         int   `yaml:"max_work_ms"`          // upper bound
	MaxArrivalDelayMS int   `yaml:"max_arrival_delay_ms"` // randomized start delay
	Seed              int64 `yaml:"seed"`                 // 0 = derive from time
}

// Default returns the configuration used when no file is given.
func Default() SimConfig {
	return SimConfig{
		Policy:        "mlfq",
		Processors:    4,
		TopSliceMS:    50,
		BottomSliceMS: 200,
		LogLevel:      "info",
		LogFormat:     "text",
		Workload: WorkloadConfig{
			Processes:         8,
			TasksPerProcess:   2,
			MinWorkMS:         20,
			MaxWorkMS:         400,
			MaxArrivalDelayMS: 250,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (SimConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp pulls out-of-range values back to sane ones.
func (c *SimConfig) clamp() {
	if c.Policy != "fifo" && c.Policy != "mlfq" {
		c.Policy = "mlfq"
	}
	if c.Processors <= 0 {
		c.Processors = 1
	}
	if c.TopSliceMS <= 0 {
		c.TopSliceMS = 50
	}
	if c.BottomSliceMS <= 0 {
		c.BottomSliceMS = 200
	}
	if c.Workload.Processes <= 0 {
		c.Workload.Processes = 1
	}
	if c.Workload.TasksPerProcess <= 0 {
		c.Workload.TasksPerProcess = 1
	}
	if c.Workload.MinWorkMS <= 0 {
		c.Workload.MinWorkMS = 1
	}
	if c.Workload.MaxWorkMS < c.Workload.MinWorkMS {
		c.Workload.MaxWorkMS = c.Workload.MinWorkMS
	}
	if c.Workload.MaxArrivalDelayMS < 0 {
		c.Workload.MaxArrivalDelayMS = 0
	}
}
