// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the kernel's configuration surface (spec §6 "Configuration
// surface"). It is loaded from a TOML file the same way the teacher's
// shim decodes config.toml into its options struct.
type Config struct {
	BindAddr string `toml:"bind_addr"`

	PoolSize uint64 `toml:"pool_size"`

	DefaultQuantumMicros   uint64 `toml:"default_quantum_micros"`
	DefaultQueueCapacity   int    `toml:"default_queue_capacity"`
	GCThresholdBlocks      int    `toml:"gc_threshold_blocks"`
	GCAutoCollectPercent   int    `toml:"gc_auto_collect_percent"`
	GCMinIntervalSeconds   int    `toml:"gc_min_interval_seconds"`
	PressureWarningPercent int    `toml:"pressure_warning_percent"`
	PressureCriticalPct    int    `toml:"pressure_critical_percent"`
}

// DefaultConfig matches the concrete defaults called out across spec §3/§4.
func DefaultConfig() Config {
	return Config{
		BindAddr:               "127.0.0.1:7734",
		PoolSize:                1 << 30, // 1 GiB
		DefaultQuantumMicros:   10_000, // 10ms
		DefaultQueueCapacity:   64,
		GCThresholdBlocks:      1000,
		GCAutoCollectPercent:   80,
		GCMinIntervalSeconds:   5,
		PressureWarningPercent: 80,
		PressureCriticalPct:    95,
	}
}

// DefaultQuantum returns the configured quantum as a time.Duration.
func (c Config) DefaultQuantum() time.Duration {
	return time.Duration(c.DefaultQuantumMicros) * time.Microsecond
}

// GCMinInterval returns the configured minimum GC interval.
func (c Config) GCMinInterval() time.Duration {
	return time.Duration(c.GCMinIntervalSeconds) * time.Second
}

// LoadConfig decodes a TOML file into Config, starting from DefaultConfig
// so a partial file only overrides what it sets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}
