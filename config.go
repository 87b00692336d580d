package netimp

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration file shape described in
// spec.md §6/§12: driver queue tuning, performance/worker tuning, a
// network MTU section, and the named filter presets menu. It is
// reimplemented here with gopkg.in/yaml.v3 rather than the original's
// TOML loader (see DESIGN.md): no example repo carries a TOML
// dependency, and yaml.v3 already covers this config's sectioned,
// nested-struct shape.
type FileConfig struct {
	Driver struct {
		QueueLength uint64 `yaml:"queue_length"`
		QueueTime   uint64 `yaml:"queue_time"`
		QueueSize   uint64 `yaml:"queue_size"`
	} `yaml:"driver"`

	Performance struct {
		BatchSize       int `yaml:"batch_size"`
		WorkerThreads   int `yaml:"worker_threads"`
		PacketBufSize   int `yaml:"packet_buffer_size"`
		RingCapacity    int `yaml:"ring_capacity"`
	} `yaml:"performance"`

	Network struct {
		MTUSize       int `yaml:"mtu_size"`
		MaxPacketSize int `yaml:"max_packet_size"`
	} `yaml:"network"`

	FilterPresets []FilterPreset `yaml:"filter_presets"`
}

// LoadConfigFile reads and parses a [FileConfig] from path.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "netimp: reading config file")
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "netimp: parsing config file")
	}
	return &cfg, nil
}

// DiverterParams returns the driver-section values as the
// [DiverterParam] writes [Engine.Start]'s caller should make before
// starting capture.
func (c *FileConfig) DiverterParams() map[DiverterParam]uint64 {
	return map[DiverterParam]uint64{
		ParamQueueLength: c.Driver.QueueLength,
		ParamQueueTime:   c.Driver.QueueTime,
		ParamQueueSize:   c.Driver.QueueSize,
	}
}

// StartConfig builds a [StartConfig] from the performance section,
// using filter as the diverter filter expression.
func (c *FileConfig) StartConfig(filter string) StartConfig {
	return StartConfig{
		Filter:          filter,
		WorkerCount:     c.Performance.WorkerThreads,
		MaxBatchPackets: c.Performance.BatchSize,
		MaxPacketSize:   c.Performance.PacketBufSize,
	}
}

// MonitoringCapacity returns the configured ring capacity, or the
// engine's built-in default if unset.
func (c *FileConfig) MonitoringCapacity() int {
	if c.Performance.RingCapacity <= 0 {
		return defaultMonitoringCapacity
	}
	return c.Performance.RingCapacity
}

// Presets returns the configured filter presets, or
// [DefaultFilterPresets] if the file did not define any.
func (c *FileConfig) Presets() []FilterPreset {
	if len(c.FilterPresets) == 0 {
		return DefaultFilterPresets()
	}
	return c.FilterPresets
}
