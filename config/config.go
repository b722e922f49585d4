// Package config holds the bus configuration: queue capacities, the number
// of page-frame reduce shards and the idle strategy shared by every
// sequence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/ringbus/ring"
)

// DefaultPrefix is the environment prefix used by LoadDefault.
const DefaultPrefix = "RINGBUS"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ConfigError reports the offending field of an invalid configuration.
type ConfigError struct {
	Field string
	Value any
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Config sizes the bus. A capacity of 0 disables the pipeline; the bus then
// returns nil for its queue and sequences. Capacities are rounded up to the
// next power of two.
type Config struct {
	PageFrameReduceShardCount  int `envconfig:"PAGE_FRAME_REDUCE_SHARD_COUNT" default:"4"`
	PageFrameDispatchCapacity  int `envconfig:"PAGE_FRAME_DISPATCH_CAPACITY" default:"64"`
	PageFrameReduceCapacity    int `envconfig:"PAGE_FRAME_REDUCE_CAPACITY" default:"64"`
	ColumnIndexerCapacity      int `envconfig:"COLUMN_INDEXER_CAPACITY" default:"64"`
	LatestByCapacity           int `envconfig:"LATEST_BY_CAPACITY" default:"32"`
	O3CallbackCapacity         int `envconfig:"O3_CALLBACK_CAPACITY" default:"128"`
	O3CopyCapacity             int `envconfig:"O3_COPY_CAPACITY" default:"128"`
	O3OpenColumnCapacity       int `envconfig:"O3_OPEN_COLUMN_CAPACITY" default:"128"`
	O3PartitionCapacity        int `envconfig:"O3_PARTITION_CAPACITY" default:"128"`
	O3PurgeDiscoveryCapacity   int `envconfig:"O3_PURGE_DISCOVERY_CAPACITY" default:"128"`
	TableWriterCommandCapacity int `envconfig:"TABLE_WRITER_COMMAND_CAPACITY" default:"32"`
	TableWriterEventCapacity   int `envconfig:"TABLE_WRITER_EVENT_CAPACITY" default:"32"`
	VectorAggregateCapacity    int `envconfig:"VECTOR_AGGREGATE_CAPACITY" default:"128"`

	WaitKind         string        `envconfig:"WAIT_KIND" default:"block"`
	WaitSpinTries    int           `envconfig:"WAIT_SPIN_TRIES" default:"100"`
	WaitYieldTries   int           `envconfig:"WAIT_YIELD_TRIES" default:"100"`
	WaitBlockTimeout time.Duration `envconfig:"WAIT_BLOCK_TIMEOUT" default:"1ms"`
}

// Default returns the built-in configuration. It matches the envconfig
// defaults above.
func Default() Config {
	wc := ring.DefaultWaitConfig()
	return Config{
		PageFrameReduceShardCount:  4,
		PageFrameDispatchCapacity:  64,
		PageFrameReduceCapacity:    64,
		ColumnIndexerCapacity:      64,
		LatestByCapacity:           32,
		O3CallbackCapacity:         128,
		O3CopyCapacity:             128,
		O3OpenColumnCapacity:       128,
		O3PartitionCapacity:        128,
		O3PurgeDiscoveryCapacity:   128,
		TableWriterCommandCapacity: 32,
		TableWriterEventCapacity:   32,
		VectorAggregateCapacity:    128,
		WaitKind:                   wc.Kind.String(),
		WaitSpinTries:              wc.SpinTries,
		WaitYieldTries:             wc.YieldTries,
		WaitBlockTimeout:           wc.BlockTimeout,
	}
}

// Load reads the configuration from environment variables named
// <prefix>_<FIELD>, e.g. RINGBUS_O3_COPY_CAPACITY, and validates it.
func Load(prefix string) (Config, error) {
	cfg := Default()
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the RINGBUS_ environment or returns
// Default when it is missing or invalid.
func LoadOrDefault() Config {
	cfg, err := Load(DefaultPrefix)
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks capacities, the shard count and the wait settings.
func (c Config) Validate() error {
	if c.PageFrameReduceShardCount < 0 {
		return &ConfigError{Field: "PageFrameReduceShardCount", Value: c.PageFrameReduceShardCount, Msg: "must not be negative"}
	}
	for _, f := range c.capacities() {
		if f.value < 0 || f.value > ring.MaxCapacity {
			return &ConfigError{Field: f.name, Value: f.value, Msg: fmt.Sprintf("must be in [0, %d]", ring.MaxCapacity)}
		}
	}
	if c.PageFrameReduceCapacity > 0 && c.PageFrameReduceShardCount == 0 {
		return &ConfigError{Field: "PageFrameReduceShardCount", Value: 0, Msg: "reduce pipeline needs at least one shard"}
	}
	if _, err := ring.ParseWaitKind(c.WaitKind); err != nil {
		return &ConfigError{Field: "WaitKind", Value: c.WaitKind, Msg: err.Error()}
	}
	if c.WaitSpinTries < 0 {
		return &ConfigError{Field: "WaitSpinTries", Value: c.WaitSpinTries, Msg: "must not be negative"}
	}
	if c.WaitYieldTries < 0 {
		return &ConfigError{Field: "WaitYieldTries", Value: c.WaitYieldTries, Msg: "must not be negative"}
	}
	if c.WaitBlockTimeout < 0 {
		return &ConfigError{Field: "WaitBlockTimeout", Value: c.WaitBlockTimeout, Msg: "must not be negative"}
	}
	return nil
}

// WaitConfig converts the wait settings. An unparsable kind falls back to
// blocking; Validate reports it.
func (c Config) WaitConfig() ring.WaitConfig {
	kind, err := ring.ParseWaitKind(c.WaitKind)
	if err != nil {
		kind = ring.WaitBlock
	}
	return ring.WaitConfig{
		Kind:         kind,
		SpinTries:    c.WaitSpinTries,
		YieldTries:   c.WaitYieldTries,
		BlockTimeout: c.WaitBlockTimeout,
	}
}

type capacityField struct {
	name  string
	value int
}

func (c Config) capacities() []capacityField {
	return []capacityField{
		{"PageFrameDispatchCapacity", c.PageFrameDispatchCapacity},
		{"PageFrameReduceCapacity", c.PageFrameReduceCapacity},
		{"ColumnIndexerCapacity", c.ColumnIndexerCapacity},
		{"LatestByCapacity", c.LatestByCapacity},
		{"O3CallbackCapacity", c.O3CallbackCapacity},
		{"O3CopyCapacity", c.O3CopyCapacity},
		{"O3OpenColumnCapacity", c.O3OpenColumnCapacity},
		{"O3PartitionCapacity", c.O3PartitionCapacity},
		{"O3PurgeDiscoveryCapacity", c.O3PurgeDiscoveryCapacity},
		{"TableWriterCommandCapacity", c.TableWriterCommandCapacity},
		{"TableWriterEventCapacity", c.TableWriterEventCapacity},
		{"VectorAggregateCapacity", c.VectorAggregateCapacity},
	}
}
