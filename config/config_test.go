package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringbus/ring"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ring.DefaultWaitConfig(), cfg.WaitConfig())
}

func TestLoad_MatchesDefaultWithoutEnv(t *testing.T) {
	cfg, err := Load("RINGBUS_TEST_EMPTY")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("RINGBUS_PAGE_FRAME_REDUCE_SHARD_COUNT", "2")
	t.Setenv("RINGBUS_O3_COPY_CAPACITY", "0")
	t.Setenv("RINGBUS_WAIT_KIND", "spin")
	t.Setenv("RINGBUS_WAIT_BLOCK_TIMEOUT", "5ms")

	cfg, err := Load(DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PageFrameReduceShardCount)
	assert.Zero(t, cfg.O3CopyCapacity)
	assert.Equal(t, 128, cfg.O3CallbackCapacity)

	wc := cfg.WaitConfig()
	assert.Equal(t, ring.WaitSpin, wc.Kind)
	assert.Equal(t, 5*time.Millisecond, wc.BlockTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("RINGBUS_LATEST_BY_CAPACITY", "-1")
	_, err := Load(DefaultPrefix)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("RINGBUS_LATEST_BY_CAPACITY", "many")
	_, err = Load(DefaultPrefix)
	assert.Error(t, err)
	assert.Equal(t, Default(), LoadOrDefault())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative shards", func(c *Config) { c.PageFrameReduceShardCount = -1 }, "PageFrameReduceShardCount"},
		{"reduce without shards", func(c *Config) { c.PageFrameReduceShardCount = 0 }, "PageFrameReduceShardCount"},
		{"capacity too large", func(c *Config) { c.O3PartitionCapacity = ring.MaxCapacity + 1 }, "O3PartitionCapacity"},
		{"negative capacity", func(c *Config) { c.TableWriterEventCapacity = -4 }, "TableWriterEventCapacity"},
		{"unknown wait kind", func(c *Config) { c.WaitKind = "sleep" }, "WaitKind"},
		{"negative spin", func(c *Config) { c.WaitSpinTries = -1 }, "WaitSpinTries"},
		{"negative timeout", func(c *Config) { c.WaitBlockTimeout = -time.Second }, "WaitBlockTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	disabled := Default()
	disabled.PageFrameReduceShardCount = 0
	disabled.PageFrameReduceCapacity = 0
	assert.NoError(t, disabled.Validate(), "reduce pipeline disabled entirely")
}
