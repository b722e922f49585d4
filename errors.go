package ringbus

import (
	"errors"

	"github.com/hupe1980/ringbus/config"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus closed")

	// ErrUnknownPipeline is returned for a Pipeline value outside the enum.
	ErrUnknownPipeline = errors.New("unknown pipeline")

	// ErrShardOutOfRange is returned for a shard index the pipeline does not
	// have.
	ErrShardOutOfRange = errors.New("shard out of range")

	// ErrPipelineDisabled is returned for a pipeline configured with capacity 0.
	ErrPipelineDisabled = errors.New("pipeline disabled")

	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = config.ErrInvalidConfig
)

// ConfigError reports the offending field of an invalid configuration.
type ConfigError = config.ConfigError

// ErrQueueType is returned when a queue is requested with a record type that
// does not match the pipeline.
type ErrQueueType struct {
	Pipeline Pipeline
	Want     string
}

func (e *ErrQueueType) Error() string {
	return "queue of " + e.Pipeline.String() + " does not hold " + e.Want
}
