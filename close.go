package ringbus

import (
	"context"
	"errors"
	"fmt"
)

// Close releases every queue. Release errors are logged, recorded with the
// metrics collector and swallowed: teardown always completes. Close is safe
// on a nil Bus and idempotent.
func (b *Bus) Close() error {
	if b == nil || !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	released, err := b.release()
	b.logger.LogClose(context.Background(), released, err)
	b.metrics.RecordClose(released, err)
	return nil
}

func (b *Bus) release() (int, error) {
	var errs []error
	released := 0
	for p, shards := range b.pipelines {
		for i, s := range shards {
			if s == nil {
				continue
			}
			if err := s.release(); err != nil {
				errs = append(errs, fmt.Errorf("%s shard %d: %w", Pipeline(p), i, err))
			}
			released++
		}
	}
	return released, errors.Join(errs...)
}
