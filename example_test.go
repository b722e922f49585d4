package ringbus_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/ringbus"
	"github.com/hupe1980/ringbus/config"
	"github.com/hupe1980/ringbus/ring"
	"github.com/hupe1980/ringbus/task"
)

// Example_columnIndexer publishes an index task and runs it on a consumer.
func Example_columnIndexer() {
	bus, err := ringbus.New(config.Default())
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	var latch task.Latch
	latch.Add(1)
	_, err = ringbus.Produce(context.Background(), bus, ringbus.ColumnIndexer, 0, func(t *task.ColumnIndexerTask) {
		t.Of("trades", 2, 0, 0, 1024, 1, &latch)
	})
	if err != nil {
		log.Fatal(err)
	}

	ring.TryConsume(bus.IndexerSubSeq(), bus.IndexerQueue(), func(_ int64, t *task.ColumnIndexerTask) {
		fmt.Printf("indexing %s column %d rows [%d, %d)\n", t.TableName, t.ColumnIndex, t.RowLo, t.RowHi)
		t.Complete(nil)
	})
	latch.Wait()
	fmt.Println("indexed")
	// Output:
	// indexing trades column 2 rows [0, 1024)
	// indexed
}

// Example_disabledPipeline shows that a pipeline with capacity 0 is not built.
func Example_disabledPipeline() {
	cfg := config.Default()
	cfg.LatestByCapacity = 0

	bus, err := ringbus.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	fmt.Println(bus.Enabled(ringbus.LatestBy), bus.LatestByQueue() == nil)
	// Output: false true
}
