package ringbus

// ShardStats is a point-in-time view of one pipeline shard. Values are read
// without stopping producers or consumers, so they are only mutually
// consistent within a single shard's ordering guarantees.
type ShardStats struct {
	Pipeline Pipeline
	Shard    int
	Capacity int
	// Claimed is the producer claim cursor.
	Claimed int64
	// Published is the contiguous frontier of completed producer writes.
	Published int64
	// Retired is the position the producer is gated on: the slowest
	// consumer stage.
	Retired int64
	// Lag is Published - Retired.
	Lag int64
	// Listeners is the number of fan-out members, 0 without a fan-out.
	Listeners int
}

// Stats returns one entry per enabled pipeline shard.
func (b *Bus) Stats() []ShardStats {
	return b.AppendStats(nil)
}

// AppendStats appends one entry per enabled pipeline shard to dst. It does
// not allocate when dst has room.
func (b *Bus) AppendStats(dst []ShardStats) []ShardStats {
	for p, shards := range b.pipelines {
		for i, s := range shards {
			dst = append(dst, s.stats(Pipeline(p), i))
		}
	}
	return dst
}

func (s *shard) stats(p Pipeline, i int) ShardStats {
	claimed := s.pub.Current()

	// The producer can only have claimed positions whose previous lap was
	// retired, which bounds the scan to one lap.
	retired := s.pub.Barrier().Available(claimed - int64(s.capacity) + 1)

	// No consumer passes the publish frontier, so scanning from the retired
	// position finds it.
	published := max(s.pub.Available(retired+1), retired)

	st := ShardStats{
		Pipeline:  p,
		Shard:     i,
		Capacity:  s.capacity,
		Claimed:   claimed,
		Published: published,
		Retired:   retired,
		Lag:       published - retired,
	}
	if s.fanOut != nil {
		st.Listeners = s.fanOut.Len()
	}
	return st
}
