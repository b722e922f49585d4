// Package ring provides the lock-free primitives behind the message bus:
// sequences, ring queues, barriers and fan-out groups.
//
// # Model
//
// A RingQueue is a power-of-two array of task records that are allocated once
// and overwritten in place. Positions are int64 values starting at -1 and
// address slot position&(capacity-1). Who may touch which slot is decided
// entirely by sequences:
//
//	producer ── Next/Claim ──► write slot ── Done ──► consumer ── Next ──► read slot ── Done
//	    ▲                                                                                 │
//	    └──────────────────────────── gated on (retirement) ◄─────────────────────────────┘
//
// A producer may claim p only once p-capacity has been completed by the
// barrier it is gated on, so no slot is overwritten before every gated
// consumer finished it.
//
// # Sequence Variants
//
//	┌──────────────┬───────────────────────────┬──────────────────────────────┐
//	│ Type         │ Claim                     │ Publish                      │
//	├──────────────┼───────────────────────────┼──────────────────────────────┤
//	│ SPSequence   │ plain read + barrier      │ store value                  │
//	│ SCSequence   │ plain read + barrier      │ store value                  │
//	│ MPSequence   │ CAS on claim counter      │ per-slot commit flag         │
//	│ MCSequence   │ CAS on claim counter      │ per-slot completion flag     │
//	└──────────────┴───────────────────────────┴──────────────────────────────┘
//
// Multi-writer sequences separate claiming from committing: a reader's
// barrier only advances over the contiguous prefix of committed slots, so a
// claimed but unwritten slot is never visible.
//
// # Wiring
//
// Stages are chained with Then, reading left to right:
//
//	ws := ring.NewWaitStrategy(ring.DefaultWaitConfig())
//	q, _ := ring.NewRingQueue[Task](1024, nil)
//	pub := ring.NewMPSequence(q.Capacity(), ws)
//	sub := ring.NewMCSequence(q.Capacity(), ws)
//	pub.Then(sub).Then(pub)
//
// Broadcast uses a FanOut in place of the consumer:
//
//	fo := ring.NewFanOut(ws)
//	pub.Then(fo).Then(pub)
//	listener := fo.AddConsumer()
//
// # Waiting
//
// Next never blocks and returns Unavailable when nothing can be granted.
// Claim waits according to the WaitStrategy: spin, yield, or park with a
// timeout. Sequences that share a strategy wake each other on Done.
package ring
