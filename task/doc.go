// Package task defines the record types carried by the bus pipelines.
//
// Every pipeline has its own concrete record type and its own ring queue, so
// no runtime type dispatch happens on the data path. Records are mutable
// values allocated once per slot; a record's identity is its slot, not its
// contents. Producers overwrite the fields they need, consumers read and may
// write status fields back in place, and Clear resets a record for the next
// lap.
//
// The bus does not interpret task outcomes. A task that failed or was
// cancelled still has its cursor released by the consumer; the Status and Err
// fields carry the outcome to whoever reads the record next.
package task
