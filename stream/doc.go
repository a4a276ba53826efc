// Package stream provides the per-session event bus between a running
// workflow turn (single producer) and the transport loop that forwards events
// to the client (single consumer).
//
// Each session owns one FIFO queue. The consumer polls with Drain, which
// empties the queue in order. A stream ends when the consumer sees the done
// sentinel event published by Complete.
package stream
