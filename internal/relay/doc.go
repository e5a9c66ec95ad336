// Package relay implements the connection registry, binary fan-out and heartbeat liveness.
//
// The Registry is the only shared mutable state. Its lock is held to mutate
// membership or take a snapshot, never while delivering: every send goes through
// the target connection's own non-blocking queue, so one slow client cannot stall
// the others. The Hub announces joins and leaves; the Monitor sweeps on a
// clockwork ticker and evicts connections that missed a full probe cycle.
package relay
