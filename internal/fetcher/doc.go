// Package fetcher orchestrates the concurrent range-fetch-and-reassembly
// run against a truncating origin server.
//
// A run has four strictly ordered phases:
//
//  1. Probe: one unranged request extracts the declared total length.
//  2. Parallel fetch: the stream is partitioned into one contiguous range
//     per worker; each worker loops ranged requests over its unfilled
//     remainder until the range is complete, then inserts it into the
//     chunk store. A worker that stalls leaves its range uncovered and
//     does not disturb its siblings.
//  3. Gap resolution: single-threaded passes over the coverage complement
//     re-fetch whatever the workers left behind, until no gap remains or
//     the passes stop making progress.
//  4. Assembly: the store is walked in offset order and fed into the
//     incremental hash; every byte is hashed exactly once or the run
//     fails.
//
// The phases map onto the error taxonomy: a *transport.ProtocolError in
// any phase aborts the run, a *StallError is recoverable until gap
// resolution gives up with *GapError, and an *assembly.InvariantError
// means the coverage bookkeeping itself is broken.
package fetcher
