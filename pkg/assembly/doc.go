// Package assembly provides the chunk bookkeeping for reconstructing a
// byte stream that arrives out of order and in arbitrary pieces.
//
// The package has three parts:
//
//   - [Range] and [Partition]: the shared half-open offset convention and
//     the even split of [0, total) into worker ranges.
//   - [ChunkStore]: a mutex-guarded ordered map from offset to byte run.
//     Concurrent producers insert completed runs; overlapping inserts are
//     rejected with [ErrOverlap] so that no byte can ever be recorded
//     twice. Coverage and its complement ([ChunkStore.Gaps]) are derived
//     on demand.
//   - [Assembler]: a single-consumer walk over the store in offset order
//     that feeds an incremental hash.Hash, optionally tees the bytes into
//     an io.Writer sink, and enforces seamless coverage. A discontinuity
//     surfaces as [InvariantError].
//
// # Usage
//
//	store := assembly.NewChunkStore()
//	for _, r := range assembly.Partition(total, workers) {
//	    // fetch r concurrently, then:
//	    store.Insert(r.Start, data)
//	}
//	for _, gap := range store.Gaps(total) {
//	    // refetch and insert
//	}
//	digest, err := assembly.NewAssembler(store, sha256.New()).Assemble(total)
package assembly
