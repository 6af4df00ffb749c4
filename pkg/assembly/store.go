package assembly

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrOverlap is returned by ChunkStore.Insert when the offered bytes would
// overlap an existing entry, including an exact duplicate. Overlaps are
// always a coverage-logic bug in the producer, never a recoverable
// condition, so the store rejects them loudly rather than merging.
var ErrOverlap = errors.New("assembly: chunk overlaps existing entry")

// Chunk is one contiguous run of bytes obtained from a single producer.
// Entries are write-once: the store never mutates Data after Insert.
type Chunk struct {
	Offset int64
	Data   []byte
}

// ChunkStore is a concurrency-safe ordered mapping from starting offset to
// the contiguous byte run obtained from that offset. Workers insert into it
// concurrently during the parallel fetch phase; the gap resolver and the
// assembler read it single-threaded afterwards.
type ChunkStore struct {
	mu     sync.Mutex
	chunks []Chunk // sorted by Offset, pairwise disjoint
}

// NewChunkStore returns an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{}
}

// Insert adds a run of bytes starting at offset. It fails with an error
// wrapping ErrOverlap if any byte of the run is already covered. Inserting
// an empty run is a no-op. The store keeps a reference to data; callers
// must not modify it afterwards.
func (s *ChunkStore) Insert(offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + int64(len(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Position of the first chunk starting at or after offset.
	i := sort.Search(len(s.chunks), func(i int) bool {
		return s.chunks[i].Offset >= offset
	})

	if i > 0 {
		prev := s.chunks[i-1]
		if prev.Offset+int64(len(prev.Data)) > offset {
			return fmt.Errorf("%w: [%d,%d) intersects [%d,%d)",
				ErrOverlap, offset, end, prev.Offset, prev.Offset+int64(len(prev.Data)))
		}
	}
	if i < len(s.chunks) {
		next := s.chunks[i]
		if next.Offset < end {
			return fmt.Errorf("%w: [%d,%d) intersects [%d,%d)",
				ErrOverlap, offset, end, next.Offset, next.Offset+int64(len(next.Data)))
		}
	}

	s.chunks = append(s.chunks, Chunk{})
	copy(s.chunks[i+1:], s.chunks[i:])
	s.chunks[i] = Chunk{Offset: offset, Data: data}
	return nil
}

// Len returns the number of entries in the store.
func (s *ChunkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// CoveredBytes returns the total number of bytes currently stored.
func (s *ChunkStore) CoveredBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.chunks {
		n += int64(len(c.Data))
	}
	return n
}

// Coverage returns the covered intervals in ascending offset order, with
// adjacent entries merged.
func (s *ChunkStore) Coverage() []Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Range
	for _, c := range s.chunks {
		end := c.Offset + int64(len(c.Data))
		if n := len(out); n > 0 && out[n-1].End == c.Offset {
			out[n-1].End = end
			continue
		}
		out = append(out, Range{Start: c.Offset, End: end})
	}
	return out
}

// Gaps returns the complement of the store's coverage within [0, total):
// the intervals that still have to be fetched.
func (s *ChunkStore) Gaps(total int64) []Range {
	var gaps []Range
	var pos int64
	for _, r := range s.Coverage() {
		if r.Start > pos {
			gaps = append(gaps, Range{Start: pos, End: r.Start})
		}
		pos = r.End
	}
	if pos < total {
		gaps = append(gaps, Range{Start: pos, End: total})
	}
	return gaps
}

// Ordered returns a snapshot of the store's entries in ascending offset
// order. The chunk data is shared, not copied; the snapshot stays valid
// across later inserts and can be walked any number of times.
func (s *ChunkStore) Ordered() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}
