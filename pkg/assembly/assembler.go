package assembly

import (
	"fmt"
	"hash"
	"io"
)

// InvariantError reports a discontinuity or overlap that reached the
// assembler. By the time assembly runs, gap resolution must have produced
// seamless coverage, so this error always indicates a coverage-logic bug
// rather than a server-side condition.
type InvariantError struct {
	Offset   int64 // offset of the offending chunk
	Expected int64 // bytes hashed so far, i.e. the offset that was required
}

func (e *InvariantError) Error() string {
	if e.Offset > e.Expected {
		return fmt.Sprintf("assembly: gap before offset %d (hashed %d bytes)", e.Offset, e.Expected)
	}
	return fmt.Sprintf("assembly: chunk at offset %d overlaps hashed prefix of %d bytes", e.Offset, e.Expected)
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithSink makes the assembler copy every hashed byte to w, in order. The
// sink sees exactly the bytes the digest covers.
func WithSink(w io.Writer) AssemblerOption {
	return func(a *Assembler) {
		a.sink = w
	}
}

// Assembler walks a ChunkStore in offset order and feeds each chunk into an
// incremental hash. It is single-consumer: the store must not receive
// further inserts while Assemble runs.
type Assembler struct {
	store *ChunkStore
	hash  hash.Hash
	sink  io.Writer
	n     int64
}

// NewAssembler creates an assembler over store using h as the digest
// primitive.
func NewAssembler(store *ChunkStore, h hash.Hash, options ...AssemblerOption) *Assembler {
	a := &Assembler{store: store, hash: h}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// BytesHashed returns the number of bytes consumed so far.
func (a *Assembler) BytesHashed() int64 {
	return a.n
}

// Assemble consumes the store's entries from offset 0, asserting that each
// entry starts exactly where the previous one ended, and returns the
// finalized digest once exactly total bytes have been hashed.
func (a *Assembler) Assemble(total int64) ([]byte, error) {
	for _, c := range a.store.Ordered() {
		if c.Offset != a.n {
			return nil, &InvariantError{Offset: c.Offset, Expected: a.n}
		}
		a.hash.Write(c.Data) // hash.Hash.Write never returns an error
		if a.sink != nil {
			if _, err := a.sink.Write(c.Data); err != nil {
				return nil, fmt.Errorf("assembly: write sink at offset %d: %w", c.Offset, err)
			}
		}
		a.n += int64(len(c.Data))
	}
	if a.n != total {
		return nil, &InvariantError{Offset: total, Expected: a.n}
	}
	return a.hash.Sum(nil), nil
}
