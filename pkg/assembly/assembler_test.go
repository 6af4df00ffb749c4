package assembly

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func TestAssembleDigest(t *testing.T) {
	data := testData(4096)

	// Insert out of order, in uneven pieces.
	s := NewChunkStore()
	pieces := []Range{{3000, 4096}, {0, 700}, {700, 3000}}
	for _, r := range pieces {
		if err := s.Insert(r.Start, data[r.Start:r.End]); err != nil {
			t.Fatalf("Insert %v: %v", r, err)
		}
	}

	got, err := NewAssembler(s, sha256.New()).Assemble(int64(len(data)))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(got, want[:]) {
		t.Errorf("digest mismatch: got %x, want %x", got, want)
	}
}

func TestAssembleSink(t *testing.T) {
	data := testData(1024)
	s := NewChunkStore()
	s.Insert(512, data[512:])
	s.Insert(0, data[:512])

	var sink bytes.Buffer
	a := NewAssembler(s, sha256.New(), WithSink(&sink))
	if _, err := a.Assemble(int64(len(data))); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), data) {
		t.Error("sink does not match source data")
	}
	if a.BytesHashed() != int64(len(data)) {
		t.Errorf("BytesHashed = %d, want %d", a.BytesHashed(), len(data))
	}
}

func TestAssembleDetectsGap(t *testing.T) {
	s := NewChunkStore()
	s.Insert(0, make([]byte, 100))
	s.Insert(150, make([]byte, 50)) // [100,150) missing

	_, err := NewAssembler(s, sha256.New()).Assemble(200)
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
	if inv.Offset != 150 || inv.Expected != 100 {
		t.Errorf("expected offset=150 expected=100, got %+v", inv)
	}
}

func TestAssembleDetectsShortTotal(t *testing.T) {
	s := NewChunkStore()
	s.Insert(0, make([]byte, 100))

	_, err := NewAssembler(s, sha256.New()).Assemble(200)
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
}

func TestAssembleEmptyStream(t *testing.T) {
	s := NewChunkStore()
	got, err := NewAssembler(s, sha256.New()).Assemble(0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := sha256.Sum256(nil)
	if !bytes.Equal(got, want[:]) {
		t.Errorf("digest mismatch for empty stream")
	}
}
