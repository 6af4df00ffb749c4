package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"testing"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/quaff-io/quaff/internal/digest"
	"github.com/quaff-io/quaff/internal/testutils"
	"github.com/quaff-io/quaff/internal/transport"
)

func testFetchOptions() Options {
	return Options{
		Transport: transport.Options{
			MaxIdleConnsPerHost: 8,
			Timeout:             10 * time.Second,
			RetryAttempts:       2,
			RetryBackoff:        time.Millisecond,
			RetryMaxBackoff:     5 * time.Millisecond,
		},
	}
}

func TestFetchBasic(t *testing.T) {
	data := testutils.GenerateTestData(t, 1024*1024)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{Data: data})

	opts := testFetchOptions()
	opts.Workers = 4

	res, err := Fetch(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(res.Digest, want[:]) {
		t.Errorf("digest mismatch: got %x, want %x", res.Digest, want)
	}
	if res.Length != int64(len(data)) {
		t.Errorf("expected length %d, got %d", len(data), res.Length)
	}
	if res.GapPasses != 0 {
		t.Errorf("expected no gap passes for a clean run, got %d", res.GapPasses)
	}
}

func TestFetchCappedResponses(t *testing.T) {
	// A server that caps every response at 64 KiB against a 512 KiB
	// stream and 4 workers: each worker's range is 128 KiB and takes
	// exactly 2 sub-requests.
	data := testutils.GenerateTestData(t, 524288)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:           data,
		MaxPerResponse: 65536,
	})

	opts := testFetchOptions()
	opts.Workers = 4

	res, err := Fetch(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(res.Digest, want[:]) {
		t.Errorf("digest mismatch: got %x, want %x", res.Digest, want)
	}
	if got := server.RangedRequests(); got != 8 {
		t.Errorf("expected exactly 8 ranged sub-requests, got %d", got)
	}
}

func TestFetchWorkerCounts(t *testing.T) {
	data := testutils.GenerateTestData(t, 100000)
	want := sha256.Sum256(data)

	for _, workers := range []int{1, 2, 3, 7, 16} {
		server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
			Data:           data,
			MaxPerResponse: 3000,
		})

		opts := testFetchOptions()
		opts.Workers = workers

		res, err := Fetch(context.Background(), server.URL, opts)
		if err != nil {
			t.Fatalf("Fetch with %d workers: %v", workers, err)
		}
		if !bytes.Equal(res.Digest, want[:]) {
			t.Errorf("digest mismatch with %d workers", workers)
		}
	}
}

func TestFetchStalledRangeResolvedByGapPass(t *testing.T) {
	data := testutils.GenerateTestData(t, 262144)
	// The second worker's range starts at 131072. Its first four
	// requests get nothing, so the worker stalls out; a later gap pass
	// finds the server cooperative again.
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:           data,
		MaxPerResponse: 65536,
		Serve: func(start, end int64, attempt int) int64 {
			if start == 131072 && attempt <= 4 {
				return 0
			}
			return -1
		},
	})

	opts := testFetchOptions()
	opts.Workers = 2
	opts.StallRetries = 3
	opts.GapPasses = 8

	res, err := Fetch(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(res.Digest, want[:]) {
		t.Error("digest mismatch after gap resolution")
	}
	if res.FailedRanges != 1 {
		t.Errorf("expected 1 failed worker range, got %d", res.FailedRanges)
	}
	if res.GapPasses < 1 {
		t.Errorf("expected at least 1 gap pass, got %d", res.GapPasses)
	}
}

func TestFetchStallsOutCompletely(t *testing.T) {
	data := testutils.GenerateTestData(t, 4096)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data: data,
		Serve: func(start, end int64, attempt int) int64 {
			return 0 // never a single byte
		},
	})

	opts := testFetchOptions()
	opts.Workers = 1
	opts.StallRetries = 2
	opts.GapPasses = 2

	_, err := Fetch(context.Background(), server.URL, opts)

	var ge *GapError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GapError, got %v", err)
	}
	if ge.Remaining != 4096 {
		t.Errorf("expected 4096 bytes uncovered, got %d", ge.Remaining)
	}
	var se *StallError
	if !errors.As(err, &se) {
		t.Errorf("expected GapError to wrap the StallError, got %v", err)
	}
}

func TestFetchMissingContentLength(t *testing.T) {
	data := testutils.GenerateTestData(t, 4096)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:              data,
		OmitContentLength: true,
	})

	opts := testFetchOptions()
	opts.Workers = 4

	_, err := Fetch(context.Background(), server.URL, opts)

	var pe *transport.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if got := server.RangedRequests(); got != 0 {
		t.Errorf("no worker may launch after a failed probe, saw %d ranged requests", got)
	}
}

func TestFetchZeroLengthStream(t *testing.T) {
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{Data: nil})

	opts := testFetchOptions()
	res, err := Fetch(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := sha256.Sum256(nil)
	if !bytes.Equal(res.Digest, want[:]) {
		t.Error("digest mismatch for empty stream")
	}
	if got := server.RangedRequests(); got != 0 {
		t.Errorf("expected no ranged requests for empty stream, got %d", got)
	}
}

func TestFetchAlternateAlgorithm(t *testing.T) {
	data := testutils.GenerateTestData(t, 65536)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:           data,
		MaxPerResponse: 10000,
	})

	opts := testFetchOptions()
	opts.Workers = 3
	opts.Hash = "blake3"

	res, err := Fetch(context.Background(), server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	h, err := digest.New("blake3")
	if err != nil {
		t.Fatalf("digest.New: %v", err)
	}
	h.Write(data)
	if !bytes.Equal(res.Digest, h.Sum(nil)) {
		t.Error("blake3 digest mismatch")
	}
	if res.Algorithm != "blake3" {
		t.Errorf("expected algorithm blake3, got %s", res.Algorithm)
	}
}

func TestFetchUnknownAlgorithm(t *testing.T) {
	opts := testFetchOptions()
	opts.Hash = "rot13"

	if _, err := Fetch(context.Background(), "http://127.0.0.1:0/", opts); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestFetchBucketSink(t *testing.T) {
	data := testutils.GenerateTestData(t, 200000)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:           data,
		MaxPerResponse: 7777,
	})

	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	opts := testFetchOptions()
	opts.Workers = 4
	opts.Bucket = bucket
	opts.Object = "stream.bin"

	res, err := Fetch(ctx, server.URL, opts)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(res.Digest, want[:]) {
		t.Error("digest mismatch")
	}

	r, err := bucket.NewReader(ctx, "stream.bin", nil)
	if err != nil {
		t.Fatalf("open stored object: %v", err)
	}
	defer r.Close()

	stored, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Error("stored object does not match source stream")
	}
}

func TestFetchCancelled(t *testing.T) {
	data := testutils.GenerateTestData(t, 1024*1024)
	server := testutils.StartTruncatingServer(t, testutils.ServerOptions{
		Data:           data,
		MaxPerResponse: 1024,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testFetchOptions()
	opts.Workers = 2

	if _, err := Fetch(ctx, server.URL, opts); err == nil {
		t.Error("expected error for cancelled context")
	}
}
