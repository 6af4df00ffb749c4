package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"github.com/quaff-io/quaff/internal/digest"
	"github.com/quaff-io/quaff/internal/progress"
	"github.com/quaff-io/quaff/internal/transport"
	"github.com/quaff-io/quaff/pkg/assembly"
)

// Options configures a fetch run.
type Options struct {
	// Workers is the number of parallel fetch workers.
	Workers int

	// Hash names the digest algorithm. Default: digest.Default.
	Hash string

	// StallRetries is how many consecutive zero-byte responses a range
	// tolerates before giving up. Default: 10.
	StallRetries int

	// GapPasses is how many gap-resolution passes may run without the
	// uncovered size shrinking before the run fails. Default: 8.
	GapPasses int

	// MaxRequest caps the size of each sub-request. 0 means each request
	// asks for the entire unfilled remainder.
	MaxRequest int64

	// Progress enables the live progress reporter.
	Progress bool

	// ProgressOutput is where progress lines go. Default: os.Stderr.
	ProgressOutput io.Writer

	// Bucket, when set, receives the verified stream under Object.
	Bucket *blob.Bucket
	Object string

	// Transport configures the HTTP client.
	Transport transport.Options
}

// Result describes a completed fetch.
type Result struct {
	Length       int64  // declared and verified stream length
	Algorithm    string // digest algorithm name
	Digest       []byte // finalized digest over the full stream
	GapPasses    int    // gap-resolution passes that ran
	FailedRanges int    // worker ranges that fell through to gap resolution
}

// Fetch reconstructs the full byte stream served at url and returns its
// digest. It probes the declared length, fetches worker ranges in
// parallel, closes any coverage gaps sequentially, and hashes the
// reassembled stream in strict offset order. No partial digest is ever
// returned: any structural failure aborts the run.
func Fetch(ctx context.Context, url string, opts Options) (*Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Hash == "" {
		opts.Hash = digest.Default
	}
	if opts.StallRetries <= 0 {
		opts.StallRetries = 10
	}
	if opts.GapPasses <= 0 {
		opts.GapPasses = 8
	}
	if opts.Transport.MaxIdleConnsPerHost == 0 {
		opts.Transport = transport.DefaultOptions()
	}

	// Fail on an unknown algorithm before touching the network.
	h, err := digest.New(opts.Hash)
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(opts.Transport)

	total, err := client.Probe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("length probe: %w", err)
	}

	store := assembly.NewChunkStore()
	ranges := assembly.Partition(total, opts.Workers)

	var reporter *progress.Reporter
	if opts.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalSize:   total,
			TotalRanges: len(ranges),
			Workers:     opts.Workers,
			Source:      url,
			Output:      opts.ProgressOutput,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	// Parallel phase. A failed range is recorded and left uncovered for
	// the gap resolver; only protocol errors abort the whole group.
	var (
		failedMu sync.Mutex
		failed   []FailedRange
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			if reporter != nil {
				reporter.RangeStarted()
			}

			data, err := fetchRange(gctx, client, url, r, opts, reporter)
			if err != nil {
				if reporter != nil {
					reporter.RangeFailed()
				}
				var pe *transport.ProtocolError
				if errors.As(err, &pe) {
					return err
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failedMu.Lock()
				failed = append(failed, FailedRange{Range: r, Err: err})
				failedMu.Unlock()
				return nil
			}

			if err := store.Insert(r.Start, data); err != nil {
				// Partitioned ranges are disjoint, so this is a bug,
				// not a server condition.
				return err
			}
			if reporter != nil {
				reporter.RangeCompleted()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	passes, err := resolveGaps(ctx, client, url, store, total, opts, reporter)
	if err != nil {
		return nil, err
	}

	// Sequential assembly. When a bucket is configured the verified
	// stream is teed into it; the writer context is cancelled on any
	// failure so no partial object is ever committed.
	var aopts []assembly.AssemblerOption
	var bw *blob.Writer
	var cancelWrite context.CancelFunc
	if opts.Bucket != nil {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		cancelWrite = cancel

		w, err := opts.Bucket.NewWriter(wctx, opts.Object, nil)
		if err != nil {
			return nil, fmt.Errorf("open bucket writer: %w", err)
		}
		bw = w
		aopts = append(aopts, assembly.WithSink(w))
	}

	sum, err := assembly.NewAssembler(store, h, aopts...).Assemble(total)
	if err != nil {
		if bw != nil {
			// Cancel before closing so the partial object is aborted,
			// not committed.
			cancelWrite()
			bw.Close()
		}
		return nil, err
	}
	if bw != nil {
		if err := bw.Close(); err != nil {
			return nil, fmt.Errorf("store stream: %w", err)
		}
	}

	return &Result{
		Length:       total,
		Algorithm:    opts.Hash,
		Digest:       sum,
		GapPasses:    passes,
		FailedRanges: len(failed),
	}, nil
}
