package fetcher

import (
	"context"
	"errors"

	"github.com/quaff-io/quaff/internal/progress"
	"github.com/quaff-io/quaff/internal/transport"
	"github.com/quaff-io/quaff/pkg/assembly"
)

// resolveGaps closes every hole left in the store's coverage of
// [0, total). It runs strictly sequentially: one gap at a time, one pass
// after another, until coverage is complete. If a pass ends without the
// total uncovered size shrinking, a no-progress counter ticks up; hitting
// the configured ceiling means the server is defective beyond tolerable
// truncation and the run fails with *GapError.
//
// Returns the number of passes executed.
func resolveGaps(ctx context.Context, client *transport.Client, url string, store *assembly.ChunkStore, total int64, opts Options, reporter *progress.Reporter) (int, error) {
	var (
		passes     int
		noProgress int
		prev       = int64(-1)
		lastErr    error
	)

	for {
		gaps := store.Gaps(total)
		var remaining int64
		for _, g := range gaps {
			remaining += g.Len()
		}
		if remaining == 0 {
			return passes, nil
		}

		if prev >= 0 && remaining >= prev {
			noProgress++
			if noProgress >= opts.GapPasses {
				return passes, &GapError{Passes: passes, Remaining: remaining, Err: lastErr}
			}
		} else {
			noProgress = 0
		}
		prev = remaining

		passes++
		if reporter != nil {
			reporter.GapPass(remaining)
		}

		for _, gap := range gaps {
			if err := ctx.Err(); err != nil {
				return passes, err
			}

			data, err := fetchRange(ctx, client, url, gap, opts, reporter)
			if err != nil {
				var pe *transport.ProtocolError
				if errors.As(err, &pe) {
					return passes, err
				}
				if ctx.Err() != nil {
					return passes, ctx.Err()
				}
				// A stalled gap stays open; the next pass tries again.
				lastErr = err
				continue
			}

			if err := store.Insert(gap.Start, data); err != nil {
				// Nothing else writes during this phase, so an overlap
				// here is a coverage-computation bug.
				return passes, err
			}
		}
	}
}
