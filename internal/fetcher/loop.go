package fetcher

import (
	"context"

	"github.com/quaff-io/quaff/internal/progress"
	"github.com/quaff-io/quaff/internal/transport"
	"github.com/quaff-io/quaff/pkg/assembly"
)

// fetchRange returns the exact bytes for rng, re-requesting the unfilled
// remainder for as long as the server keeps truncating. Zero-byte
// responses count towards the stall ceiling; any progress resets it. The
// returned buffer has length rng.Len() exactly; on error nothing of the
// range is reported as fetched.
func fetchRange(ctx context.Context, client *transport.Client, url string, rng assembly.Range, opts Options, reporter *progress.Reporter) ([]byte, error) {
	buf := make([]byte, 0, rng.Len())
	var received int64
	zeroRuns := 0

	for received < rng.Len() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remainder := assembly.Range{Start: rng.Start + received, End: rng.End}
		if opts.MaxRequest > 0 && remainder.Len() > opts.MaxRequest {
			remainder.End = remainder.Start + opts.MaxRequest
		}

		if reporter != nil {
			reporter.RequestIssued()
		}
		resp, err := client.GetRange(ctx, url, remainder)
		if err != nil {
			return nil, err
		}

		// The transport caps the body at remainder.Len(), so appending
		// can never run past rng.End.
		if len(resp.Body) == 0 {
			zeroRuns++
			if zeroRuns >= opts.StallRetries {
				return nil, &StallError{Range: rng, Attempts: zeroRuns}
			}
			continue
		}
		zeroRuns = 0

		buf = append(buf, resp.Body...)
		received += int64(len(resp.Body))
		if reporter != nil {
			reporter.BytesReceived(int64(len(resp.Body)))
		}
	}

	return buf, nil
}
