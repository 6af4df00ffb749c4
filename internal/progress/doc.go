// Package progress provides progress reporting for fetch runs.
//
// The reporter writes human-readable status lines to stderr: completion
// percentage, transfer speed, ETA, range counts, and gap-resolution
// passes. Update methods are atomic-counter based and safe to call from
// worker goroutines.
//
// # Output Format
//
//	[quaff] Fetching: http://127.0.0.1:8080/
//	[quaff] Total size: 512 KiB | Ranges: 4 | Workers: 4
//	[quaff] Progress: 45.2% | 232 KiB / 512 KiB | Speed: 1.2 MiB/s | ETA: 0s | Ranges: 1 done, 3 in flight, 0 pending
//	[quaff] Gap pass 1: 64 KiB uncovered
//	[quaff] Fetched 512 KiB in 2s (256 KiB/s, 14 requests, 1 gap passes)
//
// The package also exports [FormatBytes] and [ParseBytes], used by the
// config layer for fields like max_request.
package progress
