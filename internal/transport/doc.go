// Package transport provides the raw request/response primitive against
// the origin server.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - The unranged length probe (Content-Length extraction)
//   - Range requests for the fetch engine
//   - Retry with exponential backoff for transport failures and 5xx
//
// The one unusual contract: a ranged response body that is shorter than
// the requested range, or that ends with the connection being closed, is a
// successful response carrying fewer bytes. The origin servers this tool
// targets truncate responses routinely, so truncation is data, not an
// error. Detecting and repairing truncation is the fetcher's job.
//
// # Usage
//
//	client := transport.NewClient(transport.DefaultOptions())
//
//	total, err := client.Probe(ctx, url)
//
//	resp, err := client.GetRange(ctx, url, assembly.Range{Start: 0, End: 1024})
//	// resp.Body holds anywhere from 0 to 1024 bytes
package transport
