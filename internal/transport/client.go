package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quaff-io/quaff/pkg/assembly"
)

// ErrServerError marks a 5xx response. It is retried with backoff and only
// surfaces once the retry budget is exhausted.
var ErrServerError = errors.New("transport: server error")

// ProtocolError reports a response the client cannot work with: a missing
// or malformed Content-Length, or a status that is neither success nor
// partial content. It is fatal for the whole operation.
type ProtocolError struct {
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: protocol error (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("transport: protocol error: %s", e.Reason)
}

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retries for transport
	// failures and 5xx responses. Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff interval.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the backoff interval.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// Response is what the server sent for one request: the status, the
// headers, and however many body bytes arrived before the response ended.
// A body shorter than the requested range is not an error at this layer;
// truncation is the caller's problem to detect and re-request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client issues probe and range requests against a single origin. It is
// safe for concurrent use.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // raw bytes only; offsets must line up
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Probe issues one unranged GET and returns the total stream length the
// server declares in its Content-Length header. The body is closed without
// being read. A missing or non-numeric header, or a status other than 200,
// is a *ProtocolError.
func (c *Client) Probe(ctx context.Context, url string) (int64, error) {
	var total int64
	var lastStatus int

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastStatus = resp.StatusCode
			return fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&ProtocolError{
				Status: resp.StatusCode,
				Reason: "unexpected status for length probe",
			})
		}

		v := resp.Header.Get("Content-Length")
		if v == "" {
			return backoff.Permanent(&ProtocolError{
				Status: resp.StatusCode,
				Reason: "missing Content-Length header",
			})
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return backoff.Permanent(&ProtocolError{
				Status: resp.StatusCode,
				Reason: fmt.Sprintf("invalid Content-Length %q", v),
			})
		}

		total = n
		return nil
	}

	if err := c.retry(ctx, op); err != nil {
		return 0, c.finalErr("length probe", err, lastStatus)
	}
	return total, nil
}

// GetRange issues a ranged GET for the half-open range rng and returns the
// response with whatever body bytes the server produced, up to rng.Len().
// The server may legally send fewer bytes than requested, including zero; a
// connection that ends mid-body simply ends the response. A status other
// than 200 or 206 is a *ProtocolError.
func (c *Client) GetRange(ctx context.Context, url string, rng assembly.Range) (*Response, error) {
	if rng.Empty() {
		return nil, fmt.Errorf("transport: empty range %v", rng)
	}

	var out *Response
	var lastStatus int

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		// Wire format is inclusive on both ends.
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End-1))

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastStatus = resp.StatusCode
			return fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			return backoff.Permanent(&ProtocolError{
				Status: resp.StatusCode,
				Reason: "unexpected status for range request",
			})
		}

		out = &Response{
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   drain(resp.Body, rng.Len()),
		}
		return nil
	}

	if err := c.retry(ctx, op); err != nil {
		return nil, c.finalErr(fmt.Sprintf("range request %v", rng), err, lastStatus)
	}
	return out, nil
}

// retry runs op with exponential backoff and jitter, bounded by the
// configured attempt count and the context.
func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryBackoff
	bo.MaxInterval = c.opts.RetryMaxBackoff
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.opts.RetryAttempts)), ctx))
}

// finalErr shapes the error returned after the retry budget is spent. A
// server that never stopped answering 5xx becomes a ProtocolError; context
// cancellation and protocol errors pass through unchanged.
func (c *Client) finalErr(what string, err error, lastStatus int) error {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrServerError) {
		return &ProtocolError{
			Status: lastStatus,
			Reason: fmt.Sprintf("%s still failing after %d attempts", what, c.opts.RetryAttempts+1),
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, c.opts.RetryAttempts+1, err)
}

// drain reads the body until it ends, for whatever reason. Read errors are
// deliberately swallowed: a connection closed mid-body is the server's way
// of truncating, and the bytes that did arrive are still good. The result
// is clamped to max bytes so an over-generous server cannot smear past the
// requested range.
func drain(r io.Reader, max int64) []byte {
	var buf bytes.Buffer
	io.Copy(&buf, io.LimitReader(r, max))
	return buf.Bytes()
}
