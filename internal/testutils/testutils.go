// Package testutils provides a truncating HTTP server for tests.
//
// The server mimics the defective origin this tool is built for: it
// declares an accurate Content-Length for the whole stream but may answer
// any ranged request with fewer bytes than asked, down to zero.
package testutils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// ServerOptions configures the truncating test server.
type ServerOptions struct {
	// Data is the full byte stream the server serves.
	Data []byte

	// MaxPerResponse caps how many bytes any single ranged response may
	// carry. 0 means uncapped.
	MaxPerResponse int64

	// OmitContentLength makes the unranged response chunked, with no
	// Content-Length header.
	OmitContentLength bool

	// Serve, when set, decides how many bytes a ranged request gets.
	// It receives the inclusive requested range and the 1-based attempt
	// number for that start offset. Return -1 to fall back to the
	// default (everything requested, subject to MaxPerResponse).
	Serve func(start, end int64, attempt int) int64
}

// Server wraps httptest.Server with request accounting.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	ranged   int
	attempts map[int64]int
}

// Requests returns the total number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// RangedRequests returns the number of ranged requests served.
func (s *Server) RangedRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranged
}

// GenerateTestData produces size bytes of deterministic pattern data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// StartTruncatingServer starts a server per opts. It is closed via
// t.Cleanup.
func StartTruncatingServer(t *testing.T, opts ServerOptions) *Server {
	t.Helper()

	s := &Server{attempts: make(map[int64]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := int64(len(opts.Data))

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			s.mu.Lock()
			s.requests++
			s.mu.Unlock()

			if opts.OmitContentLength {
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				w.Write(opts.Data)
				return
			}
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.WriteHeader(http.StatusOK)
			w.Write(opts.Data)
			return
		}

		// Parse "bytes=start-end" (inclusive).
		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)
		if end >= size {
			end = size - 1
		}
		if start > end {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		s.mu.Lock()
		s.requests++
		s.ranged++
		s.attempts[start]++
		attempt := s.attempts[start]
		s.mu.Unlock()

		n := end - start + 1
		if opts.Serve != nil {
			if v := opts.Serve(start, end, attempt); v >= 0 {
				n = v
			}
		}
		if opts.MaxPerResponse > 0 && n > opts.MaxPerResponse {
			n = opts.MaxPerResponse
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		w.WriteHeader(http.StatusPartialContent)
		if n > 0 {
			w.Write(opts.Data[start : start+n])
		}
	}))
	t.Cleanup(s.Server.Close)
	return s
}
