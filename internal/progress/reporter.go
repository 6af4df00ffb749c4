package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the declared length of the stream in bytes.
	TotalSize int64

	// TotalRanges is the number of worker ranges.
	TotalRanges int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to redraw the progress line.
	// Default: 500ms
	UpdateInterval time.Duration

	// Source is the URL being fetched (for display).
	Source string
}

// Reporter outputs human-readable progress information. All update methods
// are safe to call from multiple goroutines.
type Reporter struct {
	opts Options

	mu              sync.Mutex
	fetchedBytes    atomic.Int64
	requests        atomic.Int64
	completedRanges atomic.Int32
	inFlight        atomic.Int32
	gapPasses       atomic.Int32
	startTime       time.Time
	lastUpdate      time.Time
	lastBytes       int64
	stopCh          chan struct{}
	stopped         bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[quaff] Fetching: %s\n", r.opts.Source)
	fmt.Fprintf(r.opts.Output, "[quaff] Total size: %s | Ranges: %d | Workers: %d\n",
		FormatBytes(r.opts.TotalSize),
		r.opts.TotalRanges,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// RequestIssued records one sub-request against the server.
func (r *Reporter) RequestIssued() {
	r.requests.Add(1)
}

// BytesReceived records n bytes accepted from a response body.
func (r *Reporter) BytesReceived(n int64) {
	r.fetchedBytes.Add(n)
}

// RangeStarted marks a worker range as in flight.
func (r *Reporter) RangeStarted() {
	r.inFlight.Add(1)
}

// RangeCompleted marks a worker range as fully fetched.
func (r *Reporter) RangeCompleted() {
	r.completedRanges.Add(1)
	r.inFlight.Add(-1)
}

// RangeFailed marks a worker range as failed (left for gap resolution).
func (r *Reporter) RangeFailed() {
	r.inFlight.Add(-1)
}

// GapPass records the start of one gap-resolution pass over the remaining
// uncovered bytes.
func (r *Reporter) GapPass(remaining int64) {
	pass := r.gapPasses.Add(1)
	fmt.Fprintf(r.opts.Output, "\n[quaff] Gap pass %d: %s uncovered\n",
		pass, FormatBytes(remaining))
}

func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	now := time.Now()
	fetched := r.fetchedBytes.Load()
	completed := int(r.completedRanges.Load())
	inFlight := int(r.inFlight.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(fetched-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = fetched

	var percent float64
	eta := "calculating..."
	if r.opts.TotalSize > 0 {
		percent = float64(fetched) / float64(r.opts.TotalSize) * 100
		if speed > 0 {
			remaining := float64(r.opts.TotalSize - fetched)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	pending := r.opts.TotalRanges - completed - inFlight
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[quaff] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s | Ranges: %d done, %d in flight, %d pending    ",
		percent,
		FormatBytes(fetched),
		FormatBytes(r.opts.TotalSize),
		FormatBytes(int64(speed)),
		eta,
		completed,
		inFlight,
		pending,
	)
}

func (r *Reporter) printFinalStatus() {
	fetched := r.fetchedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(fetched) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[quaff] Fetched %s in %s (%s/s, %d requests, %d gap passes)    \n",
		FormatBytes(fetched),
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
		r.requests.Load(),
		r.gapPasses.Load(),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats a byte count with binary-unit suffixes.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	v := float64(b) / float64(div)
	suffix := [...]string{"KiB", "MiB", "GiB", "TiB", "PiB"}[exp]
	if v >= 10 && v == float64(int64(v)) {
		return fmt.Sprintf("%.0f %s", v, suffix)
	}
	return fmt.Sprintf("%.1f %s", v, suffix)
}

// ParseBytes parses a human-readable byte string such as "64KiB", "1.5MB"
// or "1024". SI suffixes (KB, MB, ...) are decimal; IEC suffixes (KiB,
// MiB, ...) are binary.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "TiB"):
		multiplier = 1 << 40
		s = s[:len(s)-3]
	case strings.HasSuffix(s, "GiB"):
		multiplier = 1 << 30
		s = s[:len(s)-3]
	case strings.HasSuffix(s, "MiB"):
		multiplier = 1 << 20
		s = s[:len(s)-3]
	case strings.HasSuffix(s, "KiB"):
		multiplier = 1 << 10
		s = s[:len(s)-3]
	case strings.HasSuffix(s, "TB"):
		multiplier = 1e12
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = 1e9
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1e6
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1e3
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
