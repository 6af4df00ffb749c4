// Command quaff fetches a fixed-length byte stream from an HTTP server
// that truncates responses unpredictably, reconstructs it exactly, and
// prints a digest of the whole stream as lowercase hex on stdout.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/quaff-io/quaff/internal/config"
	"github.com/quaff-io/quaff/internal/digest"
	"github.com/quaff-io/quaff/internal/fetcher"
	"github.com/quaff-io/quaff/internal/progress"
	"github.com/quaff-io/quaff/internal/transport"
)

// Exit codes
const (
	ExitSuccess             = 0
	ExitGeneralError        = 1
	ExitInvalidArgs         = 2
	ExitProtocolError       = 3
	ExitStalled             = 4
	ExitGapResolutionFailed = 5
	ExitStorageError        = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("quaff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "YAML config file")
	hashName := fs.String("hash", "", "digest algorithm: "+strings.Join(digest.Names(), ", "))
	save := fs.String("save", "", "bucket URL to store the verified stream (e.g. file:///tmp/out)")
	object := fs.String("object", "", "object key inside the save bucket")
	urlPath := fs.String("path", "", "resource path on the server (default /)")
	maxRequest := fs.String("max-request", "", "cap on each sub-request, e.g. 64KiB (default unlimited)")
	stallRetries := fs.Int("stall-retries", 0, "consecutive zero-byte responses before a range stalls")
	gapPasses := fs.Int("gap-passes", 0, "gap passes without progress before giving up")
	timeout := fs.Duration("timeout", 0, "per-request timeout")
	showProgress := fs.Bool("progress", false, "print live progress to stderr")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: quaff [flags] <address> <port> [workers]

Fetch the byte stream served at http://<address>:<port>/ with the given
number of parallel workers (default 1), surviving arbitrary response
truncation, and print its digest as lowercase hex.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	pos := fs.Args()
	if len(pos) < 2 || len(pos) > 3 {
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		fileCfg, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	override := config.Config{
		Address:      pos[0],
		Path:         *urlPath,
		Hash:         *hashName,
		Save:         *save,
		Object:       *object,
		StallRetries: *stallRetries,
		GapPasses:    *gapPasses,
		Timeout:      *timeout,
		Progress:     *showProgress,
	}

	port, err := strconv.Atoi(pos[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: port must be a number between 1 and 65535, got %q\n", pos[1])
		return ExitInvalidArgs
	}
	override.Port = port

	if len(pos) == 3 {
		workers, err := strconv.Atoi(pos[2])
		if err != nil || workers < 1 {
			fmt.Fprintf(os.Stderr, "Error: workers must be a positive number, got %q\n", pos[2])
			return ExitInvalidArgs
		}
		override.Workers = workers
	}

	if *maxRequest != "" {
		size, err := progress.ParseBytes(*maxRequest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		override.MaxRequest = size
	}

	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[quaff] Received interrupt, shutting down...")
		cancel()
	}()

	var bucket *blob.Bucket
	if cfg.Save != "" {
		bucket, err = blob.OpenBucket(ctx, cfg.Save)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open bucket: %v\n", err)
			return ExitStorageError
		}
		defer bucket.Close()
		if cfg.Object == "" {
			cfg.Object = objectName(cfg.Path)
		}
	}

	res, err := fetcher.Fetch(ctx, cfg.URL(), fetcher.Options{
		Workers:      cfg.Workers,
		Hash:         cfg.Hash,
		StallRetries: cfg.StallRetries,
		GapPasses:    cfg.GapPasses,
		MaxRequest:   cfg.MaxRequest,
		Progress:     cfg.Progress,
		Bucket:       bucket,
		Object:       cfg.Object,
		Transport: transport.Options{
			MaxIdleConnsPerHost: 100,
			Timeout:             cfg.Timeout,
			RetryAttempts:       cfg.Retry.Attempts,
			RetryBackoff:        cfg.Retry.Backoff,
			RetryMaxBackoff:     cfg.Retry.MaxBackoff,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	fmt.Fprintf(os.Stderr, "[quaff] Verified %s in %d ranges (%s)\n",
		progress.FormatBytes(res.Length), cfg.Workers, res.Algorithm)
	if bucket != nil {
		fmt.Fprintf(os.Stderr, "[quaff] Stored %s in %s\n", cfg.Object, cfg.Save)
	}
	fmt.Println(hex.EncodeToString(res.Digest))
	return ExitSuccess
}

// objectName derives a bucket object key from the resource path.
func objectName(urlPath string) string {
	name := path.Base(urlPath)
	if name == "/" || name == "." || name == "" {
		return "stream.bin"
	}
	return name
}

// exitCode maps fatal fetch errors onto the exit code taxonomy.
func exitCode(err error) int {
	var pe *transport.ProtocolError
	if errors.As(err, &pe) {
		return ExitProtocolError
	}
	var ge *fetcher.GapError
	if errors.As(err, &ge) {
		return ExitGapResolutionFailed
	}
	var se *fetcher.StallError
	if errors.As(err, &se) {
		return ExitStalled
	}
	return ExitGeneralError
}
