// Package config defines configuration structures for the quaff CLI.
//
// Configuration can be provided via:
//   - Command-line flags and positional arguments
//   - Environment variables (QUAFF_ prefix)
//   - YAML configuration file
//
// Precedence, lowest to highest: defaults, config file, environment,
// flags.
//
// # Structure
//
//	type Config struct {
//	    Address      string
//	    Port         int
//	    Path         string
//	    Workers      int
//	    Hash         string
//	    Save         string
//	    Object       string
//	    MaxRequest   int64
//	    StallRetries int
//	    GapPasses    int
//	    Progress     bool
//	    Timeout      time.Duration
//	    Retry        RetryConfig
//	}
package config
