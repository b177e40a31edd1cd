package util

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the settings of a lowering run.
type Options struct {
	Src          string // Path to the unit file.
	Out          string // Path to output file. Empty for stdout.
	Threads      int    // Thread count.
	Verbose      bool   // Set true to log per function lowering decisions.
	Disasm       bool   // Set true to print the disassembly listing of every function.
	Features     string // Comma separated target extension flags.
	HostFeatures bool   // Set true to add the extensions reported by the running CPU.
	Scratch      int    // Caller-saved scratch registers per function. 0 selects the default.
	MetricsOut   string // Path of the Prometheus text file to write. Empty to skip.
}

// ---------------------
// ----- Constants -----
// ---------------------

const MaxThreads = 64 // Maximum threads allowed executing in parallel.
const maxScratch = 7  // Number of caller-saved temporaries t0..t6.

// AppVersion is printed by the version flag.
const AppVersion = "rvlower 1.0"

// Environment variables overriding built-in defaults.
const (
	EnvThreads  = "RVLOWER_THREADS"
	EnvFeatures = "RVLOWER_FEATURES"
	EnvScratch  = "RVLOWER_SCRATCH"
	EnvVerbose  = "RVLOWER_VERBOSE"
)

// ---------------------
// ----- functions -----
// ---------------------

// EnvDefaults returns the default Options with environment overrides applied. Command line flags use the result as
// their default values. The environment is read anew on every call.
func EnvDefaults() Options {
	env.Load()
	return Options{
		Threads:  env.Int(EnvThreads, 1),
		Features: env.Str(EnvFeatures),
		Scratch:  env.Int(EnvScratch, 0),
		Verbose:  env.Bool(EnvVerbose),
	}
}

// MergeTarget fills settings left unset in opt from the [target] table of a unit file. Values given on the command
// line or in the environment take precedence.
func MergeTarget(opt *Options, features []string, scratch int) error {
	target := Options{
		Features: strings.Join(features, ","),
		Scratch:  scratch,
	}
	if err := mergo.Merge(opt, target); err != nil {
		return errors.Wrap(errdefs.ErrInvalidArgument, err.Error())
	}
	return nil
}

// Validate checks that the numeric settings of opt are in range.
func (opt Options) Validate() error {
	if opt.Threads < 1 || opt.Threads > MaxThreads {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "thread count must be integer in range [1, %d], got %d",
			MaxThreads, opt.Threads)
	}
	if opt.Scratch < 0 || opt.Scratch > maxScratch {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "scratch register count must be in range [0, %d], got %d",
			maxScratch, opt.Scratch)
	}
	if len(opt.Src) < 1 {
		return errors.Wrap(errdefs.ErrInvalidArgument, "no unit file given")
	}
	return nil
}

// String returns a one line summary of opt for logging.
func (opt Options) String() string {
	return fmt.Sprintf("src=%s threads=%d features=%q scratch=%d host=%t", opt.Src, opt.Threads, opt.Features,
		opt.Scratch, opt.HostFeatures)
}
