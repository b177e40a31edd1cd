package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/containerd/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rvlower/src/backend"
	"rvlower/src/ir"
	"rvlower/src/util"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand returns the rvlower command. Flag defaults come from the environment.
func newRootCommand() *cobra.Command {
	opt := util.EnvDefaults()
	cmd := &cobra.Command{
		Use:           "rvlower [flags] UNIT.toml",
		Short:         "Lower rotate and min/max operations to RISC-V 64 instruction sequences",
		Version:       util.AppVersion,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.Src = args[0]
			util.SetupLogging(opt.Verbose, cmd.ErrOrStderr())
			err := run(cmd.Context(), opt, cmd.OutOrStdout())
			if err != nil {
				log.G(cmd.Context()).WithError(err).Error("lowering failed")
			}
			return err
		},
	}

	addFlags(cmd.Flags(), &opt)
	return cmd
}

// addFlags binds the command line flags to opt. Current values of opt become the flag defaults.
func addFlags(flags *pflag.FlagSet, opt *util.Options) {
	flags.StringVarP(&opt.Out, "out", "o", "", "Path and name of the output file. Defaults to stdout.")
	flags.IntVarP(&opt.Threads, "threads", "t", opt.Threads,
		fmt.Sprintf("Number of threads to run in parallel. Must be in range [1, %d].", util.MaxThreads))
	flags.StringVar(&opt.Features, "features", opt.Features,
		"Comma separated target extensions, e.g. 'has_zbb,has_zba'. Defaults to the unit's [target] table.")
	flags.BoolVar(&opt.HostFeatures, "host-features", false, "Add the extensions reported by the running CPU.")
	flags.IntVar(&opt.Scratch, "scratch", opt.Scratch, "Caller-saved scratch registers per function, 0 for the default.")
	flags.BoolVar(&opt.Disasm, "disasm", false, "Print the disassembly listing of every function.")
	flags.StringVar(&opt.MetricsOut, "metrics-out", "", "Write lowering metrics in Prometheus text format to this file.")
	flags.BoolVarP(&opt.Verbose, "verbose", "v", opt.Verbose, "Verbose mode: log lowering decisions to stderr.")
}

// run lowers the unit named by opt.Src and writes the listings to stdout, or the file named by opt.Out.
func run(ctx context.Context, opt util.Options, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := util.ReadSource(opt)
	if err != nil {
		return err
	}
	u, err := ir.ParseUnit(filepath.Base(opt.Src), src)
	if err != nil {
		return err
	}
	if err := util.MergeTarget(&opt, u.Features, u.Scratch); err != nil {
		return err
	}
	if err := opt.Validate(); err != nil {
		return err
	}
	log.G(ctx).WithField("options", opt.String()).Debug("options")

	w := stdout
	if len(opt.Out) > 0 {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.G(ctx).WithError(err).Error("closing output file")
			}
		}()
		w = f
	}

	m := backend.NewMetrics()
	out := util.ListenWrite(opt.Threads, w)
	_, err = backend.GenerateAssembler(ctx, opt, u, out, m)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if len(opt.MetricsOut) > 0 {
		if merr := m.WriteFile(opt.MetricsOut); err == nil {
			err = merr
		}
	}
	return err
}
