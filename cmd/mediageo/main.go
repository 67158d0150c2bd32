package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nir0k/mediageo/internal/app"
	"github.com/spf13/pflag"
)

func main() {
	var (
		opts         app.Options
		offsetRaw    string
		showProgress bool
	)

	pflag.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to a KEY=VALUE configuration file (environment variables take precedence)")
	pflag.StringVarP(&opts.InputPath, "input", "i", "", "Path to a media file, directory, glob pattern or ';'-separated list")
	pflag.BoolVarP(&opts.Recursive, "recursive", "r", false, "Scan subdirectories when the input is a folder")
	pflag.StringVarP(&opts.LogLevel, "log-level", "l", "info", "Logging level for the log file")
	pflag.StringVar(&opts.LogFile, "log-file", "", "Optional log file path (defaults to a file next to the binary)")
	pflag.StringVar(&offsetRaw, "time-offset", "", "Offset added to capture times (e.g. -30s, 2m or -01:30:00)")
	pflag.BoolVar(&opts.AutoOffset, "auto-offset", false, "Estimate the camera clock offset from recorded points when time-offset is zero")
	pflag.BoolVarP(&opts.Overwrite, "overwrite-gps", "w", false, "Overwrite existing GPS data (same as OVERWRITE_GPS=true)")
	pflag.BoolVarP(&opts.DryRun, "dry-run", "n", false, "Resolve locations without writing anything")
	pflag.IntVarP(&opts.Workers, "workers", "j", 0, "Number of files processed concurrently (overrides WORKERS)")
	pflag.BoolVar(&showProgress, "progress", false, "Print progress to stderr")

	pflag.Parse()

	offset, err := app.ParseOffset(offsetRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mediageo failed: %v\n", err)
		os.Exit(1)
	}
	opts.TimeOffset = offset
	opts.PrintSummary = true
	if showProgress {
		opts.Progress = newProgressPrinter(os.Stderr).update
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := app.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mediageo failed: %v\n", err)
		os.Exit(1)
	}
	if sum.Failed > 0 {
		os.Exit(2)
	}
}
