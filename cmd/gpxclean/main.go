package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nir0k/mediageo/internal/gpx"
	"github.com/spf13/pflag"
)

func main() {
	var (
		input    string
		output   string
		maxSpeed float64
	)

	pflag.StringVarP(&input, "input", "i", "", "Path to the GPX file to clean")
	pflag.StringVarP(&output, "output", "o", "", "Where to write the cleaned track (defaults to <input>.clean.gpx)")
	pflag.Float64Var(&maxSpeed, "max-speed", 70, "Drop points implying a speed above this many m/s (0 disables)")

	pflag.Parse()

	if input == "" {
		fmt.Fprintln(os.Stderr, "gpxclean failed: --input is required")
		pflag.Usage()
		os.Exit(1)
	}
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".clean.gpx"
	}

	stats, err := gpx.CleanFile(input, output, gpx.CleanOptions{MaxSpeed: maxSpeed})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpxclean failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Finished. kept=%d removed=%d no_time=%d zero=%d duplicates=%d speed_jumps=%d empty_segments=%d empty_tracks=%d -> %s\n",
		stats.Kept, stats.Removed(), stats.NoTime, stats.ZeroCoordinates, stats.Duplicates, stats.SpeedJumps, stats.EmptySegments, stats.EmptyTracks, output)
}

