package app

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nir0k/logger"
	"github.com/nir0k/mediageo/internal/config"
	"github.com/nir0k/mediageo/internal/dawarich"
	"github.com/nir0k/mediageo/internal/gpx"
	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/media"
	"github.com/nir0k/mediageo/internal/photon"
	"github.com/nir0k/mediageo/internal/tags"
)

// Run is the main entry point for the CLI workflow.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	return run(ctx, opts, nil)
}

// RunWithLogger allows piping logs into an in-memory buffer in addition to the log file.
func RunWithLogger(ctx context.Context, opts Options, buf *bytes.Buffer) (*Summary, error) {
	return run(ctx, opts, buf)
}

func run(ctx context.Context, opts Options, buf *bytes.Buffer) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logInstance, err := newLogger(opts, buf)
	if err != nil {
		return nil, err
	}

	infof := logInstance.Infof
	warnf := logInstance.Warningf
	errorf := logInstance.Errorf

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		errorf("Failed to load configuration: %v", err)
		return nil, err
	}
	if opts.Overwrite {
		cfg.OverwriteGPS = true
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}

	infof("Starting mediageo with source=%s input=%s recursive=%t mode=%s geocode=%s window=%s offset=%s autoOffset=%t overwrite=%t dryRun=%t workers=%d",
		cfg.Source, opts.InputPath, opts.Recursive, cfg.WriteMode, cfg.GeocodePolicy, cfg.TimeWindow, opts.TimeOffset, opts.AutoOffset, cfg.OverwriteGPS, opts.DryRun, cfg.Workers)

	source, err := buildSource(cfg, infof)
	if err != nil {
		errorf("Failed to initialise point source: %v", err)
		return nil, err
	}
	geocoder, err := buildGeocoder(cfg)
	if err != nil {
		errorf("Failed to initialise geocoder: %v", err)
		return nil, err
	}

	targets, unsupported, err := media.CollectTargets(opts.InputPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	for _, path := range unsupported {
		warnf("Skipping unsupported file: %s", path)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no media files found to process")
	}

	p := &processor{
		log: logInstance,
		resolver: &location.Resolver{
			Source:   source,
			Geocoder: geocoder,
			Window:   cfg.TimeWindow,
			Policy:   cfg.GeocodePolicy,
			Timeout:  cfg.HTTPTimeout,
			Location: cfg.Timezone,
		},
		source:      source,
		readCapture: media.ReadCaptureTime,
		zone:        cfg.Timezone,
		mode:        cfg.WriteMode,
		overwrite:   cfg.OverwriteGPS,
		dryRun:      opts.DryRun,
		offset:      opts.TimeOffset,
		autoOffset:  opts.AutoOffset,
		workers:     cfg.Workers,
		progress:    opts.Progress,
	}

	tagger, err := tags.Open(cfg.BackupOriginals)
	switch {
	case err == nil:
		defer tagger.Close()
		p.tags = tagger
	case cfg.WriteMode == config.WriteSidecar:
		warnf("exiftool unavailable, falling back to built-in EXIF reader: %v", err)
	default:
		errorf("exiftool is required for embedded writes: %v", err)
		return nil, err
	}

	sum, err := p.run(ctx, targets)
	if err != nil {
		return nil, err
	}
	sum.Unsupported = len(unsupported)

	if opts.PrintSummary {
		fmt.Println(sum.String())
	}
	infof("%s", sum.String())
	return sum, nil
}

func newLogger(opts Options, buf *bytes.Buffer) (*logger.Logger, error) {
	cfg := logger.LogConfig{
		FilePath:       opts.LogFile,
		Format:         "standard",
		FileLevel:      opts.LogLevel,
		ConsoleLevel:   "fatal",
		ConsoleOutput:  false,
		EnableRotation: true,
		RotationConfig: logger.RotationConfig{
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
	if buf != nil {
		cfg.ConsoleLevel = opts.LogLevel
	}
	logInstance, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if buf != nil {
		logInstance.Config.ConsoleOutput = true
		logInstance.ConsoleLogger = log.New(buf, "", 0)
	}
	return logInstance, nil
}

func buildSource(cfg config.Config, infof func(string, ...interface{})) (location.Source, error) {
	switch cfg.Source {
	case config.SourceGPX:
		track, err := gpx.LoadTrack(cfg.GPXPath)
		if err != nil {
			return nil, err
		}
		start, end := track.Bounds()
		infof("GPX track loaded with %d points (%s .. %s)", track.PointCount(), start.Format(time.RFC3339), end.Format(time.RFC3339))
		return track, nil
	default:
		client, err := dawarich.New(dawarich.Options{
			BaseURL:   cfg.DawarichURL,
			APIKey:    cfg.DawarichAPIKey,
			PerPage:   cfg.DawarichPerPage,
			RateLimit: cfg.DawarichRateLimit,
			Timeout:   cfg.HTTPTimeout,
			Schema:    cfg.PointSchema,
		})
		if err != nil {
			return nil, err
		}
		infof("Querying points from %s", cfg.DawarichURL)
		return client, nil
	}
}

// buildGeocoder returns a nil interface when enrichment is disabled.
func buildGeocoder(cfg config.Config) (location.Geocoder, error) {
	if cfg.GeocodePolicy == location.PolicyOff {
		return nil, nil
	}
	client, err := photon.New(photon.Options{
		BaseURL:    cfg.PhotonURL,
		Lang:       cfg.PhotonLang,
		RateLimit:  cfg.PhotonRateLimit,
		Timeout:    cfg.HTTPTimeout,
		Properties: cfg.GeocoderProps,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
