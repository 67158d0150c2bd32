package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nir0k/mediageo/internal/config"
	"github.com/nir0k/mediageo/internal/location"
	"github.com/nir0k/mediageo/internal/media"
	"github.com/nir0k/mediageo/internal/tags"
	"github.com/nir0k/mediageo/internal/timestamp"
	"github.com/nir0k/mediageo/internal/xmp"
	"golang.org/x/sync/errgroup"
)

// Status is the final state of one file.
type Status string

const (
	StatusUpdated        Status = "updated"
	StatusSkippedHasData Status = "skipped_has_data"
	StatusSkippedNoData  Status = "skipped_no_data"
	StatusError          Status = "error"
)

// FileResult describes what happened to one file.
type FileResult struct {
	Path    string
	Status  Status
	Message string
	Capture time.Time
	Match   *location.Match
}

// Summary aggregates the results of a run in input order.
type Summary struct {
	Updated        int
	SkippedHasData int
	SkippedNoData  int
	Failed         int
	Unsupported    int
	Offset         time.Duration
	Files          []FileResult
}

func (s *Summary) add(r FileResult) {
	switch r.Status {
	case StatusUpdated:
		s.Updated++
	case StatusSkippedHasData:
		s.SkippedHasData++
	case StatusSkippedNoData:
		s.SkippedNoData++
	default:
		s.Failed++
	}
	s.Files = append(s.Files, r)
}

func (s *Summary) String() string {
	return fmt.Sprintf("Finished. updated=%d skipped_has_data=%d skipped_no_data=%d errors=%d unsupported=%d",
		s.Updated, s.SkippedHasData, s.SkippedNoData, s.Failed, s.Unsupported)
}

// Logger is the logging surface used by the workflow; *logger.Logger satisfies it.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type tagStore interface {
	Inspect(target media.Target) (tags.Info, error)
	Write(target media.Target, match location.Match, capture time.Time, overwrite bool) (tags.Outcome, error)
}

type resolver interface {
	Resolve(ctx context.Context, target time.Time) (location.Result, error)
}

// processor runs the per-file workflow. tags may be nil, in which case
// capture times come from readCapture and only sidecars can be written.
type processor struct {
	log         Logger
	tags        tagStore
	resolver    resolver
	source      location.Source
	readCapture func(path string) (string, error)

	zone       *time.Location
	mode       config.WriteMode
	overwrite  bool
	dryRun     bool
	offset     time.Duration
	autoOffset bool
	workers    int
	progress   func(done, total int)

	progressMu sync.Mutex
	done       int
	total      int
}

type job struct {
	target  media.Target
	capture time.Time
	// settled is set when the file needs no lookup.
	settled *FileResult
}

func (p *processor) run(ctx context.Context, targets []media.Target) (*Summary, error) {
	p.total = len(targets)
	jobs := make([]job, len(targets))

	if err := p.each(ctx, len(targets), func(ctx context.Context, i int) {
		jobs[i] = p.prepare(targets[i])
		if jobs[i].settled != nil {
			p.step()
		}
	}); err != nil {
		return nil, err
	}

	offset := p.offset
	if offset == 0 && p.autoOffset {
		captures := make([]time.Time, 0, len(jobs))
		for _, j := range jobs {
			if j.settled == nil {
				captures = append(captures, j.capture)
			}
		}
		detected, samples, err := detectOffset(ctx, p.source, captures, p.zone)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warningf("Auto offset detection failed, using 0s: %v", err)
		} else {
			offset = detected
			p.log.Infof("Auto-detected time offset: %s using %d samples", offset, samples)
		}
	} else if offset != 0 {
		p.log.Infof("Using manual time offset: %s", offset)
	}

	results := make([]FileResult, len(jobs))
	if err := p.each(ctx, len(jobs), func(ctx context.Context, i int) {
		if jobs[i].settled != nil {
			results[i] = *jobs[i].settled
			return
		}
		results[i] = p.resolve(ctx, jobs[i].target, jobs[i].capture.Add(offset))
		p.step()
	}); err != nil {
		return nil, err
	}

	sum := &Summary{Offset: offset, Files: make([]FileResult, 0, len(results))}
	for _, r := range results {
		p.report(r)
		sum.add(r)
	}
	return sum, nil
}

// each runs fn for every index on a bounded pool and stops scheduling once
// ctx is done.
func (p *processor) each(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	workers := p.workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *processor) step() {
	if p.progress == nil {
		return
	}
	p.progressMu.Lock()
	p.done++
	done := p.done
	p.progressMu.Unlock()
	p.progress(done, p.total)
}

// prepare inspects the file and computes its capture time.
func (p *processor) prepare(target media.Target) job {
	j := job{target: target}
	settle := func(status Status, format string, args ...interface{}) job {
		j.settled = &FileResult{Path: target.Path, Status: status, Message: fmt.Sprintf(format, args...)}
		return j
	}

	var info tags.Info
	if p.tags != nil {
		var err error
		info, err = p.tags.Inspect(target)
		if err != nil {
			return settle(StatusError, "read metadata: %v", err)
		}
	}

	hasData := info.HasGPS
	if p.mode == config.WriteSidecar {
		var err error
		hasData, err = xmp.HasGPS(xmp.SidecarPath(target.Path))
		if err != nil {
			return settle(StatusError, "%v", err)
		}
	}
	if hasData && !p.overwrite {
		return settle(StatusSkippedHasData, "GPS already present")
	}

	raw := info.RawDate
	zone := p.zone
	if info.AssumeUTC {
		zone = time.UTC
	}
	if raw == "" && target.Kind == media.KindImage && p.readCapture != nil {
		if fallback, err := p.readCapture(target.Path); err == nil {
			raw = fallback
		}
	}
	capture, err := timestamp.Normalize(raw, zone)
	if err != nil {
		return settle(StatusSkippedNoData, "no usable timestamp")
	}
	j.capture = capture
	return j
}

func (p *processor) resolve(ctx context.Context, target media.Target, capture time.Time) FileResult {
	out := FileResult{Path: target.Path, Capture: capture}

	res, err := p.resolver.Resolve(ctx, capture)
	if err != nil {
		out.Status = StatusError
		if location.IsTimeout(err) {
			out.Message = fmt.Sprintf("timeout: %v", err)
		} else {
			out.Message = fmt.Sprintf("lookup failed: %v", err)
		}
		return out
	}
	if !res.Found {
		out.Status = StatusSkippedNoData
		out.Message = "no suitable data found"
		return out
	}
	if res.EnrichErr != nil {
		label := "reverse geocoding failed"
		if location.IsTimeout(res.EnrichErr) {
			label = "reverse geocoding timed out"
		}
		p.log.Warningf("%s for %s: %v", label, target.Path, res.EnrichErr)
	}

	match := res.Match
	out.Match = &match
	detail := describe(match, res.Windowed)

	if p.dryRun {
		out.Status = StatusUpdated
		out.Message = "dry run, not written: " + detail
		return out
	}

	if p.mode == config.WriteSidecar {
		return p.writeSidecar(out, match, capture, detail)
	}
	return p.writeEmbedded(out, target, match, capture, detail)
}

func (p *processor) writeEmbedded(out FileResult, target media.Target, match location.Match, capture time.Time, detail string) FileResult {
	if p.tags == nil {
		out.Status = StatusError
		out.Message = "exiftool is not available"
		return out
	}
	outcome, err := p.tags.Write(target, match, capture, p.overwrite)
	switch {
	case errors.Is(err, tags.ErrGPSAlreadyPresent):
		out.Status = StatusSkippedHasData
		out.Message = "GPS already present"
	case err != nil:
		out.Status = StatusError
		out.Message = fmt.Sprintf("write tags: %v", err)
	case outcome == tags.OutcomeUnchanged:
		out.Status = StatusSkippedHasData
		out.Message = "tags already up to date"
	default:
		out.Status = StatusUpdated
		out.Message = detail
	}
	return out
}

func (p *processor) writeSidecar(out FileResult, match location.Match, capture time.Time, detail string) FileResult {
	sidecarPath := xmp.SidecarPath(out.Path)
	wrote, err := xmp.MergeAndWrite(sidecarPath, *match.Coord, match.Place, capture, p.overwrite)
	switch {
	case errors.Is(err, xmp.ErrGPSAlreadyPresent):
		out.Status = StatusSkippedHasData
		out.Message = "GPS already present in sidecar"
	case err != nil:
		out.Status = StatusError
		out.Message = fmt.Sprintf("write sidecar: %v", err)
	case !wrote:
		out.Status = StatusSkippedHasData
		out.Message = "sidecar already up to date"
	default:
		out.Status = StatusUpdated
		out.Message = detail + " -> " + sidecarPath
	}
	return out
}

func (p *processor) report(r FileResult) {
	capture := "n/a"
	if !r.Capture.IsZero() {
		capture = r.Capture.Format(time.RFC3339)
	}
	switch r.Status {
	case StatusUpdated:
		p.log.Infof("Geotagged %s (%s): %s", r.Path, capture, r.Message)
	case StatusSkippedHasData:
		p.log.Infof("Skipping %s: %s", r.Path, r.Message)
	case StatusSkippedNoData:
		p.log.Warningf("Skipping %s (%s): %s", r.Path, capture, r.Message)
	default:
		p.log.Errorf("Failed %s (%s): %s", r.Path, capture, r.Message)
	}
}

func describe(m location.Match, windowed bool) string {
	s := fmt.Sprintf("lat=%.6f lon=%.6f alt=%s delta=%ds", m.Coord.Latitude, m.Coord.Longitude, altText(m.Coord.Altitude), m.DeltaSeconds())
	if windowed {
		s += " (window)"
	}
	if !m.Place.Empty() {
		s += fmt.Sprintf(" place=%q/%q/%q", m.Place.City, m.Place.Country, m.Place.CountryCode)
	}
	return s
}

func altText(val *float64) string {
	if val == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2fm", *val)
}
