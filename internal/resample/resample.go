// Package resample decimates a raw Packet down to the canonical sample
// rate (SPS) and channel pitch (DX) shared by every chunk in the output
// tree. Only integer-factor decimation is supported: a windowed mean
// on the time axis, a row stride on the space axis.
package resample

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/dasmetrics"
	"github.com/Antcating/das-concat/internal/model"
)

// Resampler decimates packets to the canonical SPS/DX, splitting the
// time-axis reduction across NumThreads workers that each own a disjoint
// range of rows (channels); the columns (time) are not partitioned.
type Resampler struct {
	sps        float64
	dx         float64
	numThreads int
	log        daslog.Logger
	metrics    *dasmetrics.Metrics
}

// New builds a Resampler targeting the given canonical sample rate and
// channel pitch, parallelising time-axis decimation across numThreads
// workers (clamped to at least 1). metrics may be nil.
func New(sps, dx float64, numThreads int, log daslog.Logger, metrics *dasmetrics.Metrics) *Resampler {
	if numThreads < 1 {
		numThreads = 1
	}
	if log == nil {
		log = daslog.NewTestLogger()
	}
	return &Resampler{sps: sps, dx: dx, numThreads: numThreads, log: log.Module("resample"), metrics: metrics}
}

// Resample decimates p to the canonical rate/pitch and returns the
// CanonicalPacket the Assembly Engine consumes. A packet already at or
// below the canonical rate and at or above the canonical pitch passes
// through unchanged (shallow attrs copy only). Fractional decimation factors are not supported:
// the packet passes through unchanged and the discrepancy is logged,
// per the contract's edge-case handling.
func (r *Resampler) Resample(ctx context.Context, p *model.Packet) (*model.CanonicalPacket, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveResampleDuration(time.Since(start).Seconds()) }()

	attrs := copyAttrs(p.Attrs)

	timeFactor, timeExact := factor(p.SampleRateIn, r.sps)
	// Pitch grows, not shrinks, as space is decimated: the ratio driving
	// the factor is target-over-input here, the inverse of the time axis.
	spaceFactor, spaceExact := factor(r.dx, p.ChannelPitchIn)

	m := p.Matrix

	if timeExact && timeFactor >= 2 {
		reduced, err := r.decimateTime(ctx, m, timeFactor)
		if err != nil {
			return nil, err
		}
		m = reduced
		attrs["down_factor_time"] = timeFactor
		attrs["prr_down"] = r.sps
	} else if !timeExact {
		r.log.Warn("fractional time decimation factor, passing through unchanged",
			daslog.Float64("sample_rate_in", p.SampleRateIn),
			daslog.Float64("sps", r.sps))
	}

	if spaceExact && spaceFactor >= 2 {
		m = decimateSpace(m, spaceFactor)
		attrs["down_factor_space"] = spaceFactor
		attrs["dx_down"] = r.dx
	} else if !spaceExact {
		r.log.Warn("fractional space decimation factor, passing through unchanged",
			daslog.Float64("channel_pitch_in", p.ChannelPitchIn),
			daslog.Float64("dx", r.dx))
	}

	return &model.CanonicalPacket{
		Timestamp: p.Timestamp,
		Matrix:    m,
		Attrs:     attrs,
	}, nil
}

// factor returns in/target rounded to the nearest integer and whether
// in/target is, within floating-point tolerance, exactly that integer.
// A ratio at or below 1 (upsampling) is reported as exact with factor 1
// so callers skip decimation without flagging a fractional discrepancy;
// a non-integer ratio above 1 (1.5 included) is reported as inexact.
func factor(in, target float64) (f int, exact bool) {
	if target <= 0 || in <= 0 {
		return 1, true
	}
	ratio := in / target
	if ratio <= 1.0000001 {
		return 1, true
	}
	rounded := int(ratio + 0.5)
	const tolerance = 1e-6
	diff := ratio - float64(rounded)
	if diff < 0 {
		diff = -diff
	}
	return rounded, diff < tolerance
}

// decimateTime reshapes [S, T] to [S, T/f, f] and reduces the trailing
// axis by arithmetic mean into [S, T/f], splitting the S rows across
// r.numThreads workers. Each worker owns a disjoint row range and writes
// only into its own slice of the output, so no synchronisation is needed
// beyond the final join.
func (r *Resampler) decimateTime(ctx context.Context, m *mat.Dense, f int) (*mat.Dense, error) {
	space, timeIn := m.Dims()
	timeOut := timeIn / f
	if timeOut == 0 {
		return nil, daserr.Newf("resample: time decimation factor %d exceeds packet width %d", f, timeIn).
			Component("resample").
			Category(daserr.CategoryResample).
			Build()
	}

	out := mat.NewDense(space, timeOut, nil)

	workers := r.numThreads
	if workers > space {
		workers = space
	}
	if workers < 1 {
		workers = 1
	}
	rowsPerWorker := (space + workers - 1) / workers

	g, _ := errgroup.WithContext(ctx)
	for start := 0; start < space; start += rowsPerWorker {
		start := start
		end := start + rowsPerWorker
		if end > space {
			end = space
		}
		g.Go(func() error {
			reduceRows(m, out, start, end, timeOut, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// reduceRows computes the windowed mean for rows [rowStart, rowEnd) of
// src into the corresponding rows of dst.
func reduceRows(src, dst *mat.Dense, rowStart, rowEnd, timeOut, f int) {
	for row := rowStart; row < rowEnd; row++ {
		for t := 0; t < timeOut; t++ {
			var sum float64
			base := t * f
			for k := 0; k < f; k++ {
				sum += src.At(row, base+k)
			}
			dst.Set(row, t, sum/float64(f))
		}
	}
}

// decimateSpace takes every f-th row of m, returning a new [S/f, T] matrix.
func decimateSpace(m *mat.Dense, f int) *mat.Dense {
	space, timeSamples := m.Dims()
	spaceOut := (space + f - 1) / f
	out := mat.NewDense(spaceOut, timeSamples, nil)
	for row := 0; row < spaceOut; row++ {
		srcRow := row * f
		for t := 0; t < timeSamples; t++ {
			out.Set(row, t, m.At(srcRow, t))
		}
	}
	return out
}

func copyAttrs(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	return out
}
