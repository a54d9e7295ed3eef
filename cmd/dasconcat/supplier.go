package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/model"
	"github.com/Antcating/das-concat/internal/packetio"
	"github.com/Antcating/das-concat/internal/resample"
)

// pipelineSupplier chains C1 (Source) -> C2 (Reader) -> C3 (Resampler)
// into the assembly.PacketSupplier the engine consumes. It owns the
// min_time cursor described in spec §4.1: each Next call resumes from
// one sample past the last packet it successfully handed out.
type pipelineSupplier struct {
	source    *packetio.Source
	reader    packetio.Reader
	resampler *resample.Resampler
	log       daslog.Logger

	minTime float64
}

func newPipelineSupplier(source *packetio.Source, kind model.SystemKind, resampler *resample.Resampler, log daslog.Logger) *pipelineSupplier {
	return &pipelineSupplier{
		source:    source,
		reader:    packetio.NewReader(kind),
		resampler: resampler,
		log:       log.Module("pipeline"),
	}
}

// Next returns the next canonical packet, or io.EOF when the source is
// exhausted. A CorruptInput failure from the reader is logged and
// skipped (spec §7): min_time advances past the failing descriptor so
// the next call does not loop on it forever.
func (p *pipelineSupplier) Next(ctx context.Context) (*model.CanonicalPacket, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		desc, err := p.source.NextDescriptor(p.minTime)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			return nil, io.EOF
		}

		pkt, err := p.reader.Read(desc)
		if err != nil {
			p.log.Warn("corrupt input, skipping packet",
				daslog.String("path", desc.Path),
				daslog.Error(err))
			p.minTime = desc.Timestamp + 1
			continue
		}

		p.minTime = pkt.EndTime()
		p.source.MarkConsumed(filepath.Dir(desc.Path))

		canonical, err := p.resampler.Resample(ctx, pkt)
		if err != nil {
			return nil, err
		}
		return canonical, nil
	}
}
