// Package model holds the data types shared by every stage of the
// assembly pipeline: the packet as read off disk, the packet after
// resampling to canonical rate/pitch, the in-progress chunk, the carry
// buffer and the on-disk checkpoint.
package model

import "gonum.org/v1/gonum/mat"

// SystemKind identifies which acquisition system produced a packet.
type SystemKind int

const (
	// Columnar is the Mekorot per-packet downsampled HDF5 layout.
	Columnar SystemKind = iota
	// SegY is the Prisma SEG-Y trace layout.
	SegY
)

func (k SystemKind) String() string {
	switch k {
	case Columnar:
		return "Mekorot"
	case SegY:
		return "Prisma"
	default:
		return "unknown"
	}
}

// Packet is one input file's worth of samples, as handed from a Reader
// (C2) to the Resampler (C3). Matrix is row-major [space, time]: rows are
// channels, columns are time samples.
type Packet struct {
	SystemKind      SystemKind
	Timestamp       float64 // absolute UTC seconds, first sample, may be fractional
	DurationSeconds float64
	SampleRateIn    float64 // samples/second/channel
	ChannelPitchIn  float64 // metres
	Matrix          *mat.Dense
	Attrs           map[string]any
}

// Space returns the number of channels (matrix rows).
func (p *Packet) Space() int {
	if p.Matrix == nil {
		return 0
	}
	r, _ := p.Matrix.Dims()
	return r
}

// Time returns the number of time samples (matrix columns).
func (p *Packet) Time() int {
	if p.Matrix == nil {
		return 0
	}
	_, c := p.Matrix.Dims()
	return c
}

// EndTime is the absolute UTC time one sample past the last sample of
// the packet.
func (p *Packet) EndTime() float64 {
	return p.Timestamp + p.DurationSeconds
}

// CanonicalPacket is what the Assembly Engine (C4) consumes: a packet
// already resampled to the canonical sample rate and channel pitch.
type CanonicalPacket struct {
	Timestamp float64
	Matrix    *mat.Dense // [space_out, time_out]
	Attrs     map[string]any
}

// Space returns the number of output channels.
func (c *CanonicalPacket) Space() int {
	if c.Matrix == nil {
		return 0
	}
	r, _ := c.Matrix.Dims()
	return r
}

// Time returns the number of output time samples.
func (c *CanonicalPacket) Time() int {
	if c.Matrix == nil {
		return 0
	}
	_, cols := c.Matrix.Dims()
	return cols
}

// DurationSeconds returns the wall-clock span of the packet at the given
// canonical sample rate.
func (c *CanonicalPacket) DurationSeconds(sps float64) float64 {
	return float64(c.Time()) / sps
}

// EndTime returns the absolute UTC time one sample past the packet's
// last sample, at the given canonical sample rate.
func (c *CanonicalPacket) EndTime(sps float64) float64 {
	return c.Timestamp + c.DurationSeconds(sps)
}
