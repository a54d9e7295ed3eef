package model

import "gonum.org/v1/gonum/mat"

// Chunk is the in-progress output matrix owned exclusively by the
// Assembly Engine. It never crosses UTC midnight and never exceeds
// SPS * CHUNK_SIZE columns.
type Chunk struct {
	OriginTime float64 // absolute UTC time of column 0
	Buffer     *mat.Dense
	Cursor     int // next free column index, 0 <= Cursor <= width
	Attrs      map[string]any
	DayEnd     float64 // UTC midnight strictly after OriginTime
}

// Width returns the chunk's allocated column capacity.
func (c *Chunk) Width() int {
	if c.Buffer == nil {
		return 0
	}
	_, w := c.Buffer.Dims()
	return w
}

// Space returns the chunk's channel count.
func (c *Chunk) Space() int {
	if c.Buffer == nil {
		return 0
	}
	s, _ := c.Buffer.Dims()
	return s
}

// EndTime is the absolute UTC time one sample past the chunk's last
// written column.
func (c *Chunk) EndTime(sps float64) float64 {
	return c.OriginTime + float64(c.Cursor)/sps
}

// Full reports whether the chunk buffer has no remaining free columns.
func (c *Chunk) Full() bool {
	return c.Cursor >= c.Width()
}

// Carry is the tail of samples from a packet that did not fit in the
// chunk that just closed, retained until the next chunk opens.
type Carry struct {
	Matrix *mat.Dense // [space, k], 0 <= k < SPS*CHUNK_SIZE
}

// Empty reports whether the carry holds zero columns.
func (c *Carry) Empty() bool {
	if c == nil || c.Matrix == nil {
		return true
	}
	_, k := c.Matrix.Dims()
	return k == 0
}

// Columns returns the carry's column count, or 0 for a nil/empty carry.
func (c *Carry) Columns() int {
	if c == nil || c.Matrix == nil {
		return 0
	}
	_, k := c.Matrix.Dims()
	return k
}

// Checkpoint is the (origin_time, cursor) pair persisted after every
// chunk flush, sufficient to resume the engine after a restart.
type Checkpoint struct {
	OriginTime float64
	Cursor     int
}
