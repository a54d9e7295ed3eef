// Package assembly implements the stream-assembly state machine: it
// consumes canonical packets in timestamp order, classifies each against
// the in-progress chunk, splits packets that straddle a chunk or
// calendar-day boundary, carries the remainder forward, and persists a
// resumable checkpoint after every chunk write.
package assembly

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/dasmetrics"
	"github.com/Antcating/das-concat/internal/model"
)

// durationEpsilon absorbs float64 accumulation error when comparing a
// packet's timestamp against the chunk's current coverage boundary; it
// is unrelated to the 0.5s TimeInconsistency tolerance checked on every
// append.
const durationEpsilon = 1e-3

// timeInconsistencyTolerance is the maximum drift, in seconds, tolerated
// between the chunk's expected next-sample time and the incoming
// packet's aligned start before the engine aborts with TimeInconsistency.
const timeInconsistencyTolerance = 0.5

// PacketSupplier yields canonical packets in non-decreasing timestamp
// order. Next returns io.EOF once no further packet is available; the
// engine treats that as a clean, non-fatal stop.
type PacketSupplier interface {
	Next(ctx context.Context) (*model.CanonicalPacket, error)
}

// Sink is the Chunk Sink (C5): it persists a chunk's live columns to
// storage, keyed by origin time, and can reopen a previously written
// chunk's buffer for crash recovery. Write must be safe to call
// repeatedly for the same originTime (last write wins).
type Sink interface {
	Write(originTime float64, buffer *mat.Dense, attrs map[string]any) error
	Open(originTime float64) (buffer *mat.Dense, attrs map[string]any, err error)
}

// CheckpointStore is the Checkpoint Store (C6): the (origin_time,
// cursor) pair and the carry matrix, the only state that must survive a
// process restart. A nil return with a nil error means "absent".
type CheckpointStore interface {
	Get() (*model.Checkpoint, error)
	PutLast(originTime float64, cursor int) error
	GetCarry() (*mat.Dense, error)
	PutCarry(m *mat.Dense) error
	ClearCarry() error
	ClearLast() error
}

// Config carries the canonical rate and chunk duration the engine
// assembles toward. Both are loaded from internal/dasconf.Settings at
// startup and never change for the lifetime of an Engine.
type Config struct {
	SPS           float64
	ChunkDuration float64 // seconds, CHUNK_SIZE
}

// Engine is the sole owner of the in-progress Chunk and Carry. It is
// not safe for concurrent use — the contract assumes a single-threaded
// cooperative pipeline, per the scheduling model.
type Engine struct {
	cfg         Config
	sink        Sink
	checkpoints CheckpointStore
	log         daslog.Logger
	metrics     *dasmetrics.Metrics

	chunk *model.Chunk
	carry *model.Carry

	previousChunkTime float64
	previousCursor    int
}

// New constructs an Engine. Call Resume before the first Run to load
// any prior checkpoint/carry/partial chunk. metrics may be nil.
func New(cfg Config, sink Sink, checkpoints CheckpointStore, log daslog.Logger, metrics *dasmetrics.Metrics) *Engine {
	if log == nil {
		log = daslog.NewTestLogger()
	}
	return &Engine{cfg: cfg, sink: sink, checkpoints: checkpoints, log: log.Module("assembly"), metrics: metrics}
}

func (e *Engine) width() int {
	return int(math.Round(e.cfg.SPS * e.cfg.ChunkDuration))
}

// Resume implements the startup resume protocol: load the checkpoint,
// determine whether the prior chunk had already closed, and either load
// the pending carry or reopen the partial on-disk chunk to continue
// appending at its cursor.
func (e *Engine) Resume() error {
	ckpt, err := e.checkpoints.Get()
	if err != nil {
		return err
	}
	if ckpt == nil {
		return nil
	}

	width := e.width()
	end := ckpt.OriginTime + float64(ckpt.Cursor)/e.cfg.SPS
	dayEnd := nextMidnightUTC(ckpt.OriginTime)

	if ckpt.Cursor >= width || end >= dayEnd {
		carryMatrix, err := e.checkpoints.GetCarry()
		if err != nil {
			return err
		}
		if carryMatrix != nil {
			e.carry = &model.Carry{Matrix: carryMatrix}
		}
		e.previousChunkTime = ckpt.OriginTime
		e.previousCursor = ckpt.Cursor
		return nil
	}

	buffer, attrs, err := e.sink.Open(ckpt.OriginTime)
	if err != nil {
		return daserr.New(err).
			Component("assembly").
			Category(daserr.CategoryRestoreMissing).
			Priority(daserr.PriorityCritical).
			Build()
	}

	space, cols := buffer.Dims()
	padded := mat.NewDense(space, width, nil)
	for row := 0; row < space; row++ {
		for col := 0; col < cols; col++ {
			padded.Set(row, col, buffer.At(row, col))
		}
	}

	e.chunk = &model.Chunk{
		OriginTime: ckpt.OriginTime,
		Buffer:     padded,
		Cursor:     ckpt.Cursor,
		Attrs:      attrs,
		DayEnd:     dayEnd,
	}
	return nil
}

// Run pulls canonical packets from supplier until it is exhausted. The
// in-progress chunk, if any, is left unflushed on exhaustion — the
// checkpoint already reflects the last completed flush, and the next
// run resumes from it.
func (e *Engine) Run(ctx context.Context, supplier PacketSupplier) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := supplier.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := e.ingest(pkt); err != nil {
			return err
		}
	}
}

// ingest runs one packet through classification and application. Only
// one packet is consumed per call; a day- or chunk-boundary split
// leaves the remainder in carry for the next packet's chunk-open.
func (e *Engine) ingest(pkt *model.CanonicalPacket) error {
	if e.chunk != nil && e.chunk.Space() != pkt.Space() {
		e.log.Warn("canonical packet space mismatch, closing current chunk",
			daslog.Int("chunk_space", e.chunk.Space()),
			daslog.Int("packet_space", pkt.Space()))
		if err := e.closeChunk(); err != nil {
			return err
		}
		e.carry = nil
		if err := e.checkpoints.ClearCarry(); err != nil {
			return daserr.New(err).Component("assembly").Category(daserr.CategoryCheckpointIO).Build()
		}
	}

	if e.chunk == nil {
		e.openChunk(pkt)
	}

	endCoverage := e.chunk.EndTime(e.cfg.SPS)
	duration := pkt.DurationSeconds(e.cfg.SPS)

	// Gap: the packet starts strictly after the chunk's coverage ends.
	if pkt.Timestamp > endCoverage+durationEpsilon {
		e.metrics.RecordGap()
		if err := e.closeChunk(); err != nil {
			return err
		}
		e.carry = nil
		e.openChunk(pkt)
		endCoverage = e.chunk.EndTime(e.cfg.SPS)
	}

	// Overlap-skip: the whole packet lands before the current cursor.
	if pkt.Timestamp+duration <= endCoverage+durationEpsilon {
		e.metrics.RecordOverlapSkip()
		return nil
	}

	startSplit := 0
	if pkt.Timestamp < endCoverage {
		startSplit = int(math.Round(e.cfg.SPS * (endCoverage - pkt.Timestamp)))
		if startSplit < 0 {
			startSplit = 0
		}
		if startSplit > pkt.Time() {
			startSplit = pkt.Time()
		}
	}

	return e.apply(pkt, startSplit)
}

// apply appends the packet's usable slice [startSplit:) to the chunk,
// splitting further at a day or chunk boundary if the remainder would
// overshoot either, and flushes when a boundary was crossed or the
// buffer is now full.
func (e *Engine) apply(pkt *model.CanonicalPacket, startSplit int) error {
	usableCols := pkt.Time() - startSplit
	if usableCols <= 0 {
		return nil
	}

	expected := e.chunk.EndTime(e.cfg.SPS)
	actual := pkt.Timestamp + float64(startSplit)/e.cfg.SPS
	if math.Abs(expected-actual) > timeInconsistencyTolerance {
		return daserr.Newf("assembly: time drift %.3fs between chunk coverage and packet start exceeds tolerance",
			actual-expected).
			Component("assembly").
			Category(daserr.CategoryTimeInconsistency).
			Priority(daserr.PriorityCritical).
			Build()
	}

	remainingChunk := e.chunk.Width() - e.chunk.Cursor
	remainingDayCols := int(math.Round(e.cfg.SPS * (e.chunk.DayEnd - expected)))

	limit := usableCols
	crossesBoundary := false
	if remainingDayCols < limit {
		limit = remainingDayCols
		crossesBoundary = true
	}
	if remainingChunk < limit {
		limit = remainingChunk
		crossesBoundary = true
	}
	if limit < 0 {
		limit = 0
	}

	endSplit := startSplit + limit

	e.appendColumns(pkt, startSplit, endSplit)

	if crossesBoundary {
		e.metrics.RecordBoundarySplit()
		e.carry = sliceCarry(pkt.Matrix, endSplit, pkt.Time())
		return e.closeChunk()
	}

	if err := e.persist(); err != nil {
		return err
	}
	e.metrics.RecordChunkWritten("partial")

	if e.chunk.Full() {
		return e.closeChunk()
	}
	return nil
}

// appendColumns copies pkt.Matrix[:, start:end) into the chunk buffer
// at the current cursor and advances it.
func (e *Engine) appendColumns(pkt *model.CanonicalPacket, start, end int) {
	if end <= start {
		return
	}
	space := e.chunk.Space()
	cursor := e.chunk.Cursor
	for row := 0; row < space; row++ {
		for col := start; col < end; col++ {
			e.chunk.Buffer.Set(row, cursor+(col-start), pkt.Matrix.At(row, col))
		}
	}
	e.chunk.Cursor += end - start
}

// openChunk opens a new chunk for pkt. If carry is pending, it is
// written at cursor 0 and the chunk's fractional second is corrected
// from the incoming packet to counteract accumulated drift.
func (e *Engine) openChunk(pkt *model.CanonicalPacket) {
	var chunkTime float64
	hasCarry := !e.carry.Empty()

	if hasCarry {
		chunkTime = e.previousChunkTime + float64(e.previousCursor)/e.cfg.SPS
		frac := pkt.Timestamp - math.Floor(pkt.Timestamp)
		chunkTime = math.Floor(chunkTime) + frac
	} else {
		chunkTime = pkt.Timestamp
	}

	width := e.width()
	space := pkt.Space()
	buffer := mat.NewDense(space, width, nil)
	cursor := 0

	if hasCarry {
		k := e.carry.Columns()
		for row := 0; row < space; row++ {
			for col := 0; col < k; col++ {
				buffer.Set(row, col, e.carry.Matrix.At(row, col))
			}
		}
		cursor = k
	}

	e.chunk = &model.Chunk{
		OriginTime: chunkTime,
		Buffer:     buffer,
		Cursor:     cursor,
		Attrs:      map[string]any{},
		DayEnd:     nextMidnightUTC(chunkTime),
	}
	e.carry = nil
}

// persist writes the chunk's live columns to the sink and updates the
// checkpoint, without clearing the in-progress chunk from memory. This
// keeps the on-disk chunk file and checkpoint consistent with the
// engine's in-memory state between flushes, so a crash mid-chunk still
// leaves a restorable partial chunk on disk (Sink.Write is specified as
// idempotent per origin time, so repeated mid-chunk writes are cheap to
// overwrite at the final flush).
func (e *Engine) persist() error {
	truncated := truncateColumns(e.chunk.Buffer, e.chunk.Cursor)
	if err := e.sink.Write(e.chunk.OriginTime, truncated, e.chunk.Attrs); err != nil {
		return daserr.New(err).Component("assembly").Category(daserr.CategorySinkIO).Build()
	}
	if err := e.checkpoints.PutLast(e.chunk.OriginTime, e.chunk.Cursor); err != nil {
		return daserr.New(err).
			Component("assembly").
			Category(daserr.CategoryCheckpointIO).
			Priority(daserr.PriorityCritical).
			Build()
	}
	return nil
}

// closeChunk persists the final state of the in-progress chunk, records
// or clears the pending carry, advances the previous-chunk bookkeeping
// used by the next openChunk's drift correction, and clears the chunk
// from memory. A chunk with no appended columns is dropped silently —
// it carries no data and was never written to the sink.
func (e *Engine) closeChunk() error {
	if e.chunk == nil {
		return nil
	}
	if e.chunk.Cursor == 0 {
		e.chunk = nil
		return nil
	}

	if err := e.persist(); err != nil {
		return err
	}
	e.metrics.RecordChunkWritten("closed")

	if !e.carry.Empty() {
		if err := e.checkpoints.PutCarry(e.carry.Matrix); err != nil {
			return daserr.New(err).Component("assembly").Category(daserr.CategoryCheckpointIO).Build()
		}
	} else if err := e.checkpoints.ClearCarry(); err != nil {
		return daserr.New(err).Component("assembly").Category(daserr.CategoryCheckpointIO).Build()
	}

	e.previousChunkTime = e.chunk.OriginTime
	e.previousCursor = e.chunk.Cursor
	e.chunk = nil
	return nil
}

// sliceCarry copies columns [start:end) of m into a new Carry matrix.
func sliceCarry(m *mat.Dense, start, end int) *model.Carry {
	if end <= start {
		space, _ := m.Dims()
		return &model.Carry{Matrix: mat.NewDense(space, 0, nil)}
	}
	space, _ := m.Dims()
	out := mat.NewDense(space, end-start, nil)
	for row := 0; row < space; row++ {
		for col := start; col < end; col++ {
			out.Set(row, col-start, m.At(row, col))
		}
	}
	return &model.Carry{Matrix: out}
}

// truncateColumns copies the first n columns of m into a new matrix,
// the view handed to the sink and never the live chunk buffer.
func truncateColumns(m *mat.Dense, n int) *mat.Dense {
	space, _ := m.Dims()
	out := mat.NewDense(space, n, nil)
	for row := 0; row < space; row++ {
		for col := 0; col < n; col++ {
			out.Set(row, col, m.At(row, col))
		}
	}
	return out
}

// nextMidnightUTC returns the UTC epoch seconds of the first midnight
// strictly after the given epoch.
func nextMidnightUTC(epoch float64) float64 {
	t := time.Unix(int64(math.Floor(epoch)), 0).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return float64(midnight.Unix())
}
