package packetio

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"

	"golang.org/x/exp/mmap"
	"gonum.org/v1/gonum/mat"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/model"
)

const (
	segyTextHeaderLen   = 3600
	segyTraceCountOff   = 3714
	segyFirstTraceOff   = 3600
	segyTraceHeaderLen  = 240
)

// segyInfo mirrors the sidecar "<session>-info.json" written by the
// Prisma acquisition system.
type segyInfo struct {
	PRR                float64 `json:"prr"`
	DX                 float64 `json:"dx"`
	NumSamplesPerTrace int     `json:"numSamplesPerTrace"`
	NumTraces          int     `json:"numTraces"`
}

// SegYReader memory-maps a Prisma SEG-Y trace file and reads its fixed
// binary layout (spec §4.2, §6): a 3600-byte textual header, a trace
// count at bytes [3714, 3716) (little-endian int16), followed by trace
// records of a 240-byte header plus trace_len float32 samples each.
type SegYReader struct{}

func (r *SegYReader) Read(d *Descriptor) (*model.Packet, error) {
	info, err := loadSegYInfo(d.SidecarSOI)
	if err != nil {
		return nil, corruptInput(d.SidecarSOI, err)
	}

	ra, err := mmap.Open(d.Path)
	if err != nil {
		return nil, corruptInput(d.Path, err)
	}
	defer ra.Close()

	if ra.Len() < segyTextHeaderLen+2 {
		return nil, corruptInput(d.Path, os.ErrInvalid)
	}

	var countBuf [2]byte
	if _, err := ra.ReadAt(countBuf[:], segyTraceCountOff); err != nil {
		return nil, corruptInput(d.Path, err)
	}
	traceCount := int(binary.LittleEndian.Uint16(countBuf[:]))
	if info.NumTraces > 0 {
		traceCount = info.NumTraces
	}

	traceLen := info.NumSamplesPerTrace
	if traceLen <= 0 {
		return nil, corruptInput(d.Path, os.ErrInvalid)
	}

	matrixData := make([]float64, traceCount*traceLen)
	sampleBuf := make([]byte, traceLen*4)

	recordLen := segyTraceHeaderLen + traceLen*4
	for tr := 0; tr < traceCount; tr++ {
		off := int64(segyFirstTraceOff + tr*recordLen + segyTraceHeaderLen)
		if _, err := ra.ReadAt(sampleBuf, off); err != nil {
			return nil, corruptInput(d.Path, err)
		}
		for s := 0; s < traceLen; s++ {
			bits := binary.LittleEndian.Uint32(sampleBuf[s*4 : s*4+4])
			matrixData[tr*traceLen+s] = float64(math.Float32frombits(bits))
		}
	}
	matrix := mat.NewDense(traceCount, traceLen, matrixData)

	sampleRate := info.PRR
	if sampleRate == 0 {
		sampleRate = 1000
	}
	pitch := info.DX
	if pitch == 0 {
		pitch = 1
	}

	return &model.Packet{
		SystemKind:      model.SegY,
		Timestamp:       d.Timestamp,
		DurationSeconds: float64(traceLen) / sampleRate,
		SampleRateIn:    sampleRate,
		ChannelPitchIn:  pitch,
		Matrix:          matrix,
		Attrs: map[string]any{
			"prr":                info.PRR,
			"dx":                 info.DX,
			"numSamplesPerTrace": info.NumSamplesPerTrace,
			"numTraces":          info.NumTraces,
		},
	}, nil
}

func loadSegYInfo(path string) (*segyInfo, error) {
	if path == "" {
		return &segyInfo{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &segyInfo{}, nil
		}
		return nil, err
	}
	var info segyInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
