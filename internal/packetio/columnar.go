package packetio

import (
	"encoding/json"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/model"
)

// columnarAttrs mirrors the sibling JSON (per-packet or directory-level
// attrs.json) written by the Mekorot acquisition system.
type columnarAttrs struct {
	Index          []float64 `json:"index"`
	Spacing        float64   `json:"spacing"`
	DownFactorTime int       `json:"down_factor_time"`
	DownFactorSpc  int       `json:"down_factor_space"`
	Origin         []float64 `json:"origin"` // Origin[1] is the millisecond offset
	UnitSize       float64   `json:"unit_size"`
	SampleRate     float64   `json:"sample_rate"`
}

// ColumnarReader reads the Mekorot per-packet downsampled HDF5 layout:
// dataset "data_down" transposed from [time, space] on disk to
// [space, time] in memory, paired with a sidecar JSON.
type ColumnarReader struct{}

func (r *ColumnarReader) Read(d *Descriptor) (*model.Packet, error) {
	f, err := hdf5.OpenFile(d.Path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, corruptInput(d.Path, err)
	}
	defer f.Close()

	dset, err := f.OpenDataset("data_down")
	if err != nil {
		return nil, corruptInput(d.Path, err)
	}
	defer dset.Close()

	space := dset.Space()
	dims, _, err := space.SimpleExtentDims()
	if err != nil || len(dims) != 2 {
		return nil, corruptInput(d.Path, err)
	}
	timeSamples, spaceSamples := int(dims[0]), int(dims[1])

	raw := make([]float32, timeSamples*spaceSamples)
	if err := dset.Read(&raw); err != nil {
		return nil, corruptInput(d.Path, err)
	}

	// on-disk layout is [time, space]; the engine works in [space, time]
	transposed := make([]float64, spaceSamples*timeSamples)
	for t := 0; t < timeSamples; t++ {
		for c := 0; c < spaceSamples; c++ {
			transposed[c*timeSamples+t] = float64(raw[t*spaceSamples+c])
		}
	}
	matrix := mat.NewDense(spaceSamples, timeSamples, transposed)

	attrs, err := loadColumnarAttrs(d.SidecarSOI)
	if err != nil {
		return nil, corruptInput(d.SidecarSOI, err)
	}

	sampleRate := attrs.SampleRate
	if sampleRate == 0 {
		sampleRate = 100
	}
	spacing := attrs.Spacing
	if spacing == 0 {
		spacing = 1
	}

	ts := d.Timestamp
	if len(attrs.Origin) > 1 {
		ts += attrs.Origin[1] / 1000.0
	}

	return &model.Packet{
		SystemKind:      model.Columnar,
		Timestamp:       ts,
		DurationSeconds: float64(timeSamples) / sampleRate,
		SampleRateIn:    sampleRate,
		ChannelPitchIn:  spacing,
		Matrix:          matrix,
		Attrs: map[string]any{
			"index":            attrs.Index,
			"spacing":          attrs.Spacing,
			"down_factor_time": attrs.DownFactorTime,
			"down_factor_space": attrs.DownFactorSpc,
			"unit_size":        attrs.UnitSize,
		},
	}, nil
}

func loadColumnarAttrs(path string) (*columnarAttrs, error) {
	if path == "" {
		return &columnarAttrs{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &columnarAttrs{}, nil
		}
		return nil, err
	}
	var attrs columnarAttrs
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, err
	}
	return &attrs, nil
}

func corruptInput(path string, cause error) error {
	return daserr.Newf("packetio: corrupt input %s: %w", path, cause).
		Component("packetio").
		Category(daserr.CategoryCorruptInput).
		FileContext(path, 0).
		Build()
}
