// Package sink persists closed (or in-progress, for restore) chunks to
// the output tree as HDF5 files: dataset data_down holding the [space,
// time] matrix, plus a JSON-encoded attrs attribute.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/daslog"
)

const datasetName = "data_down"
const attrsAttrName = "attrs_json"

// HDF5Sink writes chunks under root/<YYYY>/<YYYYMMDD>/<chunk_time>.h5.
// It satisfies assembly.Sink.
type HDF5Sink struct {
	root string
	log  daslog.Logger
}

func New(root string, log daslog.Logger) *HDF5Sink {
	if log == nil {
		log = daslog.NewTestLogger()
	}
	return &HDF5Sink{root: root, log: log.Module("sink")}
}

// Write creates (or overwrites) the chunk file for originTime, writing
// buffer verbatim as data_down and attrs as a JSON string attribute,
// then fsyncs the file before returning.
func (s *HDF5Sink) Write(originTime float64, buffer *mat.Dense, attrs map[string]any) error {
	path := s.pathFor(originTime)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sinkIOErr(path, err)
	}

	// write-temp-then-rename keeps a reader's Open() from ever observing
	// a half-written file, matching the checkpoint store's atomicity.
	tmp := path + ".tmp"
	if err := writeHDF5(tmp, buffer, attrs); err != nil {
		os.Remove(tmp)
		return sinkIOErr(path, err)
	}
	tf, err := os.Open(tmp)
	if err != nil {
		os.Remove(tmp)
		return sinkIOErr(path, err)
	}
	syncErr := tf.Sync()
	tf.Close()
	if syncErr != nil {
		os.Remove(tmp)
		return sinkIOErr(path, syncErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		return sinkIOErr(path, err)
	}

	s.log.Debug("chunk flushed",
		daslog.Float64("origin_time", originTime),
		daslog.String("path", path))
	return nil
}

// Open reads back the chunk at originTime, for restore-mode resume.
func (s *HDF5Sink) Open(originTime float64) (*mat.Dense, map[string]any, error) {
	path := s.pathFor(originTime)
	m, attrs, err := readHDF5(path)
	if err != nil {
		return nil, nil, daserr.New(err).
			Component("sink").
			Category(daserr.CategoryRestoreMissing).
			FileContext(path, 0).
			Build()
	}
	return m, attrs, nil
}

func (s *HDF5Sink) pathFor(originTime float64) string {
	t := time.Unix(int64(originTime), 0).UTC()
	return filepath.Join(s.root, t.Format("2006"), t.Format("20060102"), formatChunkTime(originTime)+".h5")
}

// formatChunkTime renders the chunk's origin time as the on-disk name,
// preserving a fractional component only when one is present.
func formatChunkTime(t float64) string {
	s := strconv.FormatFloat(t, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

func writeHDF5(path string, buffer *mat.Dense, attrs map[string]any) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()

	space, cols := buffer.Dims()
	dims := []uint{uint(space), uint(cols)}
	dspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer dspace.Close()

	dset, err := f.CreateDataset(datasetName, hdf5.T_NATIVE_FLOAT, dspace)
	if err != nil {
		return err
	}
	defer dset.Close()

	raw := make([]float32, space*cols)
	for row := 0; row < space; row++ {
		for col := 0; col < cols; col++ {
			raw[row*cols+col] = float32(buffer.At(row, col))
		}
	}
	if err := dset.Write(&raw); err != nil {
		return err
	}

	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	if err := writeStringAttr(dset, attrsAttrName, string(encoded)); err != nil {
		return err
	}

	return f.Flush(hdf5.F_SCOPE_GLOBAL)
}

func writeStringAttr(dset *hdf5.Dataset, name, value string) error {
	strType, err := hdf5.NewDatatypeFromValue(value)
	if err != nil {
		return err
	}
	defer strType.Close()

	aspace, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer aspace.Close()

	attr, err := dset.CreateAttribute(name, strType, aspace)
	if err != nil {
		return err
	}
	defer attr.Close()

	return attr.Write(&value, strType)
}

func readHDF5(path string) (*mat.Dense, map[string]any, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	dset, err := f.OpenDataset(datasetName)
	if err != nil {
		return nil, nil, err
	}
	defer dset.Close()

	ds := dset.Space()
	dims, _, err := ds.SimpleExtentDims()
	if err != nil || len(dims) != 2 {
		return nil, nil, fmt.Errorf("sink: %s: unexpected dataset rank", path)
	}
	space, cols := int(dims[0]), int(dims[1])

	raw := make([]float32, space*cols)
	if err := dset.Read(&raw); err != nil {
		return nil, nil, err
	}

	data := make([]float64, space*cols)
	for i, v := range raw {
		data[i] = float64(v)
	}
	m := mat.NewDense(space, cols, data)

	attrs := map[string]any{}
	if attr, err := dset.OpenAttribute(attrsAttrName); err == nil {
		defer attr.Close()
		var encoded string
		if err := attr.Read(&encoded, attr.GetType()); err == nil {
			json.Unmarshal([]byte(encoded), &attrs)
		}
	}

	return m, attrs, nil
}

func sinkIOErr(path string, cause error) error {
	return daserr.Newf("sink: writing %s: %w", path, cause).
		Component("sink").
		Category(daserr.CategorySinkIO).
		FileContext(path, 0).
		Build()
}
