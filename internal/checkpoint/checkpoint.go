// Package checkpoint persists the Assembly Engine's resume state: the
// last flushed (origin_time, cursor) pair and an optional carry matrix,
// both written atomically so a crash mid-write never leaves a reader
// looking at a half-updated file.
package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"github.com/sbinet/npyio"

	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/model"
)

const lastFile = "last"
const carryFile = "carry.npy"

// Store reads and writes last/carry.npy under root. It satisfies
// assembly.CheckpointStore.
type Store struct {
	root string
	log  daslog.Logger
}

func New(root string, log daslog.Logger) *Store {
	if log == nil {
		log = daslog.NewTestLogger()
	}
	return &Store{root: root, log: log.Module("checkpoint")}
}

// Get reads <root>/last, returning (nil, nil) if it does not exist.
func (s *Store) Get() (*model.Checkpoint, error) {
	path := filepath.Join(s.root, lastFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, checkpointIOErr(path, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return nil, daserr.Newf("checkpoint: %s: expected 2 lines, got %d", path, len(lines)).
			Component("checkpoint").
			Category(daserr.CategoryCheckpointIO).
			Build()
	}

	ct, err := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	if err != nil {
		return nil, daserr.Newf("checkpoint: %s: parsing chunk_time: %w", path, err).
			Component("checkpoint").
			Category(daserr.CategoryCheckpointIO).
			Build()
	}
	cur, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, daserr.Newf("checkpoint: %s: parsing cursor: %w", path, err).
			Component("checkpoint").
			Category(daserr.CategoryCheckpointIO).
			Build()
	}

	return &model.Checkpoint{OriginTime: ct, Cursor: cur}, nil
}

// PutLast atomically rewrites <root>/last with "chunk_time\ncursor\n".
func (s *Store) PutLast(originTime float64, cursor int) error {
	path := filepath.Join(s.root, lastFile)
	body := fmt.Sprintf("%s\n%d\n", strconv.FormatFloat(originTime, 'f', -1, 64), cursor)
	return writeAtomic(path, []byte(body))
}

// ClearLast removes <root>/last; absence is not an error.
func (s *Store) ClearLast() error {
	path := filepath.Join(s.root, lastFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return checkpointIOErr(path, err)
	}
	return nil
}

// GetCarry reads <root>/carry.npy, returning (nil, nil) if absent.
func (s *Store) GetCarry() (*mat.Dense, error) {
	path := filepath.Join(s.root, carryFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, checkpointIOErr(path, err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(bufio.NewReader(f), &m); err != nil {
		return nil, daserr.Newf("checkpoint: reading %s: %w", path, err).
			Component("checkpoint").
			Category(daserr.CategoryCheckpointIO).
			Build()
	}
	return &m, nil
}

// PutCarry atomically rewrites <root>/carry.npy via write-temp+rename.
func (s *Store) PutCarry(m *mat.Dense) error {
	path := filepath.Join(s.root, carryFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return checkpointIOErr(path, err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return checkpointIOErr(path, err)
	}
	return nil
}

// ClearCarry removes <root>/carry.npy; absence is not an error.
func (s *Store) ClearCarry() error {
	path := filepath.Join(s.root, carryFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return checkpointIOErr(path, err)
	}
	return nil
}

func writeAtomic(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return checkpointIOErr(path, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return checkpointIOErr(path, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return checkpointIOErr(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return checkpointIOErr(path, err)
	}
	return nil
}

func checkpointIOErr(path string, cause error) error {
	return daserr.Newf("checkpoint: %s: %w", path, cause).
		Component("checkpoint").
		Category(daserr.CategoryCheckpointIO).
		Priority(daserr.PriorityCritical).
		FileContext(path, 0).
		Build()
}
