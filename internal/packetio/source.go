// Package packetio is the Packet Source (C1) and Packet Reader (C2)
// boundary: it enumerates input directories, yields the next packet
// descriptor in timestamp order, and dispatches to the Columnar or
// SEG-Y reader to turn a descriptor into a model.Packet.
package packetio

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/model"
)

// Descriptor identifies one packet file on disk, without having opened
// it yet.
type Descriptor struct {
	SystemKind model.SystemKind
	Path       string  // path to the data file (.h5 or .segy)
	SidecarSOI string  // sibling metadata file, if any (.json)
	Timestamp  float64 // absolute UTC seconds, first sample
}

// Source enumerates an input root directory and yields packet
// descriptors in non-decreasing timestamp order. A Source instance is
// stateful only in which directories it has already swept; it holds no
// cursor of its own — callers pass minTime on every call.
type Source struct {
	root   string
	kind   model.SystemKind
	log    daslog.Logger
	loc    *time.Location
	sweep  []string // directories marked consumed, pending Sweep()
}

var segyNamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{6})\.segy$`)
var columnarNamePattern = regexp.MustCompile(`^das_SR_(\d+)\.h5$`)

// NewSource builds a Source rooted at path for the given acquisition
// system kind. For SEG-Y filenames (local Asia/Jerusalem time) it loads
// the IANA zone via the embedded tzdata.
func NewSource(root string, kind model.SystemKind, log daslog.Logger) (*Source, error) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		return nil, err
	}
	return &Source{root: root, kind: kind, log: log, loc: loc}, nil
}

// NextDescriptor returns the earliest packet descriptor whose timestamp
// is >= minTime, or (nil, nil) when no further packet exists. Missing or
// unreadable directories are logged at warn and treated as empty, not
// fatal (spec §4.1).
func (s *Source) NextDescriptor(minTime float64) (*Descriptor, error) {
	candidates, err := s.enumerate()
	if err != nil {
		s.log.Warn("enumerating input root failed", daslog.String("root", s.root), daslog.Error(err))
		return nil, nil
	}

	var best *Descriptor
	for i := range candidates {
		d := &candidates[i]
		if d.Timestamp < minTime {
			continue
		}
		if best == nil || d.Timestamp < best.Timestamp {
			best = d
		}
	}
	return best, nil
}

// MarkConsumed schedules a directory for later cleanup by Sweep. It does
// not delete anything itself — deletion is a caller-invoked hook kept
// deliberately separate from checkpoint writing so a crash between
// delete and checkpoint-write can never lose an unprocessed file.
func (s *Source) MarkConsumed(dir string) {
	s.sweep = append(s.sweep, dir)
}

// Sweep drains and returns the directories marked consumed since the
// last call. It never deletes anything itself: filesystem deletion is
// an external collaborator (spec §2), and the caller (cmd/dasconcat)
// only logs what Sweep reports as a candidate for that policy.
func (s *Source) Sweep() []string {
	done := s.sweep
	s.sweep = nil
	return done
}

func (s *Source) enumerate() ([]Descriptor, error) {
	todayUTC := time.Now().UTC().Format("20060102")

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var out []Descriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == todayUTC {
			continue
		}
		dirPath := filepath.Join(s.root, e.Name())
		switch s.kind {
		case model.Columnar:
			descs, err := s.enumerateColumnarDir(dirPath)
			if err != nil {
				s.log.Warn("skipping unreadable directory", daslog.String("dir", dirPath), daslog.Error(err))
				continue
			}
			out = append(out, descs...)
		case model.SegY:
			descs, err := s.enumerateSegYDir(dirPath)
			if err != nil {
				s.log.Warn("skipping unreadable directory", daslog.String("dir", dirPath), daslog.Error(err))
				continue
			}
			out = append(out, descs...)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *Source) enumerateColumnarDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := columnarNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		epoch, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sidecar := filepath.Join(dir, m[1]+".json")
		if _, err := os.Stat(sidecar); err != nil {
			// fall back to a directory-level attrs.json (legacy mode)
			sidecar = filepath.Join(dir, "attrs.json")
		}
		out = append(out, Descriptor{
			SystemKind: model.Columnar,
			Path:       path,
			SidecarSOI: sidecar,
			Timestamp:  float64(epoch),
		})
	}
	return out, nil
}

func (s *Source) enumerateSegYDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := segyNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := parseSegYLocalTimestamp(m[1], s.loc)
		if err != nil {
			continue
		}
		session := strings.TrimSuffix(e.Name(), ".segy")
		out = append(out, Descriptor{
			SystemKind: model.SegY,
			Path:       filepath.Join(dir, e.Name()),
			SidecarSOI: filepath.Join(dir, session+"-info.json"),
			Timestamp:  ts,
		})
	}
	return out, nil
}

// parseSegYLocalTimestamp parses "YYYY-MM-DDTHH-MM-SS-ffffff" (ffffff is
// microseconds) as local Asia/Jerusalem time and returns the equivalent
// absolute UTC seconds. The microseconds are split off first because a Go
// layout only reads fractional seconds after a '.' or ','.
func parseSegYLocalTimestamp(raw string, loc *time.Location) (float64, error) {
	const layout = "2006-01-02T15-04-05"
	if len(raw) < 7 || raw[len(raw)-7] != '-' {
		return 0, strconv.ErrSyntax
	}
	micros, err := strconv.Atoi(raw[len(raw)-6:])
	if err != nil {
		return 0, err
	}
	t, err := time.ParseInLocation(layout, raw[:len(raw)-7], loc)
	if err != nil {
		return 0, err
	}
	t = t.Add(time.Duration(micros) * time.Microsecond)
	return float64(t.UTC().UnixNano()) / 1e9, nil
}
