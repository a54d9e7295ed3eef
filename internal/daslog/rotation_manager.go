package daslog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotationManager performs size-based rotation of a BufferedFileWriter's
// underlying file: when the file on disk exceeds RotationConfig.MaxSize,
// the current file is renamed aside with a timestamp suffix, a fresh
// file is swapped in atomically, and the rotated file is optionally
// gzip-compressed and later cleaned up by age or count.
type RotationManager struct {
	filePath string
	config   RotationConfig
	writer   *BufferedFileWriter

	mu     sync.Mutex
	closed bool
}

// NewRotationManager builds a manager for filePath, rotating through
// writer whenever CheckAndRotate finds the file past config.MaxSize.
func NewRotationManager(filePath string, config RotationConfig, writer *BufferedFileWriter) *RotationManager {
	return &RotationManager{filePath: filePath, config: config, writer: writer}
}

// CheckAndRotate stats the current log file and rotates it if it has
// grown past config.MaxSize. A no-op once Close has been called.
func (rm *RotationManager) CheckAndRotate() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed || !rm.config.IsEnabled() {
		return
	}

	info, err := os.Stat(rm.filePath)
	if err != nil {
		return
	}
	if info.Size() < rm.config.MaxSize {
		return
	}

	rm.rotateLocked()
}

func (rm *RotationManager) rotateLocked() {
	timestamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	dest := rm.rotatedFilePath(timestamp)

	if err := os.Rename(rm.filePath, dest); err != nil {
		return
	}

	newFile, err := os.OpenFile(rm.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return
	}

	oldFile, err := rm.writer.SwapFile(newFile)
	if err != nil {
		_ = newFile.Close()
		return
	}
	if oldFile != nil {
		_ = oldFile.Close()
	}

	if rm.config.Compress {
		go compressRotatedFile(dest)
	}
	go rm.cleanup()
}

// Close marks the manager closed; subsequent CheckAndRotate calls are
// no-ops. It does not touch the writer, which closes independently.
func (rm *RotationManager) Close() {
	rm.mu.Lock()
	rm.closed = true
	rm.mu.Unlock()
}

// rotatedFilePath returns the destination path for a rotation at the
// given UTC timestamp (format "2006-01-02T15-04-05Z"), e.g.
// "/logs/application.log" -> "/logs/application-2025-01-15T14-30-05Z.log".
func (rm *RotationManager) rotatedFilePath(timestamp string) string {
	ext := filepath.Ext(rm.filePath)
	base := strings.TrimSuffix(rm.filePath, ext)
	return base + "-" + timestamp + ext
}

// rotatedFilePattern returns the glob pattern matching every rotated
// file produced by rotatedFilePath, e.g. "/logs/application-*Z.log".
func (rm *RotationManager) rotatedFilePattern() string {
	ext := filepath.Ext(rm.filePath)
	base := strings.TrimSuffix(rm.filePath, ext)
	return base + "-*Z" + ext
}

// cleanup removes rotated files (compressed or not) older than MaxAge,
// then trims the remainder down to MaxRotatedFiles, oldest first.
func (rm *RotationManager) cleanup() {
	pattern := rm.rotatedFilePattern()
	matches, _ := filepath.Glob(pattern)
	gzMatches, _ := filepath.Glob(pattern + ".gz")
	matches = append(matches, gzMatches...)

	type entry struct {
		path    string
		modTime time.Time
	}
	var entries []entry
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime()})
	}

	if rm.config.MaxAge > 0 {
		cutoff := time.Now().Add(-time.Duration(rm.config.MaxAge) * 24 * time.Hour)
		kept := entries[:0]
		for _, e := range entries {
			if e.modTime.Before(cutoff) {
				_ = os.Remove(e.path)
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	if rm.config.MaxRotatedFiles > 0 && len(entries) > rm.config.MaxRotatedFiles {
		// oldest first
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				if entries[j].modTime.Before(entries[i].modTime) {
					entries[i], entries[j] = entries[j], entries[i]
				}
			}
		}
		excess := len(entries) - rm.config.MaxRotatedFiles
		for _, e := range entries[:excess] {
			_ = os.Remove(e.path)
		}
	}
}

func compressRotatedFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, LogFilePermissions)
	if err != nil {
		return
	}

	gz := gzip.NewWriter(dst)
	_, copyErr := io.Copy(gz, src)
	closeErr := gz.Close()
	_ = dst.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path + ".gz")
		return
	}
	_ = os.Remove(path)
}
