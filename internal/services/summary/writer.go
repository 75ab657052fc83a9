// Package summary persists what the daemon has armed and what it decided.
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/spf13/afero"
)

const (
	// SummaryFileName is the file external viewers read the armed wake from.
	SummaryFileName = "next-wake.json"
	// FriendlyLayout renders the wake instant for humans.
	FriendlyLayout = "Monday, January 2, 2006 15:04:05 MST"
)

// Owner is the uid/gid persisted files are handed to.
type Owner struct {
	UID int
	GID int
}

// Writer defines the interface for writing the summary record.
type Writer interface {
	Write(event models.PlannedEvent) (*models.SummaryRecord, error)
}

// FileWriter writes the summary record to <dir>/next-wake.json.
type FileWriter struct {
	fs    afero.Fs
	dir   string
	owner *Owner
}

// NewWriter creates a writer rooted at dir. owner may be nil.
func NewWriter(fs afero.Fs, dir string, owner *Owner) *FileWriter {
	return &FileWriter{fs: fs, dir: dir, owner: owner}
}

// Path returns the summary file path.
func (w *FileWriter) Path() string {
	return filepath.Join(w.dir, SummaryFileName)
}

// NewRecord builds the summary record for an event's wake instant.
func NewRecord(event models.PlannedEvent) models.SummaryRecord {
	return models.SummaryRecord{
		Timestamp: event.Wake.Unix(),
		LocalTime: event.Wake.Format(time.RFC3339),
		Friendly:  event.Wake.Format(FriendlyLayout),
		Mode:      event.Action.Mode(),
		Action:    event.Action.Label(),
	}
}

// Write replaces the summary file with the record for event.
func (w *FileWriter) Write(event models.PlannedEvent) (*models.SummaryRecord, error) {
	if w.dir == "" {
		return nil, fmt.Errorf("summary directory not configured")
	}
	record := NewRecord(event)

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	data = append(data, '\n')

	if err := ensureDir(w.fs, w.dir, w.owner); err != nil {
		return nil, err
	}

	path := w.Path()
	tmp := path + ".tmp"
	if err := afero.WriteFile(w.fs, tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	if err := w.fs.Rename(tmp, path); err != nil {
		_ = w.fs.Remove(tmp)
		return nil, fmt.Errorf("failed to replace summary: %w", err)
	}
	if err := chown(w.fs, path, w.owner); err != nil {
		return &record, err
	}
	return &record, nil
}

// Read returns the record currently on disk.
func (w *FileWriter) Read() (*models.SummaryRecord, error) {
	data, err := afero.ReadFile(w.fs, w.Path())
	if err != nil {
		return nil, err
	}
	var record models.SummaryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &record, nil
}

func ensureDir(fs afero.Fs, dir string, owner *Owner) error {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if exists {
		return nil
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return chown(fs, dir, owner)
}

func chown(fs afero.Fs, path string, owner *Owner) error {
	if owner == nil {
		return nil
	}
	if err := fs.Chown(path, owner.UID, owner.GID); err != nil && !os.IsPermission(err) {
		return fmt.Errorf("failed to chown %s: %w", path, err)
	}
	return nil
}
