// Package syncstate keeps the sync cursor file: a small JSON document
// recording, per source, the last key synchronized and when.
package syncstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	KeyDraw      = "draw"
	KeyDirectory = "directory"
	KeyCommunity = "community"
)

// Entry is the cursor of one source.
type Entry struct {
	Key  string `json:"key"`
	Date string `json:"date"`
}

// File is a cursor file on disk. Reads never fail the caller: a missing or
// unreadable file is treated as empty.
type File struct {
	Path string
	now  func() time.Time
}

func New(path string) *File {
	return &File{Path: path, now: time.Now}
}

// Load returns every entry in the file. A corrupt file yields an empty map
// and the decode error, which callers may log and ignore.
func (f *File) Load() (map[string]Entry, error) {
	out := map[string]Entry{}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("read cursor file: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]Entry{}, fmt.Errorf("decode cursor file: %w", err)
	}
	return out, nil
}

// Mark records key as the latest synchronized value of source, stamped
// with today's date, keeping every other entry.
func (f *File) Mark(source, key string) error {
	entries, _ := f.Load()
	entries[source] = Entry{Key: key, Date: f.now().Format(time.DateOnly)}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode cursor file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".dbsync-*")
	if err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	return nil
}
