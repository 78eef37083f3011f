// Package journal persists a record of each finished live session as
// append-only JSON lines in a local file. One line per session keeps the
// format greppable and safe to tail while the client runs.
//
// For a multi-user deployment this would move to a real database; a single
// companion client does not need one.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is a single session entry written to the file store.
type Record struct {
	Timestamp  time.Time     `json:"timestamp"`
	SessionID  string        `json:"session_id"`
	Duration   time.Duration `json:"duration_ns"`
	Transcript string        `json:"transcript,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// FileStore persists session records as JSON lines in a local file.
// Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on first append if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append writes one record to the end of the file.
func (fs *FileStore) Append(rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// All reads every record in the file, oldest first. A missing file yields an
// empty slice. Unparseable lines are skipped rather than failing the read, so
// a truncated final line cannot hide the rest of the history.
func (fs *FileStore) All() ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	return records, nil
}
