package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry records one finished pipeline stage. Entries are stored one JSON
// object per line in trace.jsonl.
type TraceEntry struct {
	Stage        string    `json:"stage"`
	Index        int       `json:"index"`
	Total        int       `json:"total"`
	DurationMs   float64   `json:"durationMs"`
	OpaquePixels int       `json:"opaquePixels"`
	Timestamp    time.Time `json:"timestamp"`
}

// TraceWriter appends entries to a job's trace with buffered I/O.
// It is safe for concurrent use.
type TraceWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	path string
}

// NewTraceWriter creates (or truncates) <baseDir>/jobs/<jobID>/trace.jsonl.
func NewTraceWriter(baseDir, jobID string) (*TraceWriter, error) {
	if err := validateID(jobID); err != nil {
		return nil, fmt.Errorf("invalid jobID: %w", err)
	}

	dir := filepath.Join(baseDir, "jobs", jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	path := filepath.Join(dir, TraceFile)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	return &TraceWriter{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf), // Encode terminates each value with '\n'
		path: path,
	}, nil
}

// Write buffers one entry. It reaches disk on Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	return nil
}

// Flush pushes buffered entries to disk.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	flushErr := tw.buf.Flush()
	closeErr := tw.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush on close: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close trace file: %w", closeErr)
	}
	return nil
}

// Path returns the trace file location.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// RemoveTrace deletes the trace of a job and drops the job directory when
// nothing else is left in it. A missing trace is not an error.
func RemoveTrace(baseDir, jobID string) error {
	if err := validateID(jobID); err != nil {
		return fmt.Errorf("invalid jobID: %w", err)
	}

	dir := filepath.Join(baseDir, "jobs", jobID)
	if err := os.Remove(filepath.Join(dir, TraceFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove trace: %w", err)
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove job directory: %w", err)
		}
	}
	return nil
}

// ReadTrace loads every entry of a job's trace.
func ReadTrace(baseDir, jobID string) ([]TraceEntry, error) {
	if err := validateID(jobID); err != nil {
		return nil, fmt.Errorf("invalid jobID: %w", err)
	}

	file, err := os.Open(filepath.Join(baseDir, "jobs", jobID, TraceFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{Kind: "trace", ID: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	return decodeTrace(file)
}

func decodeTrace(r io.Reader) ([]TraceEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	entries := []TraceEntry{}
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace: %w", err)
	}
	return entries, nil
}
