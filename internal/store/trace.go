package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/michaellans/Badger/internal/table"
)

// TraceEntry is one evaluated row of a run.
// Each entry is serialized as a JSON line in <run>.jsonl.
type TraceEntry struct {
	// Evaluation is the index of the row in the run's data
	Evaluation int `json:"evaluation"`

	// Values holds every column of the evaluated row
	Values table.Record `json:"values"`

	// Timestamp records when the row was evaluated
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter writes trace entries to a JSONL file.
// It uses buffered I/O for performance and is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	next   int
}

func tracePath(baseDir, runName string) string {
	return filepath.Join(baseDir, "traces", runName+".jsonl")
}

// NewTraceWriter creates a trace writer for the given run.
// The trace file is created at <baseDir>/traces/<runName>.jsonl.
// If append is true, new entries are appended to existing file.
func NewTraceWriter(baseDir, runName string, append bool) (*TraceWriter, error) {
	path := tracePath(baseDir, runName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends a trace entry to the file.
// The entry is buffered and will be written on Flush() or Close().
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.write(entry)
}

// WriteTable appends every row of an evaluated table, numbering rows after
// the last written entry. The rows are numbered and written under one lock,
// so concurrent calls never share a number.
func (tw *TraceWriter) WriteTable(evaluated *table.Table) error {
	now := time.Now()

	tw.mu.Lock()
	defer tw.mu.Unlock()
	for _, rec := range evaluated.Records() {
		if err := tw.write(TraceEntry{Evaluation: tw.next, Values: rec, Timestamp: now}); err != nil {
			return err
		}
	}
	return nil
}

// write must be called with tw.mu held.
func (tw *TraceWriter) write(entry TraceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if entry.Evaluation >= tw.next {
		tw.next = entry.Evaluation + 1
	}
	return nil
}

// StartAt sets the number of the next entry written by WriteTable.
func (tw *TraceWriter) StartAt(n int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.next = n
}

// Flush writes any buffered data to the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads trace entries from a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader creates a trace reader for the given run.
func NewTraceReader(baseDir, runName string) (*TraceReader, error) {
	file, err := os.Open(tracePath(baseDir, runName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Kind: "trace", ID: runName}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // 64KB initial, 1MB max

	return &TraceReader{
		file:    file,
		scanner: scanner,
	}, nil
}

// Read reads the next trace entry from the file.
// Returns io.EOF when no more entries are available.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all trace entries from the file.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// DeleteTrace removes the trace file of a run.
// Returns nil if the file doesn't exist.
func DeleteTrace(baseDir, runName string) error {
	err := os.Remove(tracePath(baseDir, runName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}
