package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTraceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-trace")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	stages := []string{"alphaBoost", "erode", "feather"}
	for i, s := range stages {
		err := tw.Write(TraceEntry{
			Stage:        s,
			Index:        i,
			Total:        len(stages),
			DurationMs:   float64(i) + 0.5,
			OpaquePixels: 100 - i*10,
			Timestamp:    time.Now(),
		})
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !strings.HasSuffix(tw.Path(), TraceFile) {
		t.Errorf("Path = %q", tw.Path())
	}

	entries, err := ReadTrace(dir, "job-trace")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Stage != stages[i] || e.Index != i || e.Total != 3 {
			t.Errorf("Entry %d = %+v", i, e)
		}
	}
	if entries[2].OpaquePixels != 80 {
		t.Errorf("OpaquePixels = %d, want 80", entries[2].OpaquePixels)
	}
}

func TestTraceWriter_Concurrent(t *testing.T) {
	dir := t.TempDir()
	tw, err := NewTraceWriter(dir, "job-concurrent")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				tw.Write(TraceEntry{Stage: "erode", Index: g*25 + i})
			}
		}(g)
	}
	wg.Wait()
	tw.Close()

	entries, err := ReadTrace(dir, "job-concurrent")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 200 {
		t.Errorf("Expected 200 entries, got %d", len(entries))
	}
}

func TestReadTrace_Missing(t *testing.T) {
	_, err := ReadTrace(t.TempDir(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecodeTrace_BadLine(t *testing.T) {
	input := `{"stage":"erode","index":0}` + "\n\n" + `{broken` + "\n"
	_, err := decodeTrace(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("Expected error on line 3, got %v", err)
	}
}

func TestNewTraceWriter_InvalidID(t *testing.T) {
	if _, err := NewTraceWriter(t.TempDir(), "a/b"); err == nil {
		t.Fatal("Expected error for jobID with separator")
	}
}

func TestRemoveTrace(t *testing.T) {
	base := t.TempDir()
	tw, err := NewTraceWriter(base, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Write(TraceEntry{Stage: "erode", Total: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := RemoveTrace(base, "job-1"); err != nil {
		t.Fatalf("RemoveTrace failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "jobs", "job-1")); !os.IsNotExist(err) {
		t.Errorf("Empty job directory should be removed, stat: %v", err)
	}

	// A directory holding other files is kept.
	dir := filepath.Join(base, "jobs", "job-2")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveTrace(base, "job-2"); err != nil {
		t.Errorf("Missing trace should not be an error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Non-empty job directory should survive: %v", err)
	}

	if err := RemoveTrace(base, "../escape"); err == nil {
		t.Error("Invalid job ID should be rejected")
	}
}
