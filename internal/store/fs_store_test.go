package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightlifeflyers/flyerstudio/internal/brandkit"
	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
)

// setupTestStore creates an FSStore in a temporary directory.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func createTestResult(jobID string) *Result {
	params := cutout.DefaultParams()
	params.ShrinkPx = 2
	params.FeatherPx = 4
	return NewResult(jobID, JobConfig{Source: "assets/portrait.png", Params: params},
		64, 48, 1200, []string{"erode", "feather"}, 35*time.Millisecond)
}

func TestNewFSStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != dir {
		t.Errorf("BaseDir = %q, want %q", store.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Base directory was not created: %v", err)
	}
}

func TestSaveAndLoadResult(t *testing.T) {
	store, tempDir := setupTestStore(t)
	result := createTestResult("job-1")

	if err := store.SaveResult(result); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	path := filepath.Join(tempDir, "jobs", "job-1", ResultFile)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Result file was not created at %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save")
	}

	loaded, err := store.LoadResult("job-1")
	if err != nil {
		t.Fatalf("LoadResult failed: %v", err)
	}
	if loaded.Config.Params != result.Config.Params {
		t.Errorf("Params mismatch: got %+v, want %+v", loaded.Config.Params, result.Config.Params)
	}
	if loaded.OpaquePixels != 1200 || loaded.Width != 64 || loaded.Height != 48 {
		t.Errorf("Unexpected dimensions/opaque count: %+v", loaded)
	}
	if loaded.Duration != 35*time.Millisecond {
		t.Errorf("Duration = %v, want 35ms", loaded.Duration)
	}
	if len(loaded.Stages) != 2 || loaded.Stages[1] != "feather" {
		t.Errorf("Stages = %v", loaded.Stages)
	}
}

func TestSaveResult_Invalid(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveResult(nil); err == nil {
		t.Fatal("Expected error for nil result")
	}

	bad := createTestResult("../escape")
	err := store.SaveResult(bad)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if vErr.Field != "JobID" {
		t.Errorf("Field = %q, want JobID", vErr.Field)
	}
}

func TestLoadResult_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadResult("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestLoadResult_Corrupted(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "jobs", "broken")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, ResultFile), []byte("{not json"), 0644)

	_, err := store.LoadResult("broken")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected deserialization error, got %v", err)
	}
}

func TestListResults(t *testing.T) {
	store, tempDir := setupTestStore(t)

	infos, err := store.ListResults()
	if err != nil {
		t.Fatalf("ListResults on empty store failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected no results, got %d", len(infos))
	}

	older := createTestResult("job-old")
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := createTestResult("job-new")
	store.SaveResult(older)
	store.SaveResult(newer)

	// running job without a result yet
	os.MkdirAll(filepath.Join(tempDir, "jobs", "job-running"), 0755)
	// corrupted record
	os.MkdirAll(filepath.Join(tempDir, "jobs", "job-bad"), 0755)
	os.WriteFile(filepath.Join(tempDir, "jobs", "job-bad", ResultFile), []byte("nope"), 0644)

	infos, err = store.ListResults()
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(infos))
	}
	if infos[0].JobID != "job-new" || infos[1].JobID != "job-old" {
		t.Errorf("Expected newest first, got %s, %s", infos[0].JobID, infos[1].JobID)
	}
	if infos[0].Stages != 2 {
		t.Errorf("Stages = %d, want 2", infos[0].Stages)
	}
}

func TestDeleteResult(t *testing.T) {
	store, tempDir := setupTestStore(t)
	store.SaveResult(createTestResult("job-del"))
	store.SaveArtifact("job-del", ImageArtifact, []byte("png"))

	if err := store.DeleteResult("job-del"); err != nil {
		t.Fatalf("DeleteResult failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "jobs", "job-del")); !os.IsNotExist(err) {
		t.Error("Job directory still exists")
	}

	if err := store.DeleteResult("job-del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestArtifacts(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.ArtifactPath("job-a", ImageArtifact); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before save, got %v", err)
	}

	if err := store.SaveArtifact("job-a", ImageArtifact, []byte("pngdata")); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	path, err := store.ArtifactPath("job-a", ImageArtifact)
	if err != nil {
		t.Fatalf("ArtifactPath failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "pngdata" {
		t.Errorf("Artifact content = %q, %v", data, err)
	}

	if err := store.SaveArtifact("job-a", "../../etc/passwd", nil); err == nil {
		t.Error("Expected error for traversal artifact name")
	}
}

func TestBrandKits(t *testing.T) {
	store, tempDir := setupTestStore(t)

	kit := &brandkit.Kit{
		Name:      "Neon Nights",
		Colors:    []brandkit.Swatch{{Hex: "#ff00aa", Weight: 0.6}, {Hex: "#101020", Weight: 0.4}},
		Fonts:     []string{"Bebas Neue"},
		CreatedAt: time.Now(),
	}
	if err := store.SaveKit(kit); err != nil {
		t.Fatalf("SaveKit failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "brandkits", "neon-nights.json")); err != nil {
		t.Fatalf("Kit file missing: %v", err)
	}

	loaded, err := store.LoadKit("neon-nights")
	if err != nil {
		t.Fatalf("LoadKit by slug failed: %v", err)
	}
	if loaded.Name != "Neon Nights" || len(loaded.Colors) != 2 {
		t.Errorf("Unexpected kit: %+v", loaded)
	}

	store.SaveKit(&brandkit.Kit{Name: "Afterhours", Colors: []brandkit.Swatch{{Hex: "#000000"}}})
	kits, err := store.ListKits()
	if err != nil {
		t.Fatalf("ListKits failed: %v", err)
	}
	if len(kits) != 2 || kits[0].Name != "Afterhours" {
		t.Errorf("Expected 2 kits sorted by name, got %+v", kits)
	}

	if err := store.DeleteKit("Neon Nights"); err != nil {
		t.Fatalf("DeleteKit failed: %v", err)
	}
	if _, err := store.LoadKit("Neon Nights"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteKit("Neon Nights"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveKit_Invalid(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.SaveKit(&brandkit.Kit{Name: "No Colors"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestFSStore_ImplementsStore(t *testing.T) {
	var _ Store = (*FSStore)(nil)
}
