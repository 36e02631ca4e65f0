package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nightlifeflyers/flyerstudio/internal/brandkit"
)

// FSStore implements Store on the filesystem:
//
//	<baseDir>/jobs/<jobID>/result.json
//	<baseDir>/jobs/<jobID>/result.png
//	<baseDir>/jobs/<jobID>/trace.jsonl
//	<baseDir>/brandkits/<slug>.json
//
// Every write goes through a temp file and a rename, so readers never see a
// partial file and no locking is needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates the base directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root data directory.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) jobsDir() string {
	return filepath.Join(fs.baseDir, "jobs")
}

func (fs *FSStore) jobDir(jobID string) string {
	return filepath.Join(fs.jobsDir(), jobID)
}

func (fs *FSStore) kitsDir() string {
	return filepath.Join(fs.baseDir, "brandkits")
}

func (fs *FSStore) kitPath(slug string) string {
	return filepath.Join(fs.kitsDir(), slug+".json")
}

// writeAtomic writes data to path via a sibling temp file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func readJSON(path string, v any, notFound *NotFoundError) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to deserialize %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveResult validates and writes result.json for the job.
func (fs *FSStore) SaveResult(result *Result) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	path := filepath.Join(fs.jobDir(result.JobID), ResultFile)
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	slog.Debug("Result saved", "jobID", result.JobID, "path", path)
	return nil
}

// LoadResult reads result.json for the job.
func (fs *FSStore) LoadResult(jobID string) (*Result, error) {
	if err := validateID(jobID); err != nil {
		return nil, fmt.Errorf("invalid jobID: %w", err)
	}

	var result Result
	path := filepath.Join(fs.jobDir(jobID), ResultFile)
	if err := readJSON(path, &result, &NotFoundError{Kind: "job", ID: jobID}); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResults returns stored jobs, newest first.
func (fs *FSStore) ListResults() ([]ResultInfo, error) {
	entries, err := os.ReadDir(fs.jobsDir())
	if errors.Is(err, os.ErrNotExist) {
		return []ResultInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	infos := []ResultInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result, err := fs.LoadResult(entry.Name())
		if errors.Is(err, ErrNotFound) {
			continue // job still running or failed before saving
		}
		if err != nil {
			slog.Warn("Failed to load result for listing", "jobID", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, result.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	slog.Debug("Listed results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes the job directory and everything in it.
func (fs *FSStore) DeleteResult(jobID string) error {
	if err := validateID(jobID); err != nil {
		return fmt.Errorf("invalid jobID: %w", err)
	}

	dir := fs.jobDir(jobID)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Kind: "job", ID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Job deleted", "jobID", jobID, "path", dir)
	return nil
}

// SaveArtifact writes a named file into the job directory.
func (fs *FSStore) SaveArtifact(jobID, name string, data []byte) error {
	if err := validateID(jobID); err != nil {
		return fmt.Errorf("invalid jobID: %w", err)
	}
	if err := validateID(name); err != nil {
		return fmt.Errorf("invalid artifact name: %w", err)
	}

	path := filepath.Join(fs.jobDir(jobID), name)
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	slog.Debug("Artifact saved", "jobID", jobID, "name", name, "bytes", len(data))
	return nil
}

// ArtifactPath returns the path of an existing artifact.
func (fs *FSStore) ArtifactPath(jobID, name string) (string, error) {
	if err := validateID(jobID); err != nil {
		return "", fmt.Errorf("invalid jobID: %w", err)
	}
	if err := validateID(name); err != nil {
		return "", fmt.Errorf("invalid artifact name: %w", err)
	}

	path := filepath.Join(fs.jobDir(jobID), name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", &NotFoundError{Kind: "artifact", ID: jobID + "/" + name}
	} else if err != nil {
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}
	return path, nil
}

// SaveKit validates and writes a brand kit, keyed by the slug of its name.
func (fs *FSStore) SaveKit(kit *brandkit.Kit) error {
	if kit == nil {
		return fmt.Errorf("brand kit cannot be nil")
	}
	if err := kit.Validate(); err != nil {
		return &ValidationError{Field: "BrandKit", Reason: err.Error()}
	}

	data, err := json.MarshalIndent(kit, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize brand kit: %w", err)
	}

	path := fs.kitPath(brandkit.Slug(kit.Name))
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save brand kit: %w", err)
	}

	slog.Debug("Brand kit saved", "name", kit.Name, "path", path)
	return nil
}

// LoadKit reads a brand kit by name or slug.
func (fs *FSStore) LoadKit(name string) (*brandkit.Kit, error) {
	slug := brandkit.Slug(name)
	if slug == "" {
		return nil, &NotFoundError{Kind: "brand kit", ID: name}
	}

	var kit brandkit.Kit
	if err := readJSON(fs.kitPath(slug), &kit, &NotFoundError{Kind: "brand kit", ID: name}); err != nil {
		return nil, err
	}
	return &kit, nil
}

// ListKits returns every stored brand kit sorted by name.
func (fs *FSStore) ListKits() ([]brandkit.Kit, error) {
	entries, err := os.ReadDir(fs.kitsDir())
	if errors.Is(err, os.ErrNotExist) {
		return []brandkit.Kit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read brand kit directory: %w", err)
	}

	kits := []brandkit.Kit{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var kit brandkit.Kit
		path := filepath.Join(fs.kitsDir(), entry.Name())
		if err := readJSON(path, &kit, &NotFoundError{Kind: "brand kit", ID: entry.Name()}); err != nil {
			slog.Warn("Failed to load brand kit for listing", "file", entry.Name(), "error", err)
			continue
		}
		kits = append(kits, kit)
	}

	sort.Slice(kits, func(i, j int) bool { return kits[i].Name < kits[j].Name })
	return kits, nil
}

// DeleteKit removes a brand kit by name or slug.
func (fs *FSStore) DeleteKit(name string) error {
	slug := brandkit.Slug(name)
	if slug == "" {
		return &NotFoundError{Kind: "brand kit", ID: name}
	}

	err := os.Remove(fs.kitPath(slug))
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Kind: "brand kit", ID: name}
	}
	if err != nil {
		return fmt.Errorf("failed to delete brand kit: %w", err)
	}

	slog.Debug("Brand kit deleted", "name", name)
	return nil
}
