package docdiff

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// FileStatus is the outcome of comparing one file.
type FileStatus string

const (
	FilePassed  FileStatus = "passed"
	FileFailed  FileStatus = "failed"
	FileNew     FileStatus = "new"
	FileRemoved FileStatus = "removed"
)

// FileResult records the comparison of one file name across both trees.
// Diffs compare the snapshot (a) with the generated file (b).
type FileResult struct {
	Name   string
	Status FileStatus
	Diffs  []Difference
}

// Report summarizes a directory comparison.
type Report struct {
	GeneratedDir string
	SnapshotDir  string
	Generated    int
	Snapshot     int
	Files        []FileResult
}

// Passed counts identical files.
func (r Report) Passed() int { return r.count(FilePassed) }

// Failed counts files that drifted.
func (r Report) Failed() int { return r.count(FileFailed) }

// Skipped counts files present on one side only.
func (r Report) Skipped() int { return r.count(FileNew) + r.count(FileRemoved) }

// HasDrift reports whether any file differs.
func (r Report) HasDrift() bool { return r.Failed() > 0 }

func (r Report) count(status FileStatus) int {
	total := 0
	for _, file := range r.Files {
		if file.Status == status {
			total++
		}
	}
	return total
}

// CompareDirs compares every *.json file of generatedDir with the file of the
// same name in snapshotDir.
func CompareDirs(generatedDir, snapshotDir string) (Report, error) {
	report := Report{GeneratedDir: generatedDir, SnapshotDir: snapshotDir}
	if info, err := os.Stat(snapshotDir); err != nil || !info.IsDir() {
		return report, fmt.Errorf("docdiff: snapshot directory %s not found", snapshotDir)
	}
	generated, err := listJSON(generatedDir)
	if err != nil {
		return report, err
	}
	snapshot, err := listJSON(snapshotDir)
	if err != nil {
		return report, err
	}
	report.Generated = len(generated)
	report.Snapshot = len(snapshot)
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, name := range snapshot {
		inSnapshot[name] = struct{}{}
	}
	inGenerated := make(map[string]struct{}, len(generated))
	for _, name := range generated {
		inGenerated[name] = struct{}{}
		if _, ok := inSnapshot[name]; !ok {
			report.Files = append(report.Files, FileResult{Name: name, Status: FileNew})
			continue
		}
		result, err := CompareFiles(filepath.Join(snapshotDir, name), filepath.Join(generatedDir, name))
		if err != nil {
			return report, err
		}
		result.Name = name
		report.Files = append(report.Files, result)
	}
	for _, name := range snapshot {
		if _, ok := inGenerated[name]; !ok {
			report.Files = append(report.Files, FileResult{Name: name, Status: FileRemoved})
		}
	}
	return report, nil
}

// CompareFiles decodes two JSON files and compares them.
func CompareFiles(snapshotPath, generatedPath string) (FileResult, error) {
	a, err := readValue(snapshotPath)
	if err != nil {
		return FileResult{}, err
	}
	b, err := readValue(generatedPath)
	if err != nil {
		return FileResult{}, err
	}
	return CompareValues(filepath.Base(generatedPath), a, b), nil
}

// CompareValues compares two already decoded documents.
func CompareValues(name string, snapshot, generated doc.Value) FileResult {
	if Equal(snapshot, generated) {
		return FileResult{Name: name, Status: FilePassed}
	}
	return FileResult{Name: name, Status: FileFailed, Diffs: Find(snapshot, generated)}
}

func readValue(path string) (doc.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return doc.Value{}, fmt.Errorf("docdiff: read %s: %w", path, err)
	}
	v, err := doc.Decode(data)
	if err != nil {
		return doc.Value{}, fmt.Errorf("docdiff: %s: %w", path, err)
	}
	return v, nil
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("docdiff: list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
