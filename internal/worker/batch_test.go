package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/rflocate/internal/model"
)

// MockLocator implements Locator
type MockLocator struct {
	ShouldError bool
}

func (m *MockLocator) LocateFile(ctx context.Context, path string) (*model.Report, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.ShouldError {
		return nil, errors.New("locate error")
	}
	return &model.Report{Source: path}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBatchProcessor_ProcessFiles(t *testing.T) {
	processor := NewBatchProcessor(&MockLocator{}, 2)

	paths := []string{"a.yaml", "b.yaml", "c.json"}
	results := processor.ProcessFiles(context.Background(), paths)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Report == nil || res.Report.Source != paths[i] {
			t.Errorf("expected report for %s in position %d, got %+v", paths[i], i, res.Report)
		}
	}
}

func TestBatchProcessor_ProcessFiles_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockLocator{ShouldError: true}, 2)

	results := processor.ProcessFiles(context.Background(), []string{"a.yaml"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessFiles_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&MockLocator{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessFiles(ctx, []string{"a.yaml", "b.yaml", "c.yaml"})
	for i, res := range results {
		if res == nil {
			t.Fatalf("expected result in position %d", i)
		}
		if res.Path == "" {
			t.Errorf("expected path on result %d", i)
		}
	}
}

func TestReadInputList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	writeFile(t, list, "a.yaml\n# comment\n/abs/b.json\n   \na.yaml\n  c.yml  ")

	paths, err := ReadInputList(list)
	if err != nil {
		t.Fatalf("ReadInputList failed: %v", err)
	}

	expected := []string{filepath.Join(dir, "a.yaml"), "/abs/b.json", filepath.Join(dir, "c.yml")}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadInputList_NonExistent(t *testing.T) {
	if _, err := ReadInputList("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestCollectInputs_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"), "readings: []")
	writeFile(t, filepath.Join(dir, "a.json"), "{}")
	writeFile(t, filepath.Join(dir, "notes.txt"), "skip me")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := CollectInputs(dir)
	if err != nil {
		t.Fatalf("CollectInputs failed: %v", err)
	}
	expected := []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.yaml")}
	if len(paths) != 2 || paths[0] != expected[0] || paths[1] != expected[1] {
		t.Errorf("expected %v, got %v", expected, paths)
	}
}

func TestBatchProcessor_ProcessInputs(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "batch.txt")
	writeFile(t, list, "one.yaml\ntwo.yaml\n")

	processor := NewBatchProcessor(&MockLocator{}, 2)
	results, err := processor.ProcessInputs(context.Background(), list)
	if err != nil {
		t.Fatalf("ProcessInputs failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessInputs(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestFileResult_GetError(t *testing.T) {
	r1 := &FileResult{Path: "a.yaml"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("locate failed")
	r2 := &FileResult{Path: "a.yaml", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
