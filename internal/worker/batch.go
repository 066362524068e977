package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/rflocate/internal/model"
)

// inputExtensions are the readings file formats picked up from a directory
var inputExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Locator runs the full detect-and-locate pipeline on one readings file
type Locator interface {
	LocateFile(ctx context.Context, path string) (*model.Report, error)
}

// FileJob represents one readings file to process
type FileJob struct {
	Path    string
	Locator Locator
}

// Execute executes the file job
func (j *FileJob) Execute(ctx context.Context) Result {
	report, err := j.Locator.LocateFile(ctx, j.Path)
	if err != nil {
		return &FileResult{Path: j.Path, Error: err}
	}
	return &FileResult{Path: j.Path, Report: report}
}

// FileResult represents the result of a file job
type FileResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many readings files concurrently
type BatchProcessor struct {
	locator Locator
	pool    *Pool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(locator Locator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		locator: locator,
		pool:    NewPool(concurrency),
	}
}

// ProcessFiles processes readings files concurrently. Results keep input order.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*FileResult {
	jobs := make([]Job, len(paths))
	for i, path := range paths {
		jobs[i] = &FileJob{Path: path, Locator: b.locator}
	}

	results := b.pool.Run(ctx, jobs)

	out := make([]*FileResult, len(results))
	for i, result := range results {
		if fr, ok := result.(*FileResult); ok {
			out[i] = fr
			continue
		}
		out[i] = &FileResult{Path: paths[i], Error: result.GetError()}
	}
	return out
}

// ProcessInputs resolves a directory or list file and processes every input in it
func (b *BatchProcessor) ProcessInputs(ctx context.Context, arg string) ([]*FileResult, error) {
	paths, err := CollectInputs(arg)
	if err != nil {
		return nil, err
	}
	return b.ProcessFiles(ctx, paths), nil
}

// CollectInputs returns the readings files named by arg. A directory yields its
// YAML and JSON files in lexical order; anything else is read as a list file.
func CollectInputs(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return ReadInputList(arg)
	}

	entries, err := os.ReadDir(arg)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !inputExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(arg, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadInputList reads readings file paths from a list file (one per line).
// Relative paths are resolved against the list file's directory.
func ReadInputList(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
