package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimstore/internal/model"
)

// Decoder turns one candidate file into the candidates it holds
type Decoder func(path string) ([]*model.Candidate, error)

// DecodeJob decodes a single candidate file
type DecodeJob struct {
	Index  int // Position in the submitted batch
	Path   string
	Decode Decoder
}

// Execute executes the decode job
func (j *DecodeJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &DecodeResult{Index: j.Index, Path: j.Path, Error: err}
	}
	candidates, err := j.Decode(j.Path)
	if err != nil {
		return &DecodeResult{Index: j.Index, Path: j.Path, Error: err}
	}
	return &DecodeResult{Index: j.Index, Path: j.Path, Candidates: candidates}
}

// DecodeResult represents the result of a decode job
type DecodeResult struct {
	Index      int
	Path       string
	Candidates []*model.Candidate
	Error      error
}

// GetError returns the error from the decode result
func (r *DecodeResult) GetError() error {
	return r.Error
}

// BatchProcessor decodes many candidate files concurrently
type BatchProcessor struct {
	decode      Decoder
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(decode Decoder, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		decode:      decode,
		concurrency: concurrency,
	}
}

// DecodeFiles decodes every file and returns one result per path, in the
// order the paths were given. Files not decoded because ctx ended carry
// the context's error.
func (b *BatchProcessor) DecodeFiles(ctx context.Context, paths []string) []*DecodeResult {
	if len(paths) == 0 {
		return []*DecodeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &DecodeJob{
			Index:  i,
			Path:   path,
			Decode: b.decode,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	ordered := make([]*DecodeResult, len(paths))
	for _, result := range results {
		r := result.(*DecodeResult)
		ordered[r.Index] = r
	}
	for i, r := range ordered {
		if r != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		ordered[i] = &DecodeResult{Index: i, Path: paths[i], Error: fmt.Errorf("not decoded: %w", err)}
	}

	return ordered
}

// DecodeManifest reads a manifest and decodes the files it lists
func (b *BatchProcessor) DecodeManifest(ctx context.Context, manifestPath string) ([]*DecodeResult, error) {
	paths, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return b.DecodeFiles(ctx, paths), nil
}

// ReadManifest reads candidate file paths from a manifest (one per line).
// Relative paths are resolved against the manifest's directory.
func ReadManifest(manifestPath string) ([]string, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	dir := filepath.Dir(manifestPath)
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
			line = filepath.Join(dir, line)
		}
		line = filepath.Clean(line)

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
