package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/ppiankov/claimstore/internal/worker"
)

// Expand resolves command line arguments into candidate file paths.
// Directories contribute their candidate files recursively, manifests
// contribute the files and directories they list. The result is
// deduplicated and keeps argument order.
func Expand(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}

		switch {
		case info.IsDir():
			files, err := walkDir(arg)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		case IsManifest(arg):
			listed, err := worker.ReadManifest(arg)
			if err != nil {
				return nil, fmt.Errorf("manifest %s: %w", arg, err)
			}
			for _, entry := range listed {
				files, err := expandListed(entry)
				if err != nil {
					return nil, fmt.Errorf("manifest %s: %w", arg, err)
				}
				for _, f := range files {
					add(f)
				}
			}
		case IsCandidateFile(arg):
			add(arg)
		default:
			return nil, fmt.Errorf("%s: not a candidate file, directory or manifest", arg)
		}
	}
	return out, nil
}

// expandListed resolves one manifest line. Manifests do not nest.
func expandListed(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return walkDir(path)
	}
	if !IsCandidateFile(path) {
		return nil, fmt.Errorf("%s: not a candidate file or directory", path)
	}
	return []string{path}, nil
}

func walkDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if IsCandidateFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}
