package skill

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxContextFiles bounds the file listing in the repository context
	MaxContextFiles = 100

	// MaxImportantFileBytes bounds each manifest file excerpt
	MaxImportantFileBytes = 5000
)

// ImportantFiles are excerpted into the repository context when present
var ImportantFiles = []string{
	"README.md", "package.json", "pyproject.toml", "requirements.txt",
	"Cargo.toml", "go.mod", "pom.xml", "build.gradle",
}

var skippedDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
}

// CollectRepoContext summarizes a repository: up to MaxContextFiles file
// paths (hidden and dependency directories skipped) followed by excerpts of
// the well-known manifest files.
func CollectRepoContext(repoPath string) string {
	var parts []string

	files, err := listRepoFiles(repoPath, MaxContextFiles)
	if err != nil {
		parts = append(parts, fmt.Sprintf("Could not get directory structure: %v", err))
	} else {
		parts = append(parts, "=== Repository Structure ===\n"+strings.Join(files, "\n"))
	}

	for _, name := range ImportantFiles {
		path := filepath.Join(repoPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		content, err := readPrefix(path, MaxImportantFileBytes)
		if err != nil {
			parts = append(parts, fmt.Sprintf("\nCould not read %s: %v", name, err))
			continue
		}
		parts = append(parts, fmt.Sprintf("\n=== %s ===\n%s", name, content))
	}

	return strings.Join(parts, "\n")
}

func listRepoFiles(repoPath string, limit int) ([]string, error) {
	var files []string

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == repoPath {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skippedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		files = append(files, "./"+filepath.ToSlash(rel))
		if len(files) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func readPrefix(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
