// Package filex holds small file helpers for the CLI client.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteInSubdir writes data to dirName/fileName under the working directory,
// creating the directory when needed, and returns the full path. Existing
// files are replaced.
func WriteInSubdir(dirName, fileName string, data []byte) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filepath.Base(fileName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}
