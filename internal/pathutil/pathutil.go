// Package pathutil resolves the files a command operates on.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MetadataFilename is the shared metadata document looked up next to a
// program and in its parent directory.
const MetadataFilename = "inputs.json"

// ErrMetadataNotFound is returned by FindMetadata when no candidate exists.
var ErrMetadataNotFound = errors.New("couldn't determine path to metadata file, pass one explicitly")

// ExpandTilde expands ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	return path, nil
}

// ExistsAndIsFile returns true if the path exists and is a regular file.
func ExistsAndIsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// MetadataCandidates lists where the metadata of programPath is looked
// up, in order: <dir>/<stem>.json, <dir>/inputs.json, <dir>/../inputs.json.
func MetadataCandidates(programPath string) []string {
	dir := filepath.Dir(programPath)
	base := filepath.Base(programPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return []string{
		filepath.Join(dir, stem+".json"),
		filepath.Join(dir, MetadataFilename),
		filepath.Join(filepath.Dir(dir), MetadataFilename),
	}
}

// FindMetadata returns the first existing metadata candidate for
// programPath.
func FindMetadata(programPath string) (string, error) {
	for _, candidate := range MetadataCandidates(programPath) {
		if ExistsAndIsFile(candidate) {
			return candidate, nil
		}
	}
	return "", ErrMetadataNotFound
}
