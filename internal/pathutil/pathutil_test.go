package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "empty path",
			path: "",
			want: "",
		},
		{
			name: "just tilde",
			path: "~",
			want: home,
		},
		{
			name: "tilde with subpath",
			path: "~/Documents/test",
			want: filepath.Join(home, "Documents/test"),
		},
		{
			name: "absolute path unchanged",
			path: "/usr/local/bin",
			want: "/usr/local/bin",
		},
		{
			name: "relative path unchanged",
			path: "relative/path",
			want: "relative/path",
		},
		{
			name: "tilde in middle unchanged",
			path: "/home/~user/test",
			want: "/home/~user/test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTilde(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExpandTilde() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ExpandTilde() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExistsAndIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shader.wgsl")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if !ExistsAndIsFile(file) {
		t.Error("expected regular file to be found")
	}
	if ExistsAndIsFile(dir) {
		t.Error("directory reported as file")
	}
	if ExistsAndIsFile(filepath.Join(dir, "missing")) {
		t.Error("missing path reported as file")
	}
}

func TestFindMetadata(t *testing.T) {
	// corpus/inputs.json
	// corpus/batch/inputs.json
	// corpus/batch/42.wgsl, 42.json
	root := t.TempDir()
	batch := filepath.Join(root, "batch")
	if err := os.MkdirAll(batch, 0755); err != nil {
		t.Fatal(err)
	}
	program := filepath.Join(batch, "42.wgsl")

	write := func(path string) {
		t.Helper()
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := FindMetadata(program); !errors.Is(err, ErrMetadataNotFound) {
		t.Fatalf("expected ErrMetadataNotFound, got %v", err)
	}

	steps := []struct {
		create string
		want   string
	}{
		{filepath.Join(root, MetadataFilename), filepath.Join(root, MetadataFilename)},
		{filepath.Join(batch, MetadataFilename), filepath.Join(batch, MetadataFilename)},
		{filepath.Join(batch, "42.json"), filepath.Join(batch, "42.json")},
	}
	for _, step := range steps {
		write(step.create)
		got, err := FindMetadata(program)
		if err != nil {
			t.Fatalf("FindMetadata failed: %v", err)
		}
		if got != step.want {
			t.Errorf("after creating %s: got %s, want %s", step.create, got, step.want)
		}
	}
}
