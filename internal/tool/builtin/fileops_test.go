package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

func testToolsConfig(dir string) config.ToolsConfig {
	return config.ToolsConfig{
		UploadDir:        dir,
		MaxFileSizeBytes: 1024,
		AllowedFileTypes: []string{"txt", "csv"},
	}
}

func TestFileReadTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0640); err != nil {
		t.Fatal(err)
	}

	ft := NewFileReadTool(testToolsConfig(dir))
	res := tool.Invoke(context.Background(), ft, map[string]any{"file_path": path})
	if !res.Success {
		t.Fatalf("read failed: %s", res.Error)
	}

	data := res.Result.(map[string]any)
	if data["content"] != "hello" {
		t.Errorf("content = %v", data["content"])
	}
	if data["size"] != int64(5) {
		t.Errorf("size = %v", data["size"])
	}
}

func TestFileReadToolRejections(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	os.WriteFile(big, []byte(strings.Repeat("x", 2048)), 0640)
	secret := filepath.Join(dir, "key.pem")
	os.WriteFile(secret, []byte("secret"), 0640)

	ft := NewFileReadTool(testToolsConfig(dir))

	tests := []struct {
		name    string
		path    string
		errPart string
	}{
		{"missing file", filepath.Join(dir, "nope.txt"), "does not exist"},
		{"directory", dir, "not a file"},
		{"too large", big, "size limit"},
		{"disallowed type", secret, "not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Invoke(context.Background(), ft, map[string]any{"file_path": tt.path})
			if res.Success {
				t.Fatal("expected failure envelope")
			}
			if !strings.Contains(res.Error, tt.errPart) {
				t.Errorf("error = %q, want substring %q", res.Error, tt.errPart)
			}
		})
	}
}

func TestFileWriteTool(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileWriteTool(testToolsConfig(dir))
	path := filepath.Join(dir, "out", "doc.txt")

	res := tool.Invoke(context.Background(), ft, map[string]any{
		"file_path": path,
		"content":   "first",
	})
	if !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}

	// Append mode
	res = tool.Invoke(context.Background(), ft, map[string]any{
		"file_path": path,
		"content":   " second",
		"mode":      "a",
	})
	if !res.Success {
		t.Fatalf("append failed: %s", res.Error)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "first second" {
		t.Errorf("content = %q", content)
	}
}

func TestFileWriteToolConfinement(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileWriteTool(testToolsConfig(dir))

	res := tool.Invoke(context.Background(), ft, map[string]any{
		"file_path": filepath.Join(dir, "..", "escape.txt"),
		"content":   "nope",
	})
	if res.Success {
		t.Fatal("expected confinement failure")
	}
	if !strings.Contains(res.Error, "outside the upload directory") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestFileWriteToolModeEnum(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileWriteTool(testToolsConfig(dir))

	res := tool.Invoke(context.Background(), ft, map[string]any{
		"file_path": filepath.Join(dir, "doc.txt"),
		"content":   "x",
		"mode":      "rw",
	})
	if res.Success {
		t.Fatal("expected enum validation failure")
	}
	if !strings.Contains(res.Error, "parameter mode must be one of") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestFileWriteToolMissingContent(t *testing.T) {
	dir := t.TempDir()
	ft := NewFileWriteTool(testToolsConfig(dir))

	res := tool.Invoke(context.Background(), ft, map[string]any{
		"file_path": filepath.Join(dir, "doc.txt"),
	})
	if res.Success || res.Error != "missing parameter: content" {
		t.Errorf("envelope = %+v", res)
	}
}
