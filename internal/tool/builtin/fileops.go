package builtin

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// FileReadTool reads files subject to the configured size limit and extension
// allow-list.
type FileReadTool struct {
	init tool.InitGuard
	cfg  config.ToolsConfig
}

// NewFileReadTool creates a file read tool with limits from cfg.
func NewFileReadTool(cfg config.ToolsConfig) *FileReadTool {
	return &FileReadTool{cfg: cfg}
}

func (f *FileReadTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "file_read",
		Description: "Read the contents of a file",
		Category:    "file",
		Version:     "1.0.0",
		Parameters: []tool.Parameter{
			{Name: "file_path", Type: tool.TypeString, Description: "Path of the file to read", Required: true},
			{Name: "encoding", Type: tool.TypeString, Description: "Text encoding", Default: "utf-8"},
		},
		Tags: []string{"file", "io"},
	}
}

func (f *FileReadTool) Initialize(_ context.Context) error {
	return f.init.Do(nil)
}

func (f *FileReadTool) Execute(_ context.Context, args map[string]any) (*tool.Result, error) {
	path := stringArg(args, "file_path", "")

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Fail("file does not exist: %s", path), nil
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return tool.Fail("path is not a file: %s", path), nil
	}
	if f.cfg.MaxFileSizeBytes > 0 && info.Size() > f.cfg.MaxFileSizeBytes {
		return tool.Fail("file exceeds size limit of %d bytes", f.cfg.MaxFileSizeBytes), nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !extAllowed(f.cfg.AllowedFileTypes, ext) {
		return tool.Fail("file type not allowed: %s", ext), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return tool.Ok(map[string]any{
		"file_path": path,
		"content":   string(content),
		"size":      info.Size(),
		"encoding":  stringArg(args, "encoding", "utf-8"),
		"mime_type": mime.TypeByExtension(filepath.Ext(path)),
	}), nil
}

// FileWriteTool writes files, confined to the configured upload directory.
type FileWriteTool struct {
	init tool.InitGuard
	cfg  config.ToolsConfig
}

// NewFileWriteTool creates a file write tool confined to cfg.UploadDir.
func NewFileWriteTool(cfg config.ToolsConfig) *FileWriteTool {
	return &FileWriteTool{cfg: cfg}
}

func (f *FileWriteTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "file_write",
		Description: "Write content to a file inside the upload directory",
		Category:    "file",
		Version:     "1.0.0",
		Parameters: []tool.Parameter{
			{Name: "file_path", Type: tool.TypeString, Description: "Destination path", Required: true},
			{Name: "content", Type: tool.TypeString, Description: "Content to write", Required: true},
			{Name: "encoding", Type: tool.TypeString, Description: "Text encoding", Default: "utf-8"},
			{Name: "mode", Type: tool.TypeString, Description: "Write mode", Default: "w", Enum: []any{"w", "a"}},
		},
		Tags: []string{"file", "io"},
	}
}

func (f *FileWriteTool) Initialize(_ context.Context) error {
	return f.init.Do(func() error {
		return os.MkdirAll(f.cfg.UploadDir, 0750)
	})
}

func (f *FileWriteTool) Execute(_ context.Context, args map[string]any) (*tool.Result, error) {
	path := stringArg(args, "file_path", "")
	content := stringArg(args, "content", "")
	mode := stringArg(args, "mode", "w")

	inside, err := pathInside(f.cfg.UploadDir, path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if !inside {
		return tool.Fail("file path is outside the upload directory"), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if mode == "a" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	fh, err := os.OpenFile(path, flags, 0640)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer fh.Close()

	n, err := fh.WriteString(content)
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return tool.Ok(map[string]any{
		"file_path":     path,
		"bytes_written": n,
		"mode":          mode,
		"encoding":      stringArg(args, "encoding", "utf-8"),
	}), nil
}

func extAllowed(allowed []string, ext string) bool {
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}

// pathInside reports whether path resolves to a location under dir.
func pathInside(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, err
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
