// Package manifest loads declarative command tools from a tools directory.
// Each tool lives in its own subdirectory with a TOOL.md manifest (YAML
// frontmatter carrying identity metadata) and a tool.toml declaring the
// command line and parameter descriptors.
package manifest

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/toolmesh/toolmesh/internal/tool"
)

// Manifest is the parsed TOOL.md frontmatter.
type Manifest struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Author      string   `yaml:"author"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
}

// toolFile is the parsed tool.toml.
type toolFile struct {
	Tool struct {
		Command     string   `toml:"command"`
		Args        []string `toml:"args"`
		Env         []string `toml:"env"`
		TimeoutSecs int      `toml:"timeout_secs"`
	} `toml:"tool"`
	Parameters []paramDef `toml:"parameter"`
}

type paramDef struct {
	Name        string `toml:"name"`
	Type        string `toml:"type"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
	Default     any    `toml:"default"`
	Enum        []any  `toml:"enum"`
}

// Loader discovers and loads manifest tools from a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader that scans the given directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger.With("component", "manifest_loader")}
}

// LoadAll loads every tool under the directory. A broken tool directory is
// logged and skipped, it never fails the rest.
func (l *Loader) LoadAll() ([]*CommandTool, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("manifest directory does not exist, skipping", "dir", l.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}

	var tools []*CommandTool
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.dir, entry.Name())
		t, err := l.loadTool(dir)
		if err != nil {
			l.logger.Warn("failed to load manifest tool", "dir", dir, "error", err)
			continue
		}
		tools = append(tools, t)
		l.logger.Info("loaded manifest tool",
			"name", t.Metadata().Name,
			"version", t.Metadata().Version,
			"command", t.command,
		)
	}
	return tools, nil
}

// RegisterAll loads every manifest tool and registers it with the registry.
func (l *Loader) RegisterAll(reg *tool.Registry) (int, error) {
	tools, err := l.LoadAll()
	if err != nil {
		return 0, err
	}
	for _, t := range tools {
		reg.Register(t)
	}
	return len(tools), nil
}

func (l *Loader) loadTool(dir string) (*CommandTool, error) {
	m, err := parseManifest(filepath.Join(dir, "TOOL.md"))
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest in %s has no name", dir)
	}

	var tf toolFile
	if _, err := toml.DecodeFile(filepath.Join(dir, "tool.toml"), &tf); err != nil {
		return nil, fmt.Errorf("parse tool.toml: %w", err)
	}
	if tf.Tool.Command == "" {
		return nil, fmt.Errorf("tool.toml in %s has no command", dir)
	}

	params := make([]tool.Parameter, 0, len(tf.Parameters))
	for _, p := range tf.Parameters {
		typ := p.Type
		if typ == "" {
			typ = tool.TypeString
		}
		params = append(params, tool.Parameter{
			Name:        p.Name,
			Type:        typ,
			Description: p.Description,
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
		})
	}

	timeout := 30 * time.Second
	if tf.Tool.TimeoutSecs > 0 {
		timeout = time.Duration(tf.Tool.TimeoutSecs) * time.Second
	}

	category := m.Category
	if category == "" {
		category = "command"
	}
	version := m.Version
	if version == "" {
		version = "1.0.0"
	}

	return &CommandTool{
		meta: tool.Metadata{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  params,
			Category:    category,
			Version:     version,
			Author:      m.Author,
			Tags:        m.Tags,
		},
		dir:     dir,
		command: expandHome(tf.Tool.Command),
		args:    tf.Tool.Args,
		env:     tf.Tool.Env,
		timeout: timeout,
	}, nil
}

// parseManifest extracts YAML frontmatter from TOOL.md.
func parseManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	var inFrontmatter bool
	var yamlLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			if inFrontmatter {
				break
			}
			inFrontmatter = true
			continue
		}
		if inFrontmatter {
			yamlLines = append(yamlLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(yamlLines) == 0 {
		return nil, fmt.Errorf("no YAML frontmatter found in %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal([]byte(strings.Join(yamlLines, "\n")), &m); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &m, nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
