package builtin

import (
	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// RegisterAll registers every built-in tool with the registry.
func RegisterAll(reg *tool.Registry, cfg config.ToolsConfig) {
	reg.Register(NewGoogleSearchTool(cfg))
	reg.Register(NewBingSearchTool(cfg))
	reg.Register(NewFileReadTool(cfg))
	reg.Register(NewFileWriteTool(cfg))
	reg.Register(NewCSVAnalysisTool())
}
