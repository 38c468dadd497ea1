// Package tools assembles the worked-example tool modules registered into
// the tool registry at startup. The full catalog of thin REST wrappers is
// an external collaborator concern; these examples exist so discovery,
// search, lazy enablement, and the call pipeline all run against real
// tools in the shipped binary.
package tools

import (
	"github.com/haasonsaas/nexus/internal/toolregistry"
	"github.com/haasonsaas/nexus/internal/tools/files"
	"github.com/haasonsaas/nexus/internal/tools/web"
)

// Candidates assembles the compiled-in tool manifest handed to
// Registry.Discover once at startup — the Go analogue of scanning a
// bounded directory tree for tool modules.
func Candidates(workspace string) []toolregistry.Tool {
	fileCfg := files.Config{Workspace: workspace}
	return []toolregistry.Tool{
		files.NewReadTool(fileCfg),
		files.NewListTool(fileCfg),
		files.NewWriteTool(fileCfg),
		web.NewFetchTool(web.Config{}),
	}
}
