package adkagents

import (
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/medcrew/backend/internal/pkg/pipeline"
)

// ToolBinder 将阶段能力标签映射为 Eino 工具
type ToolBinder struct {
	tools map[pipeline.Capability]tool.BaseTool
}

// NewToolBinder 创建工具绑定器
func NewToolBinder() *ToolBinder {
	return &ToolBinder{tools: make(map[pipeline.Capability]tool.BaseTool)}
}

// Register 注册能力对应的工具
func (b *ToolBinder) Register(capability pipeline.Capability, t tool.BaseTool) *ToolBinder {
	b.tools[capability] = t
	return b
}

// Bind 返回阶段允许使用的工具，顺序与能力声明一致
func (b *ToolBinder) Bind(spec pipeline.StageSpec) ([]tool.BaseTool, error) {
	bound := make([]tool.BaseTool, 0, len(spec.Capabilities))
	seen := make(map[pipeline.Capability]bool, len(spec.Capabilities))
	for _, capability := range spec.Capabilities {
		if seen[capability] {
			continue
		}
		seen[capability] = true

		t, ok := b.tools[capability]
		if !ok {
			return nil, fmt.Errorf("%w: %s (stage %s)", ErrToolNotFound, capability, spec.ID)
		}
		bound = append(bound, t)
	}
	return bound, nil
}
