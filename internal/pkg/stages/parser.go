package stages

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/medcrew/backend/internal/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// Parser 阶段配置解析器
type Parser struct {
	maxFieldLen   int
	maxIterations int
}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{
		maxFieldLen:   4096,
		maxIterations: 50,
	}
}

// Parse 解析阶段配置文件，未出现的字段沿用 base
func (p *Parser) Parse(configPath string, base pipeline.StageSpec) (pipeline.StageSpec, error) {
	configPath = filepath.Clean(configPath)

	content, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return base, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return base, fmt.Errorf("failed to read stage config: %w", err)
	}

	spec := base
	// 切片字段整体替换而不是合并
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if spec.ID != base.ID {
		return base, fmt.Errorf("%w: id %q does not match %q", ErrInvalidConfig, spec.ID, base.ID)
	}

	if err := p.Validate(spec); err != nil {
		return base, err
	}
	return spec, nil
}

// Validate 校验阶段配置
func (p *Parser) Validate(spec pipeline.StageSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}

	required := map[string]string{
		"role": spec.Role,
		"goal": spec.Goal,
		"task": spec.Task,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
		}
	}

	for name, value := range map[string]string{
		"role":           spec.Role,
		"goal":           spec.Goal,
		"backstory":      spec.Backstory,
		"task":           spec.Task,
		"expectedOutput": spec.ExpectedOutput,
	} {
		if len(value) > p.maxFieldLen {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidConfig, name, p.maxFieldLen)
		}
	}

	for _, c := range spec.Capabilities {
		switch c {
		case pipeline.CapabilityWebSearch, pipeline.CapabilityFetchPage:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownCapability, c)
		}
	}

	if spec.MaxIterations < 0 || spec.MaxIterations > p.maxIterations {
		return fmt.Errorf("%w: maxIterations must be between 0 and %d", ErrInvalidConfig, p.maxIterations)
	}
	return nil
}
