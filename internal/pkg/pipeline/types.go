package pipeline

import (
	"context"

	"github.com/medcrew/backend/internal/model"
)

// Capability 阶段允许使用的工具能力标签
type Capability string

const (
	CapabilityWebSearch Capability = "web_search"
	CapabilityFetchPage Capability = "fetch_page"
)

// StageSpec 单个阶段的静态配置，运行期间不可修改
type StageSpec struct {
	ID             string       `yaml:"id" json:"id"`
	Role           string       `yaml:"role" json:"role"`
	Goal           string       `yaml:"goal" json:"goal"`
	Backstory      string       `yaml:"backstory" json:"backstory"`
	Task           string       `yaml:"task" json:"task"` // 可包含 {symptoms} {medical_history} {gender} {age}
	ExpectedOutput string       `yaml:"expectedOutput" json:"expected_output"`
	Capabilities   []Capability `yaml:"capabilities" json:"capabilities"`
	Requires       []string     `yaml:"requires" json:"requires"` // 必须先完成的阶段 ID
	MaxIterations  int          `yaml:"maxIterations" json:"max_iterations"`
}

// HasCapability 检查阶段是否允许某个能力
func (s StageSpec) HasCapability(c Capability) bool {
	for _, allowed := range s.Capabilities {
		if allowed == c {
			return true
		}
	}
	return false
}

// StageExecutor 执行单个阶段的外部组件（LLM 调用及其内部工具调用）
// prior 为本次运行中已完成阶段的输出，只读
type StageExecutor interface {
	ExecuteStage(ctx context.Context, spec StageSpec, prior *Context, input model.PatientInput) (string, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, spec StageSpec, prior *Context, input model.PatientInput) (string, error)

func (f ExecutorFunc) ExecuteStage(ctx context.Context, spec StageSpec, prior *Context, input model.PatientInput) (string, error) {
	return f(ctx, spec, prior, input)
}

// Result 一次流水线运行的结果
type Result struct {
	RunID   string   `json:"run_id"`
	Text    string   `json:"text"` // 最后一个阶段的输出
	Context *Context `json:"stages"`
}
