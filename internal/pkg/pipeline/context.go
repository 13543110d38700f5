package pipeline

import "encoding/json"

// StageOutput 单个已完成阶段的输出
type StageOutput struct {
	StageID string `json:"stage_id"`
	Text    string `json:"text"`
}

// Context 一次运行内按执行顺序累积的阶段输出
// 每次运行独立创建，不跨请求共享
type Context struct {
	outputs []StageOutput
}

// NewContext 创建空的运行上下文
func NewContext() *Context {
	return &Context{}
}

func (c *Context) append(stageID, text string) {
	c.outputs = append(c.outputs, StageOutput{StageID: stageID, Text: text})
}

// Get 获取指定阶段的输出
func (c *Context) Get(stageID string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, o := range c.outputs {
		if o.StageID == stageID {
			return o.Text, true
		}
	}
	return "", false
}

// Outputs 按执行顺序返回所有输出的副本
func (c *Context) Outputs() []StageOutput {
	if c == nil {
		return nil
	}
	out := make([]StageOutput, len(c.outputs))
	copy(out, c.outputs)
	return out
}

func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.outputs)
}

// snapshot 交给执行器的只读快照，执行器无法影响 Runner 持有的上下文
func (c *Context) snapshot() *Context {
	return &Context{outputs: c.Outputs()}
}

func (c *Context) MarshalJSON() ([]byte, error) {
	outputs := c.Outputs()
	if outputs == nil {
		outputs = []StageOutput{}
	}
	return json.Marshal(outputs)
}
