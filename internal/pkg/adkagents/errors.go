package adkagents

import "errors"

var (
	// ErrToolNotFound 能力没有对应的工具
	ErrToolNotFound = errors.New("tool not found for capability")

	// ErrNoFinalAnswer Agent 结束时没有产出最终文本
	ErrNoFinalAnswer = errors.New("agent finished without a final answer")
)
