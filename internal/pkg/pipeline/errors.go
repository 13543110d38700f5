package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStages 阶段列表为空
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrInvalidStage 阶段配置无效
	ErrInvalidStage = errors.New("invalid stage spec")

	// ErrDuplicateStage 阶段 ID 重复
	ErrDuplicateStage = errors.New("duplicate stage id")

	// ErrMissingDependency 依赖的阶段不在其之前
	ErrMissingDependency = errors.New("stage dependency not satisfied")

	// ErrEmptyOutput 阶段输出为空
	ErrEmptyOutput = errors.New("stage produced empty output")
)

// StageExecutionError 阶段执行失败，携带失败阶段的 ID
type StageExecutionError struct {
	StageID string
	Err     error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.StageID, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}
