package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medcrew/backend/internal/eventbus"
	"github.com/medcrew/backend/internal/model"
	"k8s.io/klog/v2"
)

// Runner 按顺序执行阶段，不持有任何跨运行的可变状态
type Runner struct {
	executor StageExecutor
	bus      *eventbus.PipelineEventBus
}

// NewRunner 创建流水线执行器
// bus 可为 nil
func NewRunner(executor StageExecutor, bus *eventbus.PipelineEventBus) *Runner {
	return &Runner{
		executor: executor,
		bus:      bus,
	}
}

// ValidateStages 校验阶段序列：非空、ID 唯一、依赖的阶段在其之前
func ValidateStages(stages []StageSpec) error {
	if len(stages) == 0 {
		return ErrNoStages
	}

	seen := make(map[string]bool, len(stages))
	for i, stage := range stages {
		if strings.TrimSpace(stage.ID) == "" {
			return fmt.Errorf("%w: stage %d has no id", ErrInvalidStage, i)
		}
		if seen[stage.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, stage.ID)
		}
		for _, dep := range stage.Requires {
			if !seen[dep] {
				return fmt.Errorf("%w: %s requires %s", ErrMissingDependency, stage.ID, dep)
			}
		}
		seen[stage.ID] = true
	}
	return nil
}

// Run 严格顺序执行所有阶段，返回最后一个阶段的输出
// 任一阶段失败立即返回 StageExecutionError，不返回部分结果，不重试
func (r *Runner) Run(ctx context.Context, input model.PatientInput, stages []StageSpec) (*Result, error) {
	if err := ValidateStages(stages); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	pctx := NewContext()
	klog.V(6).Infof("[Runner.Run] 开始执行: runID=%s, stages=%d", runID, len(stages))

	for i, stage := range stages {
		r.publish(ctx, eventbus.PipelineEvent{
			Type:       eventbus.PipelineEventStageStarted,
			RunID:      runID,
			StageID:    stage.ID,
			StageIndex: i,
			StageCount: len(stages),
		})

		start := time.Now()
		text, err := r.executeStage(ctx, stage, pctx, input)
		duration := time.Since(start)

		if err != nil {
			klog.Errorf("[Runner.Run] 阶段执行失败: runID=%s, stage=%s, err=%v", runID, stage.ID, err)
			r.publish(ctx, eventbus.PipelineEvent{
				Type:       eventbus.PipelineEventStageFailed,
				RunID:      runID,
				StageID:    stage.ID,
				StageIndex: i,
				StageCount: len(stages),
				Duration:   duration,
				Err:        err,
			})
			return nil, &StageExecutionError{StageID: stage.ID, Err: err}
		}

		pctx.append(stage.ID, text)
		klog.V(6).Infof("[Runner.Run] 阶段完成: runID=%s, stage=%s, 输出长度=%d, 耗时=%s",
			runID, stage.ID, len(text), duration)

		r.publish(ctx, eventbus.PipelineEvent{
			Type:         eventbus.PipelineEventStageCompleted,
			RunID:        runID,
			StageID:      stage.ID,
			StageIndex:   i,
			StageCount:   len(stages),
			OutputLength: len(text),
			Duration:     duration,
		})
	}

	outputs := pctx.Outputs()
	result := &Result{
		RunID:   runID,
		Text:    outputs[len(outputs)-1].Text,
		Context: pctx,
	}

	r.publish(ctx, eventbus.PipelineEvent{
		Type:         eventbus.PipelineEventRunCompleted,
		RunID:        runID,
		StageCount:   len(stages),
		OutputLength: len(result.Text),
	})
	return result, nil
}

func (r *Runner) executeStage(ctx context.Context, stage StageSpec, pctx *Context, input model.PatientInput) (string, error) {
	for _, dep := range stage.Requires {
		if _, ok := pctx.Get(dep); !ok {
			return "", fmt.Errorf("%w: missing output of %s", ErrMissingDependency, dep)
		}
	}

	text, err := r.executor.ExecuteStage(ctx, stage, pctx.snapshot(), input)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

func (r *Runner) publish(ctx context.Context, event eventbus.PipelineEvent) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, event.Type, event); err != nil {
		klog.Warningf("[Runner.publish] 事件处理失败: type=%s, runID=%s, err=%v", event.Type, event.RunID, err)
	}
}
