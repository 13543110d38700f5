package subscriber

import (
	"context"
	"sync"
	"time"

	"github.com/medcrew/backend/internal/eventbus"
	"k8s.io/klog/v2"
)

// PipelineStats 进程启动以来的流水线运行统计
type PipelineStats struct {
	RunsStarted     int       `json:"runs_started"`
	RunsCompleted   int       `json:"runs_completed"`
	RunsFailed      int       `json:"runs_failed"`
	StagesCompleted int       `json:"stages_completed"`
	LastRunAt       time.Time `json:"last_run_at,omitempty"`
	LastFailedStage string    `json:"last_failed_stage,omitempty"`
}

type PipelineEventSubscriber struct {
	mu    sync.Mutex
	stats PipelineStats
}

func NewPipelineEventSubscriber() *PipelineEventSubscriber {
	return &PipelineEventSubscriber{}
}

func (s *PipelineEventSubscriber) Register(bus *eventbus.PipelineEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.PipelineEventStageStarted, s.handleStageStarted)
	bus.Subscribe(eventbus.PipelineEventStageCompleted, s.handleStageCompleted)
	bus.Subscribe(eventbus.PipelineEventStageFailed, s.handleStageFailed)
	bus.Subscribe(eventbus.PipelineEventRunCompleted, s.handleRunCompleted)
}

// Stats 返回统计快照
func (s *PipelineEventSubscriber) Stats() PipelineStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *PipelineEventSubscriber) handleStageStarted(ctx context.Context, event eventbus.PipelineEvent) error {
	if event.StageIndex == 0 {
		s.mu.Lock()
		s.stats.RunsStarted++
		s.stats.LastRunAt = time.Now()
		s.mu.Unlock()
	}
	klog.V(6).Infof("阶段开始: runID=%s, stage=%s (%d/%d)", event.RunID, event.StageID, event.StageIndex+1, event.StageCount)
	return nil
}

func (s *PipelineEventSubscriber) handleStageCompleted(ctx context.Context, event eventbus.PipelineEvent) error {
	s.mu.Lock()
	s.stats.StagesCompleted++
	s.mu.Unlock()
	klog.V(6).Infof("阶段完成: runID=%s, stage=%s, 输出长度=%d, 耗时=%s", event.RunID, event.StageID, event.OutputLength, event.Duration)
	return nil
}

// handleStageFailed 阶段失败即整次运行失败
func (s *PipelineEventSubscriber) handleStageFailed(ctx context.Context, event eventbus.PipelineEvent) error {
	s.mu.Lock()
	s.stats.RunsFailed++
	s.stats.LastFailedStage = event.StageID
	s.mu.Unlock()
	klog.Warningf("阶段失败: runID=%s, stage=%s, 耗时=%s, err=%v", event.RunID, event.StageID, event.Duration, event.Err)
	return nil
}

func (s *PipelineEventSubscriber) handleRunCompleted(ctx context.Context, event eventbus.PipelineEvent) error {
	s.mu.Lock()
	s.stats.RunsCompleted++
	s.mu.Unlock()
	klog.V(4).Infof("流水线运行完成: runID=%s, stages=%d, 结果长度=%d", event.RunID, event.StageCount, event.OutputLength)
	return nil
}
