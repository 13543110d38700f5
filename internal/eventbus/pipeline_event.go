package eventbus

import "time"

type PipelineEventType string

const (
	PipelineEventStageStarted   PipelineEventType = "StageStarted"
	PipelineEventStageCompleted PipelineEventType = "StageCompleted"
	PipelineEventStageFailed    PipelineEventType = "StageFailed"
	PipelineEventRunCompleted   PipelineEventType = "RunCompleted"
)

// PipelineEvent 流水线执行过程中的生命周期事件
type PipelineEvent struct {
	Type         PipelineEventType
	RunID        string
	StageID      string
	StageIndex   int // 从 0 开始
	StageCount   int
	OutputLength int
	Duration     time.Duration
	Err          error
}

type PipelineEventHandler = Handler[PipelineEvent]
type PipelineEventBus = Bus[PipelineEventType, PipelineEvent]

func NewPipelineEventBus() *PipelineEventBus {
	return NewBus[PipelineEventType, PipelineEvent]()
}
