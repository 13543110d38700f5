package adkagents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/medcrew/backend/internal/model"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/utils"
	"k8s.io/klog/v2"
)

const defaultMaxIterations = 10

// Executor 基于 Eino ADK ChatModelAgent 的阶段执行器
// 每次调用创建独立的 Agent 与 Runner，不在调用之间保留状态
type Executor struct {
	chatModel     einomodel.ToolCallingChatModel
	binder        *ToolBinder
	maxIterations int
}

// NewExecutor 创建阶段执行器
// maxIterations: 阶段未指定时使用的最大迭代次数
func NewExecutor(chatModel einomodel.ToolCallingChatModel, binder *ToolBinder, maxIterations int) *Executor {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if binder == nil {
		binder = NewToolBinder()
	}
	return &Executor{
		chatModel:     chatModel,
		binder:        binder,
		maxIterations: maxIterations,
	}
}

// CreateStageAgent 根据阶段配置创建 ChatModelAgent
func (e *Executor) CreateStageAgent(ctx context.Context, spec pipeline.StageSpec) (adk.Agent, error) {
	tools, err := e.binder.Bind(spec)
	if err != nil {
		return nil, err
	}

	maxIterations := spec.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.maxIterations
	}

	agentConfig := &adk.ChatModelAgentConfig{
		Name:          spec.ID,
		Description:   spec.Goal,
		Instruction:   pipeline.BuildInstruction(spec),
		Model:         e.chatModel,
		MaxIterations: maxIterations,
	}
	if len(tools) > 0 {
		agentConfig.ToolsConfig = adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		}
	}

	agent, err := adk.NewChatModelAgent(ctx, agentConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", spec.ID, err)
	}

	klog.V(6).Infof("[Executor] 创建 %s Agent 成功: tools=%d, maxIterations=%d", spec.ID, len(tools), maxIterations)
	return agent, nil
}

// ExecuteStage 执行单个阶段，返回 Agent 的最终回答
// 实现 pipeline.StageExecutor 接口
func (e *Executor) ExecuteStage(ctx context.Context, spec pipeline.StageSpec, prior *pipeline.Context, input model.PatientInput) (string, error) {
	klog.V(6).Infof("[Executor.ExecuteStage] 开始执行阶段: stage=%s, prior=%d", spec.ID, prior.Len())

	agent, err := e.CreateStageAgent(ctx, spec)
	if err != nil {
		return "", err
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: agent,
	})

	iter := runner.Run(ctx, []adk.Message{
		{
			Role:    schema.User,
			Content: pipeline.BuildStagePrompt(spec, prior, input),
		},
	})

	var lastContent string
	steps := 0
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}

		if event.Err != nil {
			klog.Errorf("[Executor.ExecuteStage] Agent 执行出错: stage=%s, err=%v", spec.ID, event.Err)
			return "", fmt.Errorf("agent execution failed: %w", event.Err)
		}

		steps++
		if content, final := finalContent(event); final {
			lastContent = content
			klog.V(6).Infof("[Executor.ExecuteStage] 步骤 %d [%s] 产出回答, 内容长度: %d", steps, event.AgentName, len(content))
		}

		if event.Action != nil && event.Action.Exit {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	lastContent = utils.ExtractMarkdown(lastContent)
	if lastContent == "" {
		return "", ErrNoFinalAnswer
	}

	klog.V(6).Infof("[Executor.ExecuteStage] 阶段完成: stage=%s, steps=%d, 内容长度=%d", spec.ID, steps, len(lastContent))
	return lastContent, nil
}

// finalContent 提取事件中的助手文本回答，工具调用消息和工具结果不算
func finalContent(event *adk.AgentEvent) (string, bool) {
	if event.Output == nil || event.Output.MessageOutput == nil {
		return "", false
	}
	msg := event.Output.MessageOutput.Message
	if msg == nil {
		return "", false
	}
	if msg.Role != schema.Assistant || len(msg.ToolCalls) > 0 {
		return "", false
	}
	if msg.Content == "" {
		return "", false
	}
	return msg.Content, true
}
