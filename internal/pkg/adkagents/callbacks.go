package adkagents

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// startTimeKey 节点开始时间保存在 onStart 返回的 ctx 中
type startTimeKey struct{}

// EinoCallbacks Eino 回调处理器
// 记录 LLM 调用与工具调用的输入输出和耗时
type EinoCallbacks struct {
	enabled      bool
	mu           sync.Mutex
	callSequence int
	inflight     int
}

// NewEinoCallbacks 创建回调处理器
func NewEinoCallbacks(enabled bool) *EinoCallbacks {
	return &EinoCallbacks{enabled: enabled}
}

// Handler 返回 Eino 的 callbacks.Handler
func (ec *EinoCallbacks) Handler() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(ec.onStart).
		OnEndFn(ec.onEnd).
		OnErrorFn(ec.onError).
		OnStartWithStreamInputFn(ec.onStartWithStreamInput).
		OnEndWithStreamOutputFn(ec.onEndWithStreamOutput).
		Build()
}

// Inflight 返回已开始但尚未结束的节点数
func (ec *EinoCallbacks) Inflight() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.inflight
}

func (ec *EinoCallbacks) onStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if !ec.enabled || info == nil {
		return ctx
	}

	ctx, sequence := ec.begin(ctx)

	klog.V(6).InfoS("[EinoCallback] 节点开始执行",
		"sequence", sequence,
		"component", info.Component,
		"type", info.Type,
		"name", info.Name,
	)

	switch info.Component {
	case "ChatModel", "Model":
		ec.logModelInput(input, info)
	case "Tool":
		ec.logToolInput(input, info)
	}
	return ctx
}

func (ec *EinoCallbacks) onEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if !ec.enabled || info == nil {
		return ctx
	}

	klog.V(6).InfoS("[EinoCallback] 节点执行完成",
		"component", info.Component,
		"type", info.Type,
		"name", info.Name,
		"duration_ms", ec.finish(ctx).Milliseconds(),
	)

	switch info.Component {
	case "ChatModel", "Model":
		ec.logModelOutput(output, info)
	case "Tool":
		ec.logToolOutput(output, info)
	}
	return ctx
}

func (ec *EinoCallbacks) onError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	if !ec.enabled || info == nil {
		return ctx
	}

	klog.ErrorS(err, "[EinoCallback] 节点执行出错",
		"component", info.Component,
		"type", info.Type,
		"name", info.Name,
		"duration_ms", ec.finish(ctx).Milliseconds(),
	)
	return ctx
}

func (ec *EinoCallbacks) onStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if !ec.enabled || info == nil {
		return ctx
	}

	ctx, sequence := ec.begin(ctx)
	klog.V(6).InfoS("[EinoCallback] 节点开始执行（流式输入）",
		"sequence", sequence,
		"component", info.Component,
		"type", info.Type,
		"name", info.Name,
	)
	return ctx
}

func (ec *EinoCallbacks) onEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if !ec.enabled || info == nil {
		return ctx
	}

	klog.V(6).InfoS("[EinoCallback] 节点执行完成（流式输出）",
		"component", info.Component,
		"type", info.Type,
		"name", info.Name,
		"duration_ms", ec.finish(ctx).Milliseconds(),
	)
	return ctx
}

// begin 记录开始时间并返回携带开始时间的 ctx
func (ec *EinoCallbacks) begin(ctx context.Context) (context.Context, int) {
	ec.mu.Lock()
	ec.callSequence++
	ec.inflight++
	sequence := ec.callSequence
	ec.mu.Unlock()

	return context.WithValue(ctx, startTimeKey{}, time.Now()), sequence
}

// finish 从 ctx 取出节点开始时间，返回耗时
func (ec *EinoCallbacks) finish(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok {
		return 0
	}

	ec.mu.Lock()
	if ec.inflight > 0 {
		ec.inflight--
	}
	ec.mu.Unlock()
	return time.Since(start)
}

func (ec *EinoCallbacks) logModelInput(input callbacks.CallbackInput, info *callbacks.RunInfo) {
	modelInput := einomodel.ConvCallbackInput(input)
	if modelInput == nil {
		return
	}

	toolNames := make([]string, 0, len(modelInput.Tools))
	for _, t := range modelInput.Tools {
		toolNames = append(toolNames, t.Name)
	}

	klog.V(6).InfoS("[EinoCallback] Model 输入",
		"name", info.Name,
		"message_count", len(modelInput.Messages),
		"tools", toolNames,
	)
	for i, msg := range modelInput.Messages {
		klog.V(8).InfoS("[EinoCallback] Model 输入消息",
			"index", i,
			"role", msg.Role,
			"content", msg.Content,
		)
	}
}

func (ec *EinoCallbacks) logModelOutput(output callbacks.CallbackOutput, info *callbacks.RunInfo) {
	modelOutput := einomodel.ConvCallbackOutput(output)
	if modelOutput == nil || modelOutput.Message == nil {
		return
	}

	klog.V(6).InfoS("[EinoCallback] Model 输出",
		"name", info.Name,
		"content_length", len(modelOutput.Message.Content),
		"tool_call_count", len(modelOutput.Message.ToolCalls),
	)
	for i, tc := range modelOutput.Message.ToolCalls {
		klog.V(6).InfoS("[EinoCallback] Model 请求工具调用",
			"index", i,
			"tool", tc.Function.Name,
			"arguments", tc.Function.Arguments,
		)
	}

	if modelOutput.TokenUsage != nil {
		klog.V(6).InfoS("[EinoCallback] Token 使用",
			"name", info.Name,
			"prompt_tokens", modelOutput.TokenUsage.PromptTokens,
			"completion_tokens", modelOutput.TokenUsage.CompletionTokens,
			"total_tokens", modelOutput.TokenUsage.TotalTokens,
		)
	}
}

func (ec *EinoCallbacks) logToolInput(input callbacks.CallbackInput, info *callbacks.RunInfo) {
	toolInput := tool.ConvCallbackInput(input)
	if toolInput == nil {
		return
	}
	klog.V(6).InfoS("[EinoCallback] Tool 输入参数",
		"name", info.Name,
		"arguments", toolInput.ArgumentsInJSON,
	)
}

func (ec *EinoCallbacks) logToolOutput(output callbacks.CallbackOutput, info *callbacks.RunInfo) {
	toolOutput := tool.ConvCallbackOutput(output)
	if toolOutput == nil {
		return
	}
	klog.V(6).InfoS("[EinoCallback] Tool 输出响应",
		"name", info.Name,
		"response_length", len(toolOutput.Response),
	)
	klog.V(8).InfoS("[EinoCallback] Tool 输出响应详情",
		"name", info.Name,
		"response", toolOutput.Response,
	)
}

// RegisterGlobalCallbacks 注册全局回调处理器
// 注意：应在程序初始化时调用
func RegisterGlobalCallbacks(ec *EinoCallbacks) {
	if ec != nil && ec.enabled {
		callbacks.AppendGlobalHandlers(ec.Handler())
		klog.V(4).InfoS("[EinoCallback] 全局回调处理器已注册")
	}
}
