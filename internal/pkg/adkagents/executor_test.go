package adkagents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/medcrew/backend/internal/model"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/pkg/stages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel 按调用记录输入，由 generate 决定输出
type fakeChatModel struct {
	mu       sync.Mutex
	generate func(input []*schema.Message) (*schema.Message, error)
	inputs   [][]*schema.Message
	tools    []*schema.ToolInfo
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	return f.generate(input)
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.mu.Lock()
	f.tools = tools
	f.mu.Unlock()
	return f, nil
}

func (f *fakeChatModel) lastUserContent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	msgs := f.inputs[len(f.inputs)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

func replyWith(text string) func([]*schema.Message) (*schema.Message, error) {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

// fakeTool 只用于校验工具绑定
type fakeTool struct {
	name string
}

func (t *fakeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: t.name, Desc: "fake tool"}, nil
}

func (t *fakeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return "ok", nil
}

var testPatient = model.PatientInput{
	Gender:         model.GenderFemale,
	Age:            34,
	Symptoms:       "fever, cough",
	MedicalHistory: "asthma",
}

func testBinder() *ToolBinder {
	return NewToolBinder().
		Register(pipeline.CapabilityWebSearch, &fakeTool{name: "web_search"}).
		Register(pipeline.CapabilityFetchPage, &fakeTool{name: "fetch_page"})
}

func TestExecutor_ExecuteStage(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("Likely influenza.")}
	executor := NewExecutor(fake, testBinder(), 5)

	text, err := executor.ExecuteStage(context.Background(), stages.Diagnosis(), pipeline.NewContext(), testPatient)
	require.NoError(t, err)
	assert.Equal(t, "Likely influenza.", text)

	prompt := fake.lastUserContent()
	assert.Contains(t, prompt, "fever, cough")
	assert.Contains(t, prompt, "asthma")
	assert.Contains(t, prompt, "34")
	assert.NotContains(t, prompt, "Context from previous stages")

	names := make([]string, 0, len(fake.tools))
	for _, info := range fake.tools {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "web_search")
	assert.Contains(t, names, "fetch_page")
}

func TestExecutor_TreatmentSeesDiagnosis(t *testing.T) {
	fake := &fakeChatModel{generate: func(input []*schema.Message) (*schema.Message, error) {
		for _, msg := range input {
			if msg.Role == schema.User && strings.Contains(msg.Content, "Context from previous stages") {
				return schema.AssistantMessage("Rest, fluids and oseltamivir.", nil), nil
			}
		}
		return schema.AssistantMessage("Likely influenza.", nil), nil
	}}

	runner := pipeline.NewRunner(NewExecutor(fake, testBinder(), 5), nil)
	result, err := runner.Run(context.Background(), testPatient, stages.Default())
	require.NoError(t, err)

	assert.Equal(t, "Rest, fluids and oseltamivir.", result.Text)
	diagnosis, ok := result.Context.Get(stages.DiagnosisID)
	require.True(t, ok)
	assert.Equal(t, "Likely influenza.", diagnosis)

	prompt := fake.lastUserContent()
	assert.Contains(t, prompt, "### "+stages.DiagnosisID+"\nLikely influenza.")
}

func TestExecutor_StripsMarkdownFence(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("```markdown\n1. Influenza\n2. Common cold\n```")}
	executor := NewExecutor(fake, testBinder(), 5)

	text, err := executor.ExecuteStage(context.Background(), stages.Diagnosis(), nil, testPatient)
	require.NoError(t, err)
	assert.Equal(t, "1. Influenza\n2. Common cold", text)
}

func TestExecutor_ModelError(t *testing.T) {
	fake := &fakeChatModel{generate: func([]*schema.Message) (*schema.Message, error) {
		return nil, errors.New("upstream unavailable")
	}}
	executor := NewExecutor(fake, testBinder(), 5)

	_, err := executor.ExecuteStage(context.Background(), stages.Diagnosis(), nil, testPatient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestExecutor_EmptyAnswer(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("")}
	executor := NewExecutor(fake, testBinder(), 5)

	_, err := executor.ExecuteStage(context.Background(), stages.Diagnosis(), nil, testPatient)
	assert.ErrorIs(t, err, ErrNoFinalAnswer)
}

func TestExecutor_UnknownCapability(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("x")}
	executor := NewExecutor(fake, NewToolBinder(), 5)

	_, err := executor.ExecuteStage(context.Background(), stages.Diagnosis(), nil, testPatient)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Empty(t, fake.inputs, "工具绑定失败时不应调用模型")
}

func TestExecutor_CreateStageAgent(t *testing.T) {
	executor := NewExecutor(&fakeChatModel{generate: replyWith("x")}, testBinder(), 0)
	assert.Equal(t, defaultMaxIterations, executor.maxIterations)

	agent, err := executor.CreateStageAgent(context.Background(), stages.Treatment())
	require.NoError(t, err)
	assert.Equal(t, stages.TreatmentID, agent.Name(context.Background()))
	assert.Equal(t, stages.Treatment().Goal, agent.Description(context.Background()))
}

func TestToolBinder_Bind(t *testing.T) {
	binder := testBinder()

	tools, err := binder.Bind(pipeline.StageSpec{
		ID:           "s",
		Capabilities: []pipeline.Capability{pipeline.CapabilityFetchPage, pipeline.CapabilityWebSearch, pipeline.CapabilityFetchPage},
	})
	require.NoError(t, err)
	require.Len(t, tools, 2, "重复能力只绑定一次")

	info, err := tools[0].Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetch_page", info.Name)

	tools, err = binder.Bind(pipeline.StageSpec{ID: "none"})
	require.NoError(t, err)
	assert.Empty(t, tools)

	_, err = binder.Bind(pipeline.StageSpec{ID: "s", Capabilities: []pipeline.Capability{"teleport"}})
	assert.ErrorIs(t, err, ErrToolNotFound)
}
