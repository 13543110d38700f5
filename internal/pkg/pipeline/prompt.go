package pipeline

import (
	"strconv"
	"strings"

	"github.com/medcrew/backend/internal/model"
)

// RenderTask 将患者信息代入阶段任务模板
func RenderTask(spec StageSpec, input model.PatientInput) string {
	r := strings.NewReplacer(
		"{symptoms}", input.Symptoms,
		"{medical_history}", input.HistoryOrDefault(),
		"{gender}", string(input.Gender),
		"{age}", strconv.Itoa(input.Age),
	)
	return r.Replace(spec.Task)
}

// BuildStagePrompt 组装阶段的用户消息：任务、患者基本信息、期望输出以及之前阶段的输出
func BuildStagePrompt(spec StageSpec, prior *Context, input model.PatientInput) string {
	var sb strings.Builder
	sb.WriteString(RenderTask(spec, input))

	sb.WriteString("\n\nPatient: ")
	sb.WriteString(string(input.Gender))
	sb.WriteString(", ")
	sb.WriteString(strconv.Itoa(input.Age))
	sb.WriteString(" years old")

	if spec.ExpectedOutput != "" {
		sb.WriteString("\n\nExpected output: ")
		sb.WriteString(spec.ExpectedOutput)
	}

	outputs := prior.Outputs()
	if len(outputs) > 0 {
		sb.WriteString("\n\nContext from previous stages:")
		for _, o := range outputs {
			sb.WriteString("\n\n### ")
			sb.WriteString(o.StageID)
			sb.WriteString("\n")
			sb.WriteString(o.Text)
		}
	}
	return sb.String()
}

// BuildInstruction 组装阶段 Agent 的系统指令
func BuildInstruction(spec StageSpec) string {
	var sb strings.Builder
	sb.WriteString("You are a ")
	sb.WriteString(spec.Role)
	sb.WriteString(".\n\nGoal: ")
	sb.WriteString(spec.Goal)
	if spec.Backstory != "" {
		sb.WriteString("\n\nBackground: ")
		sb.WriteString(spec.Backstory)
	}
	return sb.String()
}
