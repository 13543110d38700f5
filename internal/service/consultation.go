package service

import (
	"context"
	"strings"

	"github.com/medcrew/backend/config"
	"github.com/medcrew/backend/internal/model"
	"github.com/medcrew/backend/internal/pkg/docx"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/pkg/stages"
	"k8s.io/klog/v2"
)

// Consultation 一次问诊的结果
// 导出失败不影响文本结果，ExportError 记录失败原因
type Consultation struct {
	RunID       string             `json:"run_id"`
	Input       model.PatientInput `json:"input"`
	Diagnosis   string             `json:"diagnosis,omitempty"`
	Result      string             `json:"result"`
	Stages      *pipeline.Context  `json:"stages"`
	Download    *docx.Download     `json:"download,omitempty"`
	ExportError string             `json:"export_error,omitempty"`
}

type ConsultationService struct {
	cfg      *config.Config
	runner   *pipeline.Runner
	stages   []pipeline.StageSpec
	exporter *docx.Exporter
}

// NewConsultationService 创建问诊服务
// stageSpecs 为空时使用内置的诊断、治疗两个阶段
func NewConsultationService(cfg *config.Config, runner *pipeline.Runner, stageSpecs []pipeline.StageSpec) *ConsultationService {
	if len(stageSpecs) == 0 {
		stageSpecs = stages.Default()
	}
	return &ConsultationService{
		cfg:      cfg,
		runner:   runner,
		stages:   stageSpecs,
		exporter: docx.NewExporter(cfg.Export.Heading),
	}
}

// Consult 校验输入，执行流水线并导出文档
// 输入非法返回 *model.ValidationError，阶段失败返回 *pipeline.StageExecutionError
func (s *ConsultationService) Consult(ctx context.Context, input model.PatientInput) (*Consultation, error) {
	input.Symptoms = strings.TrimSpace(input.Symptoms)
	input.MedicalHistory = strings.TrimSpace(input.MedicalHistory)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	klog.V(6).Infof("[ConsultationService.Consult] 开始问诊: gender=%s, age=%d", input.Gender, input.Age)
	result, err := s.runner.Run(ctx, input, s.stages)
	if err != nil {
		return nil, err
	}

	consultation := &Consultation{
		RunID:  result.RunID,
		Input:  input,
		Result: result.Text,
		Stages: result.Context,
	}
	if diagnosis, ok := result.Context.Get(stages.DiagnosisID); ok {
		consultation.Diagnosis = diagnosis
	}

	download, err := s.Export(result.Text)
	if err != nil {
		klog.Errorf("[ConsultationService.Consult] 文档导出失败: runID=%s, err=%v", result.RunID, err)
		consultation.ExportError = err.Error()
		return consultation, nil
	}
	consultation.Download = download

	klog.V(6).Infof("[ConsultationService.Consult] 问诊完成: runID=%s, 结果长度=%d", result.RunID, len(result.Text))
	return consultation, nil
}

// Export 将文本导出为可下载的 docx
func (s *ConsultationService) Export(text string) (*docx.Download, error) {
	doc, err := s.exporter.Export(text)
	if err != nil {
		return nil, err
	}
	return docx.NewDownload(doc, s.cfg.Export.Filename), nil
}

// Stages 返回流水线阶段配置的副本
func (s *ConsultationService) Stages() []pipeline.StageSpec {
	out := make([]pipeline.StageSpec, len(s.stages))
	copy(out, s.stages)
	return out
}
