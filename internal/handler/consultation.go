package handler

import (
	"context"
	"errors"
	"html/template"
	"math"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/medcrew/backend/internal/model"
	"github.com/medcrew/backend/internal/pkg/adkagents"
	"github.com/medcrew/backend/internal/pkg/docx"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/service"
	"github.com/medcrew/backend/internal/subscriber"
	"k8s.io/klog/v2"
)

// pageTitle 页面标题，文档标题由 export.heading 配置
const pageTitle = "Healthcare AI Assistant"

var registerOnce sync.Once

// registerValidations gin 绑定时同样需要自定义校验规则
func registerValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			model.RegisterValidations(v)
		}
	})
}

type statsProvider interface {
	Stats() subscriber.PipelineStats
}

type ConsultationHandler struct {
	service *service.ConsultationService
	stats   statsProvider
}

// NewConsultationHandler 创建问诊处理器
// stats 可为 nil
func NewConsultationHandler(service *service.ConsultationService, stats statsProvider) *ConsultationHandler {
	registerValidations()
	return &ConsultationHandler{
		service: service,
		stats:   stats,
	}
}

// pageData 页面模板数据
type pageData struct {
	Title       string
	Genders     []model.Gender
	MinAge      int
	MaxAge      int
	Input       model.PatientInput
	Error       string
	FieldErrors []model.FieldError
	Result      string
	Diagnosis   string
	DownloadURI template.URL
	Filename    string
	ExportError string
}

func newPageData(input model.PatientInput) pageData {
	return pageData{
		Title:   pageTitle,
		Genders: model.Genders,
		MinAge:  model.MinAge,
		MaxAge:  model.MaxAge,
		Input:   input,
	}
}

// Index 问诊表单页
func (h *ConsultationHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", newPageData(model.PatientInput{
		Gender: model.GenderMale,
		Age:    model.DefaultAge,
	}))
}

// ConsultForm 处理表单提交，失败信息显示在结果区域，表单保留输入
func (h *ConsultationHandler) ConsultForm(c *gin.Context) {
	var input model.PatientInput
	if err := c.ShouldBind(&input); err != nil {
		data := newPageData(input)
		h.setError(&data, model.TranslateValidationError(err))
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	}

	data := newPageData(input)
	consultation, err := h.service.Consult(c.Request.Context(), input)
	if err != nil {
		h.setError(&data, err)
		c.HTML(statusFor(c, err), "index.html", data)
		return
	}

	data.Result = consultation.Result
	data.Diagnosis = consultation.Diagnosis
	data.ExportError = consultation.ExportError
	if consultation.Download != nil {
		// data: URI 需要显式标记为可信，否则 html/template 会替换为 #ZgotmplZ
		data.DownloadURI = template.URL(consultation.Download.DataURI())
		data.Filename = consultation.Download.Filename
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (h *ConsultationHandler) setError(data *pageData, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		data.Error = "Please correct the highlighted fields."
		data.FieldErrors = validationErr.Fields
		return
	}
	data.Error = err.Error()
}

// Create JSON API：执行一次问诊
// 请求中缺少 age 时使用默认年龄
func (h *ConsultationHandler) Create(c *gin.Context) {
	input := model.PatientInput{Age: model.DefaultAge}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.writeError(c, model.TranslateValidationError(err))
		return
	}

	consultation, err := h.service.Consult(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, consultation)
}

func (h *ConsultationHandler) writeError(c *gin.Context, err error) {
	status := statusFor(c, err)

	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(status, gin.H{"error": err.Error(), "fields": validationErr.Fields})
		return
	}

	var stageErr *pipeline.StageExecutionError
	if errors.As(err, &stageErr) {
		c.JSON(status, gin.H{"error": err.Error(), "stage": stageErr.StageID})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor 错误到 HTTP 状态码的映射，速率限制时附带 Retry-After
func statusFor(c *gin.Context, err error) int {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var rateErr *adkagents.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
		}
		return http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}

	var stageErr *pipeline.StageExecutionError
	if errors.As(err, &stageErr) {
		return http.StatusBadGateway
	}

	klog.Errorf("[ConsultationHandler] 未预期的错误: %v", err)
	return http.StatusInternalServerError
}

// ExportRequest 文档导出请求
type ExportRequest struct {
	Text *string `json:"text" binding:"required"`
}

// Export 将任意文本导出为 docx 附件
func (h *ConsultationHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	download, err := h.service.Export(*req.Text)
	if err != nil {
		if errors.Is(err, docx.ErrUnencodableText) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := download.Bytes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}))
	c.Data(http.StatusOK, download.MIMEType, data)
}

// Stages 获取流水线阶段配置
func (h *ConsultationHandler) Stages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": h.service.Stages()})
}

// Health 健康检查
func (h *ConsultationHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.stats != nil {
		resp["pipeline"] = h.stats.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
