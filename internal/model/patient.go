package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Gender 患者性别
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Genders 表单中可选的性别，按展示顺序
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

const (
	MinAge     = 0
	MaxAge     = 120
	DefaultAge = 25
)

// PatientInput 一次提交的患者信息，在一次流水线执行期间不可变
// binding 标签同时供 gin 绑定和 Validate 使用
type PatientInput struct {
	Gender         Gender `form:"gender" json:"gender" binding:"required,oneof=Male Female Other"`
	Age            int    `form:"age,default=25" json:"age" binding:"min=0,max=120"`
	Symptoms       string `form:"symptoms" json:"symptoms" binding:"required,notblank"`
	MedicalHistory string `form:"medical_history" json:"medical_history"`
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 患者信息校验失败
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid patient input: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator 返回使用 binding 标签的校验器
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.SetTagName("binding")
		RegisterValidations(validate)
	})
	return validate
}

// RegisterValidations 注册自定义校验规则，gin 的默认校验器也需要调用
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate 校验患者信息
func (p PatientInput) Validate() error {
	err := Validator().Struct(p)
	if err == nil {
		return nil
	}
	return TranslateValidationError(err)
}

// TranslateValidationError 将 validator 错误转换为 ValidationError
// 非校验类错误（如表单类型转换失败）原样包装
func TranslateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "form", Message: err.Error()}}}
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldName(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldName(structField string) string {
	switch structField {
	case "MedicalHistory":
		return "medical_history"
	default:
		return strings.ToLower(structField)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		return fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// HistoryOrDefault 病史为空时返回占位文本
func (p PatientInput) HistoryOrDefault() string {
	if strings.TrimSpace(p.MedicalHistory) == "" {
		return "none reported"
	}
	return p.MedicalHistory
}
