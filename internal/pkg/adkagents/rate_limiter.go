package adkagents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

var rateLimitKeywords = []string{
	"429",
	"rate limit",
	"quota exceeded",
	"too many requests",
	"rate-limited",
	"request rate exceeded",
}

var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)try again in (\d+(?:\.\d+)?)(ms|s|m|h)`),
	regexp.MustCompile(`(?i)retry after (\d+(?:\.\d+)?)(ms|s|m|h)`),
}

// RateLimitError 模型服务返回的速率限制错误
// RetryAfter 为 0 表示服务端没有给出等待时间
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("language model rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("language model rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError 判断错误是否为 Rate Limit 错误
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, keyword := range rateLimitKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// ParseRetryAfter 从错误中解析等待时长，例如 "Try again in 20s"、"Retry after 1m"
func ParseRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}

	for _, re := range retryAfterPatterns {
		matches := re.FindStringSubmatch(err.Error())
		if len(matches) < 3 {
			continue
		}
		value, parseErr := strconv.ParseFloat(matches[1], 64)
		if parseErr != nil {
			continue
		}
		var unit time.Duration
		switch strings.ToLower(matches[2]) {
		case "ms":
			unit = time.Millisecond
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		}
		return time.Duration(value * float64(unit))
	}
	return 0
}

// classifyError 把速率限制错误转换为 RateLimitError，其他错误原样返回
func classifyError(name string, err error) error {
	if err == nil || !IsRateLimitError(err) {
		return err
	}
	retryAfter := ParseRetryAfter(err)
	klog.Warningf("[RateLimiter] %s 触发速率限制: retryAfter=%s, err=%v", name, retryAfter, err)
	return &RateLimitError{RetryAfter: retryAfter, Err: err}
}

// RateLimitedChatModel 识别模型调用的速率限制错误，不做重试
type RateLimitedChatModel struct {
	inner einomodel.ToolCallingChatModel
}

// NewRateLimitedChatModel 包装 ChatModel
func NewRateLimitedChatModel(inner einomodel.ToolCallingChatModel) *RateLimitedChatModel {
	return &RateLimitedChatModel{inner: inner}
}

// Generate 实现 model.BaseChatModel 接口
func (m *RateLimitedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	out, err := m.inner.Generate(ctx, input, opts...)
	if err != nil {
		return nil, classifyError("Generate", err)
	}
	return out, nil
}

// Stream 实现 model.BaseChatModel 接口，只处理建立流之前的错误
func (m *RateLimitedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.inner.Stream(ctx, input, opts...)
	if err != nil {
		return nil, classifyError("Stream", err)
	}
	return out, nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return NewRateLimitedChatModel(inner), nil
}
