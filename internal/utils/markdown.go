package utils

import (
	"strings"

	"k8s.io/klog/v2"
)

const codeFence = "```"

// ExtractMarkdown 去掉包裹整个回答的 ```markdown 代码块
// 只有当代码块包裹全部内容时才剥离，回答中间的代码块保持原样
func ExtractMarkdown(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, codeFence) || !strings.HasSuffix(trimmed, codeFence) || len(trimmed) < 2*len(codeFence) {
		return content
	}

	inner := trimmed[len(codeFence) : len(trimmed)-len(codeFence)]
	newline := strings.IndexByte(inner, '\n')
	if newline < 0 {
		return content
	}

	// 代码块语言标识只允许 markdown / md / 空
	switch strings.ToLower(strings.TrimSpace(inner[:newline])) {
	case "", "markdown", "md":
	default:
		return content
	}

	body := inner[newline+1:]
	if strings.Contains(body, codeFence) {
		// 内部还有代码块，无法确定首尾是一对
		return content
	}

	klog.V(6).Infof("[ExtractMarkdown] 去掉包裹回答的代码块，长度: %d -> %d", len(content), len(body))
	return strings.TrimRight(body, "\r\n")
}
