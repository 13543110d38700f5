package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"
	"k8s.io/klog/v2"
)

const WebSearchToolName = "web_search"

// WebSearchTool 基于 Serper 的网页搜索工具
// 实现 Eino 的 tool.InvokableTool 接口
type WebSearchTool struct {
	client     *Client
	baseURL    string
	apiKey     string
	maxResults int
}

// NewWebSearchTool 创建搜索工具
// baseURL: Serper API 地址，如 https://google.serper.dev
func NewWebSearchTool(client *Client, baseURL, apiKey string, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 8
	}
	return &WebSearchTool{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

// Info 返回工具信息
func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: WebSearchToolName,
		Desc: "Search the web for up-to-date medical information. Returns titles, links and snippets of the top results.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search query",
				Required: true,
			},
			"num": {
				Type: schema.Integer,
				Desc: "Number of results to return (optional)",
			},
		}),
	}, nil
}

// InvokableRun 执行搜索
// 搜索失败时把错误作为文本返回给模型，不中断 Agent
func (t *WebSearchTool) InvokableRun(ctx context.Context, arguments string, opts ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
		Num   int    `json:"num"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		klog.Errorf("[WebSearchTool] 参数解析失败: %v", err)
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}

	result, err := t.Search(ctx, args.Query, args.Num)
	if err != nil {
		klog.Warningf("[WebSearchTool] 搜索失败: query=%s, err=%v", args.Query, err)
		return fmt.Sprintf("Error: search failed: %v", err), nil
	}
	return result, nil
}

// Search 调用 Serper 搜索并格式化结果
func (t *WebSearchTool) Search(ctx context.Context, query string, num int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	if num <= 0 || num > t.maxResults {
		num = t.maxResults
	}

	klog.V(6).Infof("[WebSearchTool] 搜索: query=%s, num=%d", query, num)

	payload, err := json.Marshal(map[string]any{"q": query, "num": num})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("search API returned invalid JSON")
	}

	return formatSearchResults(query, body, num), nil
}

func formatSearchResults(query string, body []byte, num int) string {
	parsed := gjson.ParseBytes(body)
	var sb strings.Builder

	if answer := parsed.Get("answerBox.answer").String(); answer != "" {
		sb.WriteString("Answer: " + answer + "\n\n")
	} else if snippet := parsed.Get("answerBox.snippet").String(); snippet != "" {
		sb.WriteString("Answer: " + snippet + "\n\n")
	}

	if kg := parsed.Get("knowledgeGraph"); kg.Exists() {
		title := kg.Get("title").String()
		desc := kg.Get("description").String()
		if title != "" || desc != "" {
			sb.WriteString("Knowledge graph: " + title)
			if desc != "" {
				sb.WriteString(" - " + desc)
			}
			sb.WriteString("\n\n")
		}
	}

	organic := parsed.Get("organic").Array()
	if len(organic) == 0 && sb.Len() == 0 {
		return "No results found for query: " + query
	}

	if len(organic) > 0 {
		sb.WriteString("Results:\n")
	}
	for i, item := range organic {
		if i >= num {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, item.Get("title").String(), item.Get("link").String())
		if snippet := item.Get("snippet").String(); snippet != "" {
			sb.WriteString("   " + snippet + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
