package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"k8s.io/klog/v2"
)

const FetchPageToolName = "fetch_page"

// FetchPageTool 读取网页的可见文本
type FetchPageTool struct {
	client   *Client
	maxBytes int64
	maxChars int
}

// NewFetchPageTool 创建网页读取工具
// maxBytes: 最多读取的响应字节数; maxChars: 返回给模型的最大字符数
func NewFetchPageTool(client *Client, maxBytes int64, maxChars int) *FetchPageTool {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &FetchPageTool{client: client, maxBytes: maxBytes, maxChars: maxChars}
}

// Info 返回工具信息
func (t *FetchPageTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: FetchPageToolName,
		Desc: "Fetch a web page and return its readable text content. Use it to read sources found by web_search.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {
				Type:     schema.String,
				Desc:     "Absolute http(s) URL of the page",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun 执行读取，失败时把错误作为文本返回给模型
func (t *FetchPageTool) InvokableRun(ctx context.Context, arguments string, opts ...tool.Option) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		klog.Errorf("[FetchPageTool] 参数解析失败: %v", err)
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}

	text, err := t.Fetch(ctx, args.URL)
	if err != nil {
		klog.Warningf("[FetchPageTool] 读取失败: url=%s, err=%v", args.URL, err)
		return fmt.Sprintf("Error: failed to fetch %s: %v", args.URL, err), nil
	}
	return text, nil
}

// Fetch 下载页面并提取文本
func (t *FetchPageTool) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	klog.V(6).Infof("[FetchPageTool] 读取网页: url=%s", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("server returned %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	body := io.LimitReader(resp.Body, t.maxBytes)

	var text string
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err = ExtractText(body)
		if err != nil {
			return "", err
		}
	case strings.HasPrefix(mediaType, "text/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read response: %w", err)
		}
		text = strings.TrimSpace(string(data))
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}

	if text == "" {
		return "The page has no readable text.", nil
	}
	return truncateRunes(text, t.maxChars), nil
}

// 这些元素的内容不计入正文，title 单独提取
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Title:    true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
}

// ExtractText 提取 HTML 中的可见文本，块级元素之间换行
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	var title string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Title && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if skippedElements[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	if title != "" {
		lines = append(lines, "Title: "+title)
	}
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func truncateRunes(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars]) + "\n...[truncated]"
}
