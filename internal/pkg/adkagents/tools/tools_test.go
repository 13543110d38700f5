package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serperResponse = `{
  "answerBox": {"answer": "Influenza is a viral infection."},
  "knowledgeGraph": {"title": "Influenza", "description": "A contagious respiratory illness."},
  "organic": [
    {"title": "Flu symptoms", "link": "https://example.org/flu", "snippet": "Fever, cough and headache."},
    {"title": "Diabetes and flu", "link": "https://example.org/diabetes-flu", "snippet": "Monitor blood sugar."},
    {"title": "Third", "link": "https://example.org/third"}
  ]
}`

func TestWebSearchTool_Search(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("X-API-KEY")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(serperResponse))
	}))
	defer server.Close()

	tool := NewWebSearchTool(NewClient(5*time.Second), server.URL+"/", "serper-key", 2)
	result, err := tool.Search(context.Background(), "flu with diabetes", 0)
	require.NoError(t, err)

	assert.Equal(t, "serper-key", gotKey)
	assert.Equal(t, "flu with diabetes", gotBody["q"])
	assert.EqualValues(t, 2, gotBody["num"])

	assert.Contains(t, result, "Answer: Influenza is a viral infection.")
	assert.Contains(t, result, "Knowledge graph: Influenza - A contagious respiratory illness.")
	assert.Contains(t, result, "1. Flu symptoms\n   https://example.org/flu\n   Fever, cough and headache.")
	assert.Contains(t, result, "2. Diabetes and flu")
	assert.NotContains(t, result, "3. Third", "结果数量受 maxResults 限制")
}

func TestWebSearchTool_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic": []}`))
	}))
	defer server.Close()

	tool := NewWebSearchTool(NewClient(5*time.Second), server.URL, "k", 5)
	result, err := tool.Search(context.Background(), "nothing", 3)
	require.NoError(t, err)
	assert.Equal(t, "No results found for query: nothing", result)
}

func TestWebSearchTool_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer server.Close()

	tool := NewWebSearchTool(NewClient(5*time.Second), server.URL, "k", 5)

	_, err := tool.Search(context.Background(), "  ", 1)
	assert.Error(t, err, "空查询应报错")

	_, err = tool.Search(context.Background(), "flu", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	// InvokableRun 把错误交给模型而不是中断 Agent
	out, err := tool.InvokableRun(context.Background(), `{"query":"flu"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: search failed"))

	out, err = tool.InvokableRun(context.Background(), `not json`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: invalid arguments"))
}

func TestWebSearchTool_Info(t *testing.T) {
	info, err := NewWebSearchTool(NewClient(time.Second), "http://x", "k", 0).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WebSearchToolName, info.Name)
	assert.NotNil(t, info.ParamsOneOf)
}

const testPage = `<!DOCTYPE html>
<html>
<head><title>Flu Overview</title><style>body{color:red}</style><script>var x = 1;</script></head>
<body>
  <h1>Influenza</h1>
  <p>Common   symptoms include <b>fever</b>, cough and headache.</p>
  <noscript>enable js</noscript>
  <ul><li>Rest</li><li>Fluids</li></ul>
</body>
</html>`

func TestFetchPageTool_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	tool := NewFetchPageTool(NewClient(5*time.Second), 1<<20, 10000)
	text, err := tool.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Title: Flu Overview")
	assert.Contains(t, text, "Influenza")
	assert.Contains(t, text, "Common symptoms include fever , cough and headache.")
	assert.Contains(t, text, "Rest\nFluids")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "enable js")
}

func TestFetchPageTool_Truncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("é", 100)))
	}))
	defer server.Close()

	tool := NewFetchPageTool(NewClient(5*time.Second), 1<<20, 10)
	text, err := tool.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10)+"\n...[truncated]", text)
}

func TestFetchPageTool_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/binary":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		}
	}))
	defer server.Close()

	tool := NewFetchPageTool(NewClient(5*time.Second), 0, 0)

	_, err := tool.Fetch(context.Background(), "file:///etc/passwd")
	assert.Error(t, err, "只允许 http(s)")

	_, err = tool.Fetch(context.Background(), server.URL+"/missing")
	assert.Error(t, err)

	_, err = tool.Fetch(context.Background(), server.URL+"/binary")
	assert.Error(t, err)

	out, err := tool.InvokableRun(context.Background(), `{"url":"ftp://example.org"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Error: failed to fetch")
}

func TestExtractText_Empty(t *testing.T) {
	text, err := ExtractText(strings.NewReader("<html><body><script>x()</script></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
