package embed

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// GetFrontendFS 获取前端文件系统（用于嵌入）
func GetFrontendFS() fs.FS {
	return embeddedFiles
}

// Templates 解析嵌入的页面模板
func Templates() *template.Template {
	return template.Must(template.ParseFS(embeddedFiles, "templates/*.html"))
}

// SetupRouter 设置页面模板与静态文件路由
func SetupRouter(r *gin.Engine) {
	// 添加 gzip 压缩中间件，使用最佳压缩级别
	r.Use(gzip.Gzip(gzip.BestCompression))

	r.SetHTMLTemplate(Templates())

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err == nil {
		r.GET("/static/*filepath", gin.WrapH(http.StripPrefix("/static", http.FileServer(http.FS(staticFS)))))
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	r.NoRoute(func(c *gin.Context) {
		// 对于API请求，返回JSON
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Redirect(http.StatusFound, "/")
	})
}
