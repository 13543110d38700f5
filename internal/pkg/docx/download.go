package docx

import (
	"encoding/base64"
	"fmt"
)

// Download 可嵌入 HTML 响应的文档表示
type Download struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// NewDownload 将文档编码为 base64 下载表示
func NewDownload(doc *Document, filename string) *Download {
	return &Download{
		Filename: filename,
		MIMEType: MIMEType,
		Base64:   base64.StdEncoding.EncodeToString(doc.Data),
	}
}

// DataURI 返回 data: URI，配合 <a download="..."> 使用
func (d *Download) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", d.MIMEType, d.Base64)
}

// Bytes 解码为原始文档字节
func (d *Download) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(d.Base64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode download payload: %w", err)
	}
	return data, nil
}
