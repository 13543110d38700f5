package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
	"unicode/utf8"

	"k8s.io/klog/v2"
)

// 固定的 zip 条目时间，保证相同文本生成字节一致的文档
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Document 内存中的 docx 文档
type Document struct {
	Heading string
	Data    []byte
}

// Exporter 将文本导出为单标题、单段落的 docx 文档
type Exporter struct {
	heading string
}

// NewExporter 创建导出器
func NewExporter(heading string) *Exporter {
	return &Exporter{heading: heading}
}

// Export 生成文档；文本不做截断或分段
func (e *Exporter) Export(text string) (*Document, error) {
	if err := checkEncodable(e.heading); err != nil {
		return nil, &ExportError{Err: fmt.Errorf("heading: %w", err)}
	}
	if err := checkEncodable(text); err != nil {
		return nil, &ExportError{Err: err}
	}

	var body bytes.Buffer
	writeDocumentXML(&body, e.heading, text)

	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	parts := []struct {
		name    string
		content []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{documentPart, body.Bytes()},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/styles.xml", []byte(stylesXML)},
	}
	for _, part := range parts {
		f, err := zipWriter.CreateHeader(&zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: entryTime,
		})
		if err != nil {
			return nil, &ExportError{Err: err}
		}
		if _, err := f.Write(part.content); err != nil {
			return nil, &ExportError{Err: err}
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, &ExportError{Err: err}
	}

	klog.V(6).Infof("[Exporter.Export] 文档生成完成: textLength=%d, size=%d", len(text), buf.Len())
	return &Document{Heading: e.heading, Data: buf.Bytes()}, nil
}

// checkEncodable 检查文本是否为合法 UTF-8 且只包含 XML 1.0 允许的字符
func checkEncodable(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid UTF-8", ErrUnencodableText)
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: %U at byte %d", ErrUnencodableText, r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

func writeDocumentXML(buf *bytes.Buffer, heading, text string) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	buf.WriteString(`<w:document xmlns:w="` + wordNamespace + `"><w:body>`)

	buf.WriteString(`<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr>`)
	writeRun(buf, heading)
	buf.WriteString(`</w:p>`)

	buf.WriteString(`<w:p>`)
	writeRun(buf, text)
	buf.WriteString(`</w:p>`)

	buf.WriteString(`<w:sectPr/></w:body></w:document>`)
}

// writeRun 换行、制表符、回车分别写为 w:br、w:tab、w:cr
func writeRun(buf *bytes.Buffer, text string) {
	buf.WriteString(`<w:r>`)
	start := 0
	flush := func(end int) {
		if end > start {
			buf.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(buf, []byte(text[start:end]))
			buf.WriteString(`</w:t>`)
		}
	}
	for i := 0; i < len(text); i++ {
		var tag string
		switch text[i] {
		case '\n':
			tag = `<w:br/>`
		case '\t':
			tag = `<w:tab/>`
		case '\r':
			tag = `<w:cr/>`
		default:
			continue
		}
		flush(i)
		buf.WriteString(tag)
		start = i + 1
	}
	flush(len(text))
	buf.WriteString(`</w:r>`)
}
