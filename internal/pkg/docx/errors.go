package docx

import (
	"errors"
	"fmt"
)

var (
	// ErrUnencodableText 文本包含 XML 无法表示的字符
	ErrUnencodableText = errors.New("text contains characters that cannot be encoded in a document")

	// ErrInvalidDocument 不是可识别的 docx 文档
	ErrInvalidDocument = errors.New("invalid docx document")
)

// ExportError 文档构建失败
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
