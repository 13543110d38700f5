package docx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_RoundTrip(t *testing.T) {
	for _, text := range []string{"", "Treatment plan", "多语言 ✓", strings.Repeat("z", 1<<16)} {
		doc, err := NewExporter(testHeading).Export(text)
		require.NoError(t, err)

		d := NewDownload(doc, "diagnosis_and_treatment_plan.docx")
		assert.Equal(t, "diagnosis_and_treatment_plan.docx", d.Filename)
		assert.Equal(t, MIMEType, d.MIMEType)

		data, err := d.Bytes()
		require.NoError(t, err)
		assert.Equal(t, doc.Data, data, "解码后应与原始文档字节一致")
	}
}

func TestDownload_DataURI(t *testing.T) {
	doc, err := NewExporter(testHeading).Export("x")
	require.NoError(t, err)

	d := NewDownload(doc, "plan.docx")
	uri := d.DataURI()
	assert.True(t, strings.HasPrefix(uri, "data:"+MIMEType+";base64,"))
	assert.Equal(t, d.Base64, strings.TrimPrefix(uri, "data:"+MIMEType+";base64,"))
}

func TestDownload_BytesInvalidPayload(t *testing.T) {
	d := &Download{Base64: "%%%"}
	_, err := d.Bytes()
	assert.Error(t, err)
}
