package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForFormulaInjection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "=SUM(A1)", want: "'=SUM(A1)"},
		{in: "  +1", want: "'  +1"},
		{in: "@cmd", want: "'@cmd"},
		{in: "APPLE INC", want: "APPLE INC"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeForFormulaInjection(tt.in))
	}
	assert.Equal(t, "'-x", CleanText("-x\x00"))
}

func TestValidateFileContent(t *testing.T) {
	_, err := ValidateFileContent([]byte("Date,Time,Product\n01-02-2024,10:00,APPLE\n"))
	assert.NoError(t, err)

	ct, err := ValidateFileContent([]byte(`<?xml version="1.0"?><FlexQueryResponse/>`))
	assert.NoError(t, err)
	assert.Equal(t, "text/xml", ct)

	_, err = ValidateFileContent([]byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x00})
	assert.Error(t, err)
}

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType(""))
	assert.NoError(t, ValidateClientContentType("text/csv; charset=utf-8"))
	assert.NoError(t, ValidateClientContentType("application/xml"))
	assert.Error(t, ValidateClientContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Error(t, ValidateClientContentType("image/png"))
}
