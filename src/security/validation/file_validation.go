package validation

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/taxfolio/declaration/src/logger"
)

// AllowedClientContentTypes lists client-declared MIME types accepted for statements.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
	"text/xml":                 true,
	"application/xml":          true,
	"application/octet-stream": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false,
}

// ValidateClientContentType checks the Content-Type declared for an uploaded part.
// An empty type is accepted; the content check decides.
func ValidateClientContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if allowed, exists := AllowedClientContentTypes[ct]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for statement upload", contentType)
	}
	return nil
}

// ValidateFileContent sniffs the first bytes of a statement and rejects
// anything that is not text (CSV or XML).
func ValidateFileContent(data []byte) (string, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected := http.DetectContentType(head)
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	allowedDetectedTypes := map[string]bool{
		"text/plain":      true,
		"text/csv":        true,
		"text/xml":        true,
		"application/xml": true,
	}
	if !allowedDetectedTypes[detected] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detected)
		return detected, fmt.Errorf("detected file content type '%s' is not a text statement", detected)
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return detected, fmt.Errorf("statement contains NUL bytes")
	}
	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detected)
	return detected, nil
}
