package datanorm

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var extensionKinds = map[string]FileKind{
	".csv":  KindCSV,
	".xlsx": KindXLSX,
	".xls":  KindXLS,
}

var mimeKinds = map[string]FileKind{
	"text/csv":                    KindCSV,
	"application/csv":             KindCSV,
	"text/comma-separated-values": KindCSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": KindXLSX,
	"application/vnd.ms-excel": KindXLS,
}

// DetectKind classifies an upload from its file name, falling back to the
// declared content type when the name has no extension. File content is
// never sniffed.
func DetectKind(fileName, contentType string) (FileKind, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if ext != "" {
		if k, ok := extensionKinds[ext]; ok {
			return k, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if k, ok := mimeKinds[strings.ToLower(mt)]; ok {
				return k, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileName)
}

// ParseKind validates a declared kind string.
func ParseKind(s string) (FileKind, error) {
	k := FileKind(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch k {
	case KindCSV, KindXLSX, KindXLS:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
