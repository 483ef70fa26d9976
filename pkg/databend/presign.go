package databend

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Presigned is a parsed PRESIGN UPLOAD result.
type Presigned struct {
	Method  string
	Headers map[string]string
	URL     string
}

// ParsePresign reads a (method, headers, url) row returned by PRESIGN
// UPLOAD. Headers may be rendered with single quotes.
func ParsePresign(row []string) (Presigned, error) {
	if len(row) < 3 {
		return Presigned{}, fmt.Errorf("presign: expected 3 columns, got %d", len(row))
	}

	headers := map[string]string{}
	blob := strings.TrimSpace(strings.ReplaceAll(row[1], "'", "\""))
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &headers); err != nil {
			return Presigned{}, fmt.Errorf("presign: decode headers %q: %w", row[1], err)
		}
	}
	if row[2] == "" {
		return Presigned{}, fmt.Errorf("presign: empty url")
	}

	method := strings.ToUpper(strings.TrimSpace(row[0]))
	if method == "" {
		method = "PUT"
	}
	return Presigned{Method: method, Headers: headers, URL: row[2]}, nil
}
