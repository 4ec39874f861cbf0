package spec

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document is a loaded, dereferenced and validated API description.
type Document struct {
	// API is the OpenAPI v3 view; Swagger 2.0 inputs are converted.
	API *openapi3.T
	// Raw holds the bytes as read, before any conversion. Path and method
	// order are recovered from it because API.Paths is a Go map.
	Raw      []byte
	Location string // absolute file path or URL
	Version  int    // 2 or 3, as detected in Raw
}

// Title returns "<title> <version>" from the info object, or "".
func (d *Document) Title() string {
	if d == nil || d.API == nil || d.API.Info == nil {
		return ""
	}
	title := safeStr(d.API.Info.Title)
	if v := safeStr(d.API.Info.Version); v != "" && title != "" {
		return title + " " + v
	}
	return title
}

func safeStr(s string) string { return strings.TrimSpace(s) }

// HTTP method tokens recognized as routes inside a path item, in the order
// kin-openapi lists them. Matching is case-insensitive.
var httpMethods = []string{
	"get", "put", "post", "delete", "options", "head", "patch", "trace", "connect",
}
