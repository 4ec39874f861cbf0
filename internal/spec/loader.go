package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs permits file refs for documents fetched over HTTP. Local
	// roots always allow them so multi-file specs work.
	AllowFileRefs bool
	// Warnings receives non-fatal problems; nil discards them.
	Warnings io.Writer
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Warnings:    os.Stderr,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithWarnings(w io.Writer) Option        { return func(s *Settings) { s.Warnings = w } }

// Load reads, dereferences and validates an API description. Swagger 2.0
// input is converted to OpenAPI v3 via openapi2conv.
//
// input may be a filesystem path or an http/https URL. file:// URLs are
// rejected.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	raw, location, isFile, err := readInput(ctx, input, settings)
	if err != nil {
		return nil, err
	}

	version, err := detectSpecVersion(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	doc := &Document{Raw: raw, Location: location, Version: version}
	loader := newLoader(settings, isFile)
	base := locationURL(location, isFile)

	switch version {
	case 3:
		api, err := loader.LoadFromDataWithPath(raw, base)
		if err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		doc.API = api
	case 2:
		fixed := raw
		if out, changed, _ := preprocessV2ForCompatibility(raw); changed {
			fixed = out
		}
		api, err := convertV2ToV3(fixed)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
		if err := loader.ResolveRefsIn(api, base); err != nil {
			warnf(settings, "failed to resolve refs after conversion: %v", err)
		}
		doc.API = api
	default:
		return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: location}
	}

	if err := doc.API.Validate(ctx); err != nil {
		if !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, location)
		}
		warnf(settings, "proceeding despite validation error: %v", err)
	}
	return doc, nil
}

// readInput returns the raw bytes, the normalized location and whether the
// input is a local file.
func readInput(ctx context.Context, input string, settings Settings) ([]byte, string, bool, error) {
	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, "", false, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, "", false, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, "", false, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return raw, input, false, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, "", false, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", false, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return raw, abs, true, nil
}

func locationURL(location string, isFile bool) *url.URL {
	if isFile {
		return &url.URL{Path: filepath.ToSlash(location)}
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil
	}
	return u
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	// kin-openapi v0.116 has no direct loader for v2; unmarshal then ToV3.
	var v2 openapi2.T
	if err := yaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce performs one GET. retry reports whether the failure is
// transient (network error, 5xx or 429).
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "unmarshal") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where a
// best-effort generation can still proceed (e.g., unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}

func warnf(settings Settings, format string, args ...any) {
	if settings.Warnings == nil {
		return
	}
	fmt.Fprintf(settings.Warnings, "[WARN] "+format+"\n", args...)
}
