package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/openapi2lua/internal/pathtree"
)

// RouteOption configures which operations become routes.
type RouteOption func(*routeConfig)

type routeConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[string]struct{}
	pathRes     []*regexp.Regexp
	err         error
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) RouteOption {
	return func(c *routeConfig) {
		c.includeTags = addTags(c.includeTags, tags)
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) RouteOption {
	return func(c *routeConfig) {
		c.excludeTags = addTags(c.excludeTags, tags)
	}
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only operations using one of the given HTTP methods
// (case-insensitive).
func WithMethods(methods []string) RouteOption {
	return func(c *routeConfig) {
		for _, m := range methods {
			m = strings.ToLower(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if c.methods == nil {
				c.methods = make(map[string]struct{}, len(methods))
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only paths matching at least one of the regular
// expressions. An invalid pattern makes Routes fail with an InputError.
func WithPathPatterns(patterns []string) RouteOption {
	return func(c *routeConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				if c.err == nil {
					c.err = &SpecError{Code: InputError, Message: fmt.Sprintf("spec: invalid path pattern %q: %v", p, err), Cause: err}
				}
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// Routes flattens the document into the ordered route list consumed by
// pathtree.Build. Paths and methods keep the order of the source document;
// the operation payload is the dereferenced *openapi3.Operation.
func Routes(doc *Document, opts ...RouteOption) ([]pathtree.PathSpec, error) {
	if doc == nil || doc.API == nil {
		return nil, fmt.Errorf("spec: nil document")
	}
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	var out []pathtree.PathSpec
	for _, op := range orderPaths(doc.API.Paths, documentOrder(doc.Raw)) {
		if !cfg.allowPath(op.path) {
			continue
		}
		item := doc.API.Paths[op.path]
		if item == nil {
			continue
		}
		ops := item.Operations()

		var methods []pathtree.MethodSpec
		for _, token := range methodTokens(ops, op.methods) {
			operation := ops[strings.ToUpper(token)]
			if operation == nil || !cfg.allowMethod(token) || !cfg.allowTags(operation.Tags) {
				continue
			}
			methods = append(methods, pathtree.MethodSpec{Method: token, Operation: operation})
		}
		if len(methods) == 0 {
			continue
		}
		out = append(out, pathtree.PathSpec{Path: op.path, Methods: methods})
	}
	return out, nil
}

func (c *routeConfig) allowPath(p string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func (c *routeConfig) allowMethod(token string) bool {
	if len(c.methods) == 0 {
		return true
	}
	_, ok := c.methods[strings.ToLower(token)]
	return ok
}

func (c *routeConfig) allowTags(tags []string) bool {
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[strings.TrimSpace(t)]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[strings.TrimSpace(t)]; blocked {
			return false
		}
	}
	return true
}

type orderedPath struct {
	path    string
	methods []string // method keys as written, document order
}

// documentOrder reads path keys and their method keys from raw in source
// order. yaml.v3 also accepts JSON input.
func documentOrder(raw []byte) []orderedPath {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	paths := mappingValue(node, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return nil
	}

	out := make([]orderedPath, 0, len(paths.Content)/2)
	for i := 0; i+1 < len(paths.Content); i += 2 {
		entry := orderedPath{path: paths.Content[i].Value}
		if item := paths.Content[i+1]; item.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(item.Content); j += 2 {
				if key := item.Content[j].Value; isHTTPMethod(key) {
					entry.methods = append(entry.methods, key)
				}
			}
		}
		out = append(out, entry)
	}
	return out
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// orderPaths lists every path of the document: first in source order, then
// any path the source order did not mention, sorted.
func orderPaths(paths openapi3.Paths, order []orderedPath) []orderedPath {
	out := make([]orderedPath, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, op := range order {
		if _, ok := paths[op.path]; !ok || seen[op.path] {
			continue
		}
		seen[op.path] = true
		out = append(out, op)
	}
	var rest []string
	for p := range paths {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	for _, p := range rest {
		out = append(out, orderedPath{path: p})
	}
	return out
}

// methodTokens returns the method keys of a path item: those seen in the
// source first, then remaining operations in canonical order.
func methodTokens(ops map[string]*openapi3.Operation, fromSource []string) []string {
	seen := make(map[string]bool, len(ops))
	tokens := make([]string, 0, len(ops))
	for _, tok := range fromSource {
		upper := strings.ToUpper(tok)
		if ops[upper] == nil || seen[upper] {
			continue
		}
		seen[upper] = true
		tokens = append(tokens, tok)
	}
	for _, m := range httpMethods {
		upper := strings.ToUpper(m)
		if ops[upper] != nil && !seen[upper] {
			seen[upper] = true
			tokens = append(tokens, m)
		}
	}
	return tokens
}

func isHTTPMethod(key string) bool {
	for _, m := range httpMethods {
		if strings.EqualFold(m, key) {
			return true
		}
	}
	return false
}
