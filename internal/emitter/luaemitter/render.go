package luaemitter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/openapi2lua/internal/luaident"
	"github.com/mark3labs/openapi2lua/internal/pathtree"
)

const (
	rootRef = "instance"
	indent  = "  "
)

// Locals used inside every generated callable. Path parameters that
// sanitize to one of these get a numeric suffix instead.
var (
	receiverLocals = []string{"args", "offset", "options", rootRef, "tostring"}
	plainLocals    = []string{"options", rootRef, "tostring"}
)

// Fields the constructor and the client metatable put on every instance.
// A root-level segment or method with one of these names replaces it.
var clientMembers = []string{
	"baseUrl", "baseHeaders", "request", "new", "_request",
	"setBaseHeaders", "setBaseHeader", "removeBaseHeader", "__index",
}

// Globals the generated chunk calls at runtime. A client table declared
// under one of these names would hide them from the chunk.
var runtimeGlobals = []string{
	"string", "table", "pairs", "ipairs", "next", "type", "tostring", "setmetatable",
}

// IsRuntimeGlobal reports whether name is a Lua global the generated client
// depends on and so cannot be used as the client table name.
func IsRuntimeGlobal(name string) bool {
	for _, g := range runtimeGlobals {
		if g == name {
			return true
		}
	}
	return false
}

var tmpl = template.Must(template.New("client").Parse(clientTemplate))

type templateData struct {
	Name        string
	Source      string
	HeaderMerge bool
	Query       bool
	Tree        string
}

type stats struct {
	namespaces int
	callables  int
}

// Render returns the Lua source of a client for tree. It performs no I/O.
func Render(tree *pathtree.Node, opts Options) string {
	src, _ := render(tree, opts)
	return src
}

func render(tree *pathtree.Node, opts Options) (string, stats) {
	w := &treeWriter{opts: opts}
	if tree != nil {
		w.node(rootRef, tree)
	}

	data := templateData{
		Name:        clientName(opts.ClientName),
		Source:      oneLine(opts.Source),
		HeaderMerge: opts.HeaderMerge,
		Query:       opts.Query,
		Tree:        strings.Join(w.lines, "\n"),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// The template is static and data holds only strings and bools.
		panic(fmt.Sprintf("luaemitter: render client template: %v", err))
	}
	return buf.String(), w.stats
}

// ShadowedMembers lists root-level keys of tree that collide with the
// generated client's own fields.
func ShadowedMembers(tree *pathtree.Node) []string {
	if tree == nil {
		return nil
	}
	taken := make(map[string]struct{}, len(clientMembers))
	for _, m := range clientMembers {
		taken[m] = struct{}{}
	}
	var out []string
	seen := map[string]bool{}
	names := tree.Keys()
	for _, m := range tree.Methods() {
		names = append(names, methodField(m))
	}
	for _, name := range names {
		if _, ok := taken[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

type treeWriter struct {
	opts  Options
	lines []string
	stats stats
}

func (w *treeWriter) add(depth int, format string, args ...any) {
	w.lines = append(w.lines, strings.Repeat(indent, depth)+fmt.Sprintf(format, args...))
}

func (w *treeWriter) node(ref string, n *pathtree.Node) {
	for _, key := range n.Keys() {
		childRef := luaident.ChildAccessor(ref, key)
		w.add(1, "%s = {}", childRef)
		w.stats.namespaces++
		w.node(childRef, n.Child(key))
	}
	for _, method := range n.Methods() {
		w.callable(ref, method, n.Route(method))
	}
}

func (w *treeWriter) callable(tableRef, method string, route *pathtree.Route) {
	reserved := plainLocals
	if w.opts.ReceiverCall {
		reserved = receiverLocals
	}
	params := luaident.UniqueIdentifiers(route.PathParams, reserved...)
	field := methodField(method)
	fnRef := luaident.ChildAccessor(tableRef, field)

	if len(w.lines) > 0 {
		w.lines = append(w.lines, "")
	}
	if w.opts.ReceiverCall {
		w.add(1, "%s = function(...)", fnRef)
		w.add(2, "local args = { ... }")
		w.add(2, "local offset = 0")
		w.add(2, "if args[1] == %s then", tableRef)
		w.add(3, "offset = 1")
		w.add(2, "end")
		for i, local := range params.Ordered {
			w.add(2, "local %s = args[offset + %d]", local, i+1)
		}
		w.add(2, "local options = args[offset + %d] or {}", len(params.Ordered)+1)
	} else {
		w.add(1, "%s = function(%s)", fnRef, strings.Join(append(params.Ordered, "options"), ", "))
		w.add(2, "options = options or {}")
	}

	w.add(2, "return %s:_request({", rootRef)
	w.add(3, "url = %s,", PathExpr(route.FullPath, params.Ordered))
	w.add(3, "method = %s,", luaident.StringLiteral(strings.ToUpper(field)))
	w.add(3, "body = options.body,")
	w.add(3, "headers = options.headers,")
	if w.opts.Query {
		w.add(3, "query = options.query,")
	}
	w.add(3, "binary = options.binary,")
	w.add(3, "redirect = options.redirect,")
	w.add(3, "timeout = options.timeout")
	w.add(2, "})")
	w.add(1, "end")
	w.stats.callables++
}

// methodField strips the "@" extension marker from a method token.
func methodField(method string) string {
	return strings.ReplaceAll(method, "@", "")
}

// PathExpr builds a Lua expression for fullPath in which the n-th
// whole-segment placeholder is replaced by locals[n]. Placeholders are
// matched by position, so repeated names bind to distinct locals.
func PathExpr(fullPath string, locals []string) string {
	var (
		parts   []string
		literal strings.Builder
		next    int
	)
	for i, segment := range strings.Split(fullPath, "/") {
		if i > 0 {
			literal.WriteByte('/')
		}
		if _, ok := pathtree.ParamName(segment); ok && next < len(locals) {
			if literal.Len() > 0 {
				parts = append(parts, luaident.StringLiteral(literal.String()))
				literal.Reset()
			}
			parts = append(parts, "tostring("+locals[next]+")")
			next++
			continue
		}
		literal.WriteString(segment)
	}
	if literal.Len() > 0 || len(parts) == 0 {
		parts = append(parts, luaident.StringLiteral(literal.String()))
	}
	return strings.Join(parts, " .. ")
}

func clientName(name string) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultClientName
	}
	name = luaident.ToIdentifier(name)
	if IsRuntimeGlobal(name) {
		name += "_"
	}
	return name
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
