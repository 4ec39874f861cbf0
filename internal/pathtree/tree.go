// Package pathtree groups API path templates into an ordered tree of static
// segments, with parameter names carried on each route.
package pathtree

import (
	"slices"
	"strings"
)

// PathSpec is one path template of the input together with its methods, in
// the order they appeared in the source document.
type PathSpec struct {
	Path    string
	Methods []MethodSpec
}

// MethodSpec pairs an HTTP method token with its opaque operation payload.
type MethodSpec struct {
	Method    string
	Operation any
}

// Route is a single (path, method) pair terminating at a tree node.
type Route struct {
	FullPath   string   // original, unmodified path template
	PathParams []string // parameter names in path order; duplicates allowed
	Operation  any      // passed through unexamined
}

// Node is one static path segment. Children and methods keep first-insertion
// order. Nodes are only mutated by Build.
type Node struct {
	keys     []string
	children map[string]*Node

	methodKeys []string
	methods    map[string]*Route
}

func newNode() *Node {
	return &Node{children: map[string]*Node{}}
}

// Keys returns the static child segments in insertion order.
func (n *Node) Keys() []string { return slices.Clone(n.keys) }

// Child returns the subtree for a static segment, or nil.
func (n *Node) Child(key string) *Node { return n.children[key] }

// HasMethods reports whether any route terminates at this node.
func (n *Node) HasMethods() bool { return len(n.methodKeys) > 0 }

// Methods returns the method tokens terminating here in insertion order.
func (n *Node) Methods() []string { return slices.Clone(n.methodKeys) }

// Route returns the route stored under a method token, or nil.
func (n *Node) Route(method string) *Route { return n.methods[method] }

// Walk visits every node depth-first: children in insertion order, each
// with the static segments leading to it.
func (n *Node) Walk(fn func(segments []string, node *Node)) {
	n.walk(nil, fn)
}

func (n *Node) walk(prefix []string, fn func([]string, *Node)) {
	fn(prefix, n)
	for _, key := range n.keys {
		n.children[key].walk(append(slices.Clone(prefix), key), fn)
	}
}

func (n *Node) child(key string) *Node {
	if c, ok := n.children[key]; ok {
		return c
	}
	c := newNode()
	n.children[key] = c
	n.keys = append(n.keys, key)
	return c
}

func (n *Node) setRoute(method string, r *Route) {
	if n.methods == nil {
		n.methods = map[string]*Route{}
	}
	if _, exists := n.methods[method]; !exists {
		n.methodKeys = append(n.methodKeys, method)
	}
	n.methods[method] = r
}

// Build groups the flat route list into a tree of static segments. Parameter
// segments ("{name}") never become keys; their names are collected in order
// and attached to every route of the path.
func Build(paths []PathSpec) *Node {
	root := newNode()
	for _, p := range paths {
		insert(root, p)
	}
	return root
}

func insert(root *Node, p PathSpec) {
	current := root
	var params []string

	for _, segment := range Segments(p.Path) {
		if name, ok := ParamName(segment); ok {
			params = append(params, name)
			continue
		}
		current = current.child(segment)
	}

	for _, m := range p.Methods {
		current.setRoute(m.Method, &Route{
			FullPath:   p.Path,
			PathParams: slices.Clone(params),
			Operation:  m.Operation,
		})
	}
}

// Segments strips one leading slash and splits on "/", dropping empty
// segments.
func Segments(path string) []string {
	path = strings.TrimPrefix(path, "/")
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParamName reports whether segment is a whole-segment placeholder and
// returns the name between the braces. "x{id}" and "{}" are literals.
func ParamName(segment string) (string, bool) {
	if len(segment) < 3 || segment[0] != '{' || segment[len(segment)-1] != '}' {
		return "", false
	}
	return segment[1 : len(segment)-1], true
}
