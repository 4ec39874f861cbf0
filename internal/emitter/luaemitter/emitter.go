package luaemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/openapi2lua/internal/pathtree"
)

// DefaultClientName is the Lua table name used when none is given.
const DefaultClientName = "Client"

// Options controls how the Lua client is rendered and written.
type Options struct {
	ClientName string // Lua table name; sanitized, defaults to "Client"
	Source     string // optional description for the header comment

	HeaderMerge  bool // base headers + setBaseHeaders/setBaseHeader/removeBaseHeader
	Query        bool // options.query is encoded onto the URL
	ReceiverCall bool // callables also accept ns:method(...) calls

	OutPath string // required by Emit; target file
	Force   bool   // overwrite an existing file
	DryRun  bool   // render only, don't write
}

// DefaultOptions enables every runtime feature.
func DefaultOptions() Options {
	return Options{
		ClientName:   DefaultClientName,
		HeaderMerge:  true,
		Query:        true,
		ReceiverCall: true,
	}
}

// Result describes the rendered client.
type Result struct {
	Path       string // absolute output path
	Size       int
	ClientName string
	Namespaces int
	Callables  int
	Written    bool
	Code       string
}

// Emit renders tree and writes it to opts.OutPath unless DryRun is set.
func Emit(ctx context.Context, tree *pathtree.Node, opts Options) (*Result, error) {
	_ = ctx
	if tree == nil {
		return nil, fmt.Errorf("luaemitter: nil tree")
	}
	if strings.TrimSpace(opts.OutPath) == "" {
		return nil, fmt.Errorf("luaemitter: OutPath is required")
	}
	abs, err := filepath.Abs(opts.OutPath)
	if err != nil {
		return nil, fmt.Errorf("luaemitter: resolve output path: %w", err)
	}

	src, st := render(tree, opts)
	res := &Result{
		Path:       abs,
		Size:       len(src),
		ClientName: clientName(opts.ClientName),
		Namespaces: st.namespaces,
		Callables:  st.callables,
		Code:       src,
	}

	if err := checkTarget(abs, opts.Force); err != nil {
		return nil, err
	}
	if opts.DryRun {
		return res, nil
	}
	if err := writeFileAtomic(abs, []byte(src)); err != nil {
		return nil, err
	}
	res.Written = true
	return res, nil
}

func checkTarget(abs string, force bool) error {
	st, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("luaemitter: cannot access output path %q: %w", abs, err)
	}
	if st.IsDir() {
		return fmt.Errorf("luaemitter: output path %q is a directory", abs)
	}
	if !force {
		return fmt.Errorf("luaemitter: output file %q already exists (use --force to overwrite)", abs)
	}
	return nil
}

func writeFileAtomic(abs string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := abs + ".tmp-" + time.Now().Format("20060102150405")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(abs), err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(abs), err)
	}
	return nil
}
