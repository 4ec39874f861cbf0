package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/openapi2lua/internal/emitter/luaemitter"
	"github.com/mark3labs/openapi2lua/internal/luaident"
	"github.com/mark3labs/openapi2lua/internal/pathtree"
	genspec "github.com/mark3labs/openapi2lua/internal/spec"
)

const (
	defaultSpecPath = "openapi.json"
	defaultOutPath  = "client.lua"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Spec           string
	Out            string
	Name           string
	IncludeTags    []string
	ExcludeTags    []string
	Methods        []string
	Paths          []string
	NoHeaders      bool
	NoQuery        bool
	NoReceiverCall bool
	AllowFileRefs  bool
	ConfigPath     string
	DryRun         bool
	Force          bool
	Verbose        bool

	Stdout io.Writer
	Stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Spec: defaultSpecPath,
		Out:  defaultOutPath,
		Name: luaemitter.DefaultClientName,
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a Lua client from an OpenAPI/Swagger document",
		Long: "Generate a Lua client from an OpenAPI/Swagger document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2lua generate --spec openapi.json --out client.lua
  openapi2lua generate -s https://example.com/openapi.yaml -n Petstore --methods get,post
  openapi2lua --config openapi2lua.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Stdout = cmd.OutOrStdout()
			cfg.Stderr = cmd.ErrOrStderr()
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("spec", "s", defaultSpecPath, "Path or URL to the OpenAPI/Swagger document")
	flags.StringP("out", "o", defaultOutPath, "Lua file to write")
	flags.StringP("name", "n", luaemitter.DefaultClientName, "Name of the generated client table")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching these regular expressions")
	flags.Bool("no-headers", false, "Omit base header support from the client")
	flags.Bool("no-query", false, "Omit query string encoding from the client")
	flags.Bool("no-receiver-call", false, "Omit the ns:method(...) calling form")
	flags.Bool("allow-file-refs", false, "Let a document fetched over http(s) reference local files")
	flags.Bool("dry-run", false, "Preview the output without writing it")
	flags.Bool("force", false, "Overwrite an existing output file")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"spec", &cfg.Spec},
		{"out", &cfg.Out},
		{"name", &cfg.Name},
	}
	for _, f := range strs {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(value)
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"include-tags", &cfg.IncludeTags},
		{"exclude-tags", &cfg.ExcludeTags},
		{"methods", &cfg.Methods},
		{"paths", &cfg.Paths},
	}
	for _, f := range lists {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetStringSlice(f.name)
		if err != nil {
			return err
		}
		*f.dst = sanitizeList(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"no-headers", &cfg.NoHeaders},
		{"no-query", &cfg.NoQuery},
		{"no-receiver-call", &cfg.NoReceiverCall},
		{"allow-file-refs", &cfg.AllowFileRefs},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, f := range bools {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Spec = strings.TrimSpace(c.Spec)
	c.Out = strings.TrimSpace(c.Out)
	c.Name = strings.TrimSpace(c.Name)
	c.IncludeTags = sanitizeList(c.IncludeTags)
	c.ExcludeTags = sanitizeList(c.ExcludeTags)
	c.Paths = sanitizeList(c.Paths)
	methods := make([]string, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, strings.ToLower(m))
	}
	c.Methods = sanitizeList(methods)
}

func (c *GenerateConfig) validate() error {
	if c.Spec == "" {
		return newUsageError("generate: --spec is required (set via flag or config file)")
	}
	if c.Out == "" {
		return newUsageError("generate: --out is required (set via flag or config file)")
	}
	if c.Name == "" {
		c.Name = luaemitter.DefaultClientName
	}
	if !luaident.IsIdentifier(c.Name) {
		return usageErrorf("generate: --name %q is not a valid Lua identifier", c.Name)
	}
	if luaemitter.IsRuntimeGlobal(c.Name) {
		return usageErrorf("generate: --name %q would hide a Lua global the client uses", c.Name)
	}

	for _, m := range c.Methods {
		if !isHTTPMethod(m) {
			return usageErrorf("generate: unsupported --methods value %q (allowed: %s)", m, strings.Join(httpMethods, ", "))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return usageErrorf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", "))
	}

	return nil
}

var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace", "connect"}

func isHTTPMethod(m string) bool {
	for _, known := range httpMethods {
		if m == known {
			return true
		}
	}
	return false
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	if cfg.Verbose {
		fmt.Fprintln(stdout, "Parsing OpenAPI...")
	}
	doc, err := genspec.Load(ctx, cfg.Spec,
		genspec.WithWarnings(stderr),
		genspec.WithAllowFileRefs(cfg.AllowFileRefs),
	)
	if err != nil {
		return specUsageError(err)
	}

	routes, err := genspec.Routes(doc,
		genspec.WithIncludeTags(cfg.IncludeTags),
		genspec.WithExcludeTags(cfg.ExcludeTags),
		genspec.WithMethods(cfg.Methods),
		genspec.WithPathPatterns(cfg.Paths),
	)
	if err != nil {
		return specUsageError(err)
	}
	if len(routes) == 0 {
		fmt.Fprintf(stderr, "[WARN] no operations matched in %s; the client will have no callables\n", doc.Location)
	}

	tree := pathtree.Build(routes)
	for _, name := range luaemitter.ShadowedMembers(tree) {
		fmt.Fprintf(stderr, "[WARN] namespace %q shadows a client field; reach it with rawget or rename the path\n", name)
	}

	opts := luaemitter.DefaultOptions()
	opts.ClientName = cfg.Name
	opts.Source = doc.Title()
	opts.HeaderMerge = !cfg.NoHeaders
	opts.Query = !cfg.NoQuery
	opts.ReceiverCall = !cfg.NoReceiverCall
	opts.OutPath = cfg.Out
	opts.Force = cfg.Force
	opts.DryRun = cfg.DryRun

	res, err := luaemitter.Emit(ctx, tree, opts)
	if err != nil {
		return wrapOutputError(err, cfg.Out)
	}

	if cfg.Verbose {
		fmt.Fprintf(stdout, "Found %d paths; emitted %d callables in %d namespaces\n", len(routes), res.Callables, res.Namespaces)
		printCallables(stdout, tree)
	}
	if cfg.DryRun {
		printPlan(stdout, res)
		return nil
	}
	fmt.Fprintf(stdout, "Generated %s\n", cfg.Out)
	return nil
}

// specUsageError maps structured loader errors into friendly messages.
func specUsageError(err error) error {
	var se *genspec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Message
	if !strings.HasPrefix(msg, "spec: ") {
		msg = "spec: " + msg
	}
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

// printCallables lists every generated callable as its accessor path next to
// the path template it requests.
func printCallables(w io.Writer, tree *pathtree.Node) {
	tree.Walk(func(segments []string, node *pathtree.Node) {
		for _, method := range node.Methods() {
			fmt.Fprintf(w, "  %s %s\n", strings.Join(slices.Concat(segments, []string{method}), "."), node.Route(method).FullPath)
		}
	})
}

func printPlan(w io.Writer, res *luaemitter.Result) {
	fmt.Fprintf(w, "Planned write to %s (%d bytes):\n", res.Path, res.Size)
	fmt.Fprintf(w, "- client table: %s\n", res.ClientName)
	fmt.Fprintf(w, "- callables: %d\n", res.Callables)
	fmt.Fprintf(w, "- namespaces: %d\n", res.Namespaces)
}

func wrapOutputError(err error, out string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "already exists") || strings.Contains(lower, "is a directory") {
		return usageErrorf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", out, msg)
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return usageErrorf("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return usageErrorf("parse config file %q: %v", path, err)
	}

	for key, value := range raw {
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return usageErrorf("config file %q: unknown field %q", path, key)
			}
			return usageErrorf("config field %q: %v", key, err)
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value any) error {
	var err error
	switch key {
	case "spec", "input":
		cfg.Spec, err = valueAsString(value)
	case "out":
		cfg.Out, err = valueAsString(value)
	case "name":
		cfg.Name, err = valueAsString(value)
	case "includetags":
		cfg.IncludeTags, err = valueAsStringSlice(value)
	case "excludetags":
		cfg.ExcludeTags, err = valueAsStringSlice(value)
	case "methods":
		cfg.Methods, err = valueAsStringSlice(value)
	case "paths":
		cfg.Paths, err = valueAsStringSlice(value)
	case "noheaders":
		cfg.NoHeaders, err = valueAsBool(value)
	case "noquery":
		cfg.NoQuery, err = valueAsBool(value)
	case "noreceivercall":
		cfg.NoReceiverCall, err = valueAsBool(value)
	case "allowfilerefs":
		cfg.AllowFileRefs, err = valueAsBool(value)
	case "dryrun":
		cfg.DryRun, err = valueAsBool(value)
	case "force":
		cfg.Force, err = valueAsBool(value)
	case "verbose":
		cfg.Verbose, err = valueAsBool(value)
	default:
		return errUnknownField
	}
	return err
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return sanitizeList(items), nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
