package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "openapi2lua.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
	Stdout     io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample openapi2lua configuration file",
		Long:  "Scaffold a commented openapi2lua configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
				Stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("out", "o", defaultConfigFile, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigFile
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return usageErrorf("init: %q already exists (use --force to overwrite)", absPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return usageErrorf("init: cannot create parent directory: %v", err)
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return usageErrorf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return usageErrorf("init: cannot place file at %s: %v", absPath, err)
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key accepted by --config.
const sampleConfigYAML = `# openapi2lua configuration (YAML or JSON)
# All fields are optional. Command-line flags override config values.

# Path or URL to the OpenAPI/Swagger document (http/https or local file).
# spec: ./openapi.json

# Lua file to write.
# out: ./client.lua

# Name of the generated client table.
# name: Client

# Only include operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include these HTTP methods.
# methods: [get,post]

# Only include paths matching one of these regular expressions.
# paths: ["^/users"]

# Drop base header support (setBaseHeaders/setBaseHeader/removeBaseHeader).
# noHeaders: false

# Drop query string encoding of options.query.
# noQuery: false

# Drop the ns:method(...) calling form; callables take (params..., options).
# noReceiverCall: false

# Let a document fetched over http(s) reference local files.
# allowFileRefs: false

# Preview the output without writing it.
# dryRun: false

# Overwrite an existing output file.
# force: false

# Enable verbose logging.
# verbose: false
`
