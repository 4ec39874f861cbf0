package cli

import "github.com/spf13/cobra"

// Execute runs the openapi2lua CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "openapi2lua",
		Short:         "Generate Lua HTTP clients from OpenAPI/Swagger documents",
		Long:          "openapi2lua turns the paths of an OpenAPI or Swagger document into a nested Lua client table with one callable per operation.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Unknown flags and bad values become usage errors carrying the help text.
	cmd.SetFlagErrorFunc(flagUsageError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagUsageError)
		cmd.AddCommand(sub)
	}
	return cmd
}

func flagUsageError(c *cobra.Command, err error) error {
	return usageErrorf("%v\n\n%s", err, c.UsageString())
}
