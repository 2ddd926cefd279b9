package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xcrap/pkg/definition"
	"github.com/jmylchreest/xcrap/pkg/transform/builtin"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline definition without running it",
		Long: `Parse a pipeline definition, compile every query and resolve every
transformer. Definitions that use the prompt transformer are checked
against the configured LLM provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("definition")
			d, err := definition.Load(path)
			if err != nil {
				return err
			}

			var opts definition.CompileOptions
			if d.Uses("prompt") {
				provider, err := buildProvider(cmd)
				if err != nil {
					return err
				}
				opts.Provider = provider
			}

			p, err := definition.Compile(d, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d fields, %d transform chains)\n",
				p.Name, p.Format, len(p.Extract), p.Transform.Len())
			return nil
		},
	}

	cmd.Flags().StringP("definition", "d", "", "path to pipeline definition (required)")
	cmd.Flags().StringP("provider", "p", "", "LLM provider for prompt steps")
	cmd.Flags().StringP("model", "m", "", "model name (provider-specific)")
	cmd.Flags().String("base-url", "", "custom LLM API base URL")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func newTransformersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transformers",
		Short: "List the transformers available to definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(builtin.Names(), "\n"))
			return nil
		},
	}
}
