// Package commands implements the xcrap CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/xcrap/internal/logger"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xcrap",
		Short: "Declarative extraction and transformation of web pages",
		Long: `xcrap extracts structured records from HTML and XML documents.

A pipeline definition names the fields to extract with CSS or XPath
queries, and the transformer chains that turn raw strings into clean
values.

Examples:
  # Scrape a product page
  xcrap run -d product.yaml -u "https://myshop.com/p/1"

  # Run a pipeline over saved documents, keeping the raw record
  xcrap run -d product.yaml -f page1.html -f page2.html --raw --format jsonl

  # Check a definition without running it
  xcrap validate -d product.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Options{
				Level:  viper.GetString("log_level"),
				Debug:  viper.GetBool("debug"),
				Quiet:  viper.GetBool("quiet"),
				JSON:   viper.GetBool("json_log"),
				Output: cmd.ErrOrStderr(),
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.xcrap.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("json-log", false, "log as JSON lines")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("json_log", flags.Lookup("json-log"))

	cmd.AddCommand(newRunCmd(), newValidateCmd(), newTransformersCmd(), newVersionCmd())
	return cmd
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".xcrap")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("XCRAP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logger.Error("command failed", "error", err)
	}
	return err
}
