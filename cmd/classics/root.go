package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "classics",
		Short: "Public-domain literary archive",
		Long: `Classics searches public-domain libraries for literary works, catalogs them,
downloads their full text in priority order and translates the top-ranked work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return ctx.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (default classics.yaml when present)")
	flags.StringVar(&ctx.dbPath, "db", "", "Path to the SQLite catalog")
	flags.StringVar(&ctx.corpusDir, "corpus", "", "Directory for downloaded and translated texts")
	flags.BoolVar(&ctx.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(ctx),
		newFetchCommand(ctx),
		newFindCommand(ctx),
		newListCommand(ctx),
		newUpdateCommand(ctx),
		newDownloadCommand(ctx),
		newTranslateCommand(ctx),
	)
	return rootCmd
}
