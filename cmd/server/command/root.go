// Package command provides the root and sub-commands of the sound-rental
// server.  Commands are organised using the cobra library.
//
//	./server serve               # HTTP API with the background expiry sweeper
//	./server sweep               # expire overdue holds once and exit
//	./server consume             # record reservation.confirmed events in the ledger
//	./server token -o alice      # print an operator JWT
//
// Every command reads its configuration from the environment, optionally
// seeded from the file named by --env (default .env).
package command

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sound-rental/internal/config"
	"github.com/iliyamo/sound-rental/internal/logx"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Sound equipment rental reservation engine",
	Long: `Prices sound-system rental requests, holds equipment slots while the
deposit is paid through Stripe, and reconciles payment notifications with
client-side verification so each reservation is confirmed exactly once.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		config.LoadDotenv(envFile)
		logx.Setup(os.Stdout, os.Getenv("LOG_LEVEL"))
	},
}

// Execute runs the root command, which parses CLI arguments and dispatches
// to the selected sub-command.  With no sub-command, serve runs.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	rootCmd.RunE = serveCmd.RunE
}
