package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sound-rental/internal/config"
	"github.com/iliyamo/sound-rental/internal/logx"
	"github.com/iliyamo/sound-rental/internal/queue"
)

var ledgerFile string

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Record reservation.confirmed events in the confirmation ledger",
	Long: `Consumes the reservation.confirmed queue.  Each reservation is
recorded once even when RabbitMQ redelivers its event: the dedupe marker
and the running totals live in Redis when it is reachable.  Every new
confirmation is also appended as one JSON line to the ledger file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(filepath.Dir(ledgerFile), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
		f, err := os.OpenFile(ledgerFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open ledger file: %w", err)
		}
		defer f.Close()

		rdb := config.NewRedisClient()
		if rdb == nil {
			logx.Warn(ctx, "redis unreachable; ledger dedupe is per process")
		} else {
			defer rdb.Close()
		}
		ledger := queue.NewLedger(rdb, f, "ledger")

		err = queue.StartConfirmationConsumer(ctx, config.RabbitURL(), ledger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	consumeCmd.Flags().StringVar(&ledgerFile, "ledger-file", filepath.Join("logs", "confirmations.log"), "file receiving one line per confirmed reservation")
	rootCmd.AddCommand(consumeCmd)
}
