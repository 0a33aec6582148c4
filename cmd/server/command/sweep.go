package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sound-rental/internal/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue payment holds once and exit",
	Long: `Runs a single expiry pass, the same one the serve command runs on a
ticker.  Each overdue hold is checked with Stripe first, so a paid
session whose notification was lost is confirmed instead of expired.
Confirmations whose publish failed are then sent again.  Useful from cron when the API runs without the background sweeper.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx, config.Load())
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.svc.ExpireStale(ctx)
		if err != nil {
			return fmt.Errorf("expire stale holds: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d reservation(s)\n", n)
		r, err := a.svc.ReplayConfirmations(ctx)
		if err != nil {
			return fmt.Errorf("replay confirmations: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d confirmation(s)\n", r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
