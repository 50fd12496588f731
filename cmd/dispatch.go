package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strayaid/rescuedispatch/app"
	"github.com/strayaid/rescuedispatch/config"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <report-id>",
	Short: "Run candidate matching for one report and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  dispatchReport,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.Manager.Dispatch(ctx, args[0])
	if err != nil {
		return fmt.Errorf("dispatch report %s: %w", args[0], err)
	}
	fmt.Printf("report %s dispatched to %d volunteers\n", res.ReportID, len(res.Assignments))
	for _, a := range res.Assignments {
		fmt.Printf("  %s  volunteer=%s  role=%s  distance=%.1fkm\n", a.ID, a.VolunteerID, a.Type, a.TravelDistanceKm)
	}
	return nil
}
