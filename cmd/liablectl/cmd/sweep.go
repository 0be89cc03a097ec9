package cmd

import (
	"fmt"

	"github.com/liableapp/liable/internal/app"
	"github.com/spf13/cobra"
)

func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduler tick: request due check-ins and settle expired ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if !a.Scheduler.Tick(cmd.Context()) {
					return fmt.Errorf("sweep already running")
				}
				return nil
			})
		},
	}
}
