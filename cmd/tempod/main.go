package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tempo/internal/app"
	"tempo/internal/config"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "tempod",
		Short:         "tempod schedules jobs from a config file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./tempod.yaml", "path to config file (yaml or json)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return a.Stop(context.Background())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file and list its jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager(cfgPath)
			cfg, err := mgr.Load()
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d jobs)\n", cfgPath, len(cfg.Jobs))
			for _, j := range cfg.Jobs {
				state := "enabled"
				if !j.IsEnabled() {
					state = "disabled"
				}
				fmt.Printf("  %-20s %-20s %s\n", j.Name, j.Schedule, state)
			}
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
