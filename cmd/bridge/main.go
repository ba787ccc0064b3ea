// Command bridge mirrors messages between a Discord channel and a Spacebar
// channel, bidirectionally, preserving edits, deletes, and reply threading.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sparklost/spacebar-bridge/internal/logging"
	"github.com/sparklost/spacebar-bridge/internal/scheduler"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Relay messages between a Discord channel and a Spacebar channel",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(configPath, logLevel)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the bridge version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	rootCmd.RunE = runCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBridge(configPath, logLevel string) error {
	if err := logging.Init("spacebar_bridge.log", logLevel); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	b, err := NewBridge(configPath)
	if err != nil {
		return fmt.Errorf("initialize bridge: %w", err)
	}
	defer b.Close()

	cleaner, err := scheduler.New("0 3 * * *", b.storeDiscord, b.storeSpacebar)
	if err != nil {
		return fmt.Errorf("initialize cleanup scheduler: %w", err)
	}
	cleaner.Start()
	defer cleaner.Stop()

	healthSrv := &http.Server{Addr: ":8080", Handler: b.health.Router()}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("health server: %v", err)
		}
	}()
	defer healthSrv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Infof("connecting to gateways")
	err = b.Run(ctx)
	if err != nil && ctx.Err() != nil {
		logging.Infof("shutting down: %v", ctx.Err())
		return nil
	}
	return err
}
