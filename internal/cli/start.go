package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/mev-shield/tx-protection-engine/internal/app"
	"github.com/mev-shield/tx-protection-engine/internal/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the protection engine",
	Long: `Start the protection engine: the evaluation pipeline, the optional
transaction stream ingest, and the HTTP API. The engine runs until stopped.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("bind", "", "bind address for API server (overrides config)")
	startCmd.Flags().Int("port", 0, "port for API server (overrides config)")

	viper.BindPFlag("server.host", startCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", startCmd.Flags().Lookup("port"))
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Println("Starting MEV Shield...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	engine := fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
		),
		app.Module,
		fx.Invoke(func(lifecycle fx.Lifecycle, a *app.Application) {
			lifecycle.Append(fx.Hook{
				OnStart: a.Start,
				OnStop:  a.Stop,
			})
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received, stopping engine...")
		cancel()
	}()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-ctx.Done()

	if err := engine.Stop(context.Background()); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}

	fmt.Println("MEV Shield stopped")
	return nil
}
