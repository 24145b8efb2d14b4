package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/car-rating/cmd/worker"
	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	cfg     config.Config
	rootCmd = &cobra.Command{
		Use:           "car-rating",
		Short:         "Car make/model registry with ratings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = c
			logger.Init(cfg.Log.Level)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd(func() config.Config { return cfg }))
}
