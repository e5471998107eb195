// @title ideagraph API
// @version 1.0
// @description 社交关系一致性与互动聚合引擎
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer <jwt>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/ideagraph/config"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "ideagraph",
		Short:         "Social graph consistency and engagement aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(c.Log.Level, c.Log.Format); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cfg = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
