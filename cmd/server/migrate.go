package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes for the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg, log, true)
		if err != nil {
			return err
		}
		defer st.Close()
		log.Info("migrations applied", zap.String("driver", cfg.StoreDriver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
