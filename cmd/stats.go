package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print incident, fleet and hospital statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()
		s, err := svc.Coordinator.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
