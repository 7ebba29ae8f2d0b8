package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load vehicles and hospitals from a YAML fixture file",
	RunE:  seed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "fixtures/seed.yaml", "fixture file")
	rootCmd.AddCommand(seedCmd)
}

func seed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	res, err := svc.SeedFile(ctx, seedFile)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d vehicles and %d hospitals\n", res.Vehicles, res.Hospitals)
	return err
}
