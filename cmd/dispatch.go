package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/model"
)

var incident dispatch.NewIncident

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Report an incident and dispatch it once",
	RunE:  dispatchIncident,
}

func init() {
	f := dispatchCmd.Flags()
	f.Float64Var(&incident.Location.Lat, "lat", 0, "incident latitude")
	f.Float64Var(&incident.Location.Lng, "lng", 0, "incident longitude")
	f.StringVar(&incident.Priority, "priority", "MEDIUM", "HIGH, MEDIUM or LOW")
	f.StringVar(&incident.Category, "category", "", "incident category, e.g. cardiac")
	f.StringVar(&incident.Description, "description", "", "free text description")
	f.StringVar(&incident.PatientName, "patient", "", "patient name")
	_ = dispatchCmd.MarkFlagRequired("lat")
	_ = dispatchCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchIncident(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	inc, err := svc.Coordinator.ReportIncident(ctx, incident)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	res, err := svc.Coordinator.Dispatch(ctx, inc.ID)
	if err != nil {
		if model.IsKind(err, model.KindNoCapacity) {
			return fmt.Errorf("incident %s left pending: %w", inc.ID, err)
		}
		return fmt.Errorf("dispatch: %w", err)
	}
	return printJSON(cmd, res)
}
