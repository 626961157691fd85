package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsignals/disaster-feed-sync/internal/pipeline"
	"github.com/fieldsignals/disaster-feed-sync/internal/source"
)

func newSyncCmd() *cobra.Command {
	var (
		city string
		lat  float64
		lng  float64
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			orchestrator := pipeline.New(a.connectors, a.store, nil, a.logger, a.metrics)
			before := len(a.store.Incidents())
			orchestrator.Sync(cmd.Context(), source.LocationHint{City: city, Lat: lat, Lng: lng})
			after := len(a.store.Incidents())

			fmt.Fprintf(cmd.OutOrStdout(), "sync complete: %d new incidents, %d total\n", after-before, after)
			for _, e := range a.store.Logs() {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", e.Level, e.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "bias the news scan toward this city")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the area of interest")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the area of interest")
	return cmd
}
