package benchmarks

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/routes"
)

func RoutesCommand() *cobra.Command {
	var out string
	var steps int
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Generate the route file of the cross scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := routes.CrossScenario(seed)
			if steps > 0 {
				cfg.Steps = steps
			}
			if err := routes.Generate(cfg, out); err != nil {
				return err
			}
			fmt.Printf("routes written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", env.DefaultRouteFile, "Route file to write")
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of simulation steps with departures, the scenario default when 0")
	return cmd
}
