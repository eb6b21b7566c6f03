package benchmarks

import (
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/sumo"
)

func ProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the lanes, traffic lights and induction loops of the scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptContext()
			defer stop()
			s, err := sumo.Probe(ctx, envConfig(env.Direct).Sumo)
			if err != nil {
				return err
			}
			fmt.Printf("num_lanes: %d    num_lights: %d\n", s.NumLanes(), s.NumLights())
			fmt.Println(aurora.Bold("lanes"))
			for _, l := range s.Lanes {
				fmt.Printf("  %s\n", l)
			}
			fmt.Println(aurora.Bold("traffic lights"))
			for _, l := range s.Lights {
				fmt.Printf("  %s\n", aurora.Green(l))
			}
			fmt.Println(aurora.Bold("induction loops"))
			for _, l := range s.Loops {
				fmt.Printf("  %s\n", aurora.Cyan(l))
			}
			return nil
		},
	}
}
