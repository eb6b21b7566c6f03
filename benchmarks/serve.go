package benchmarks

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/server"
)

func ServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registered environments over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptContext()
			defer stop()

			s := server.New(ctx, addr, server.RegistryFactory(envConfig(env.Direct)))
			s.Start()
			fmt.Printf("serving %v on %s\n", env.Registered(), addr)
			<-ctx.Done()
			s.CloseAll()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Address to listen on")
	return cmd
}
