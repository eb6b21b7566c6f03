package benchmarks

import "github.com/spf13/cobra"

var (
	episodes int
	horizon  int
	saveFile string
	runs     int

	gui        bool
	sumoHome   string
	scenario   string
	routeFile  string
	seed       int64
	policyType string
	debug      bool
	tripInfo   bool
	external   bool
	port       int

	redisAddr   string
	redisKey    string
	traceFormat string

	cpuprofile string
	memprofile string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "sumo-rl-test",
		Short: "Reinforcement learning on SUMO traffic light scenarios",
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 100, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 1000, "Maximum steps of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().BoolVar(&gui, "gui", false, "Run the GUI version of sumo")
	rootCommand.PersistentFlags().StringVar(&sumoHome, "sumo-home", "", "SUMO installation, defaults to $SUMO_HOME")
	rootCommand.PersistentFlags().StringVarP(&scenario, "scenario", "c", "data/cross.sumocfg", "SUMO configuration file of the scenario")
	rootCommand.PersistentFlags().StringVar(&routeFile, "routes", "", "Regenerate the cross scenario routes into this file before every episode")
	rootCommand.PersistentFlags().Int64Var(&seed, "seed", 123, "Seed of the environment and the policies")
	rootCommand.PersistentFlags().BoolVar(&debug, "debug", false, "Print the environment state every 10 steps")
	rootCommand.PersistentFlags().BoolVar(&tripInfo, "tripinfo", false, "Write sumo trip information to tripinfo.xml in the save folder")
	rootCommand.PersistentFlags().BoolVar(&external, "external", false, "Connect to an already running sumo on --port instead of launching one")
	rootCommand.PersistentFlags().IntVar(&port, "port", 0, "TraCI port, a free one is picked when 0")
	rootCommand.PersistentFlags().StringVar(&redisAddr, "redis", "", "Also push episode summaries to the redis server at this address")
	rootCommand.PersistentFlags().StringVar(&redisKey, "redis-key", "sumo-rl-test:episodes", "Redis list receiving the episode summaries")
	rootCommand.PersistentFlags().StringVar(&traceFormat, "trace-format", "jsonl", "Episode summary file format, jsonl or msgpack")
	rootCommand.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile to this file in the save folder")
	rootCommand.PersistentFlags().StringVar(&memprofile, "memprofile", "", "Write a heap profile to this file in the save folder")
	// adding the subcommands here
	rootCommand.AddCommand(SumoCommand())
	rootCommand.AddCommand(CompareCommand())
	rootCommand.AddCommand(RoutesCommand())
	rootCommand.AddCommand(ProbeCommand())
	rootCommand.AddCommand(ServeCommand())
	return rootCommand
}
