package main

import (
	"fmt"
	"os"

	"github.com/zeu5/sumo-rl-test/benchmarks"
)

// main entry point to training, comparison and serving commands
func main() {
	rootCommand := benchmarks.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
