package benchmarks

import (
	"context"
	"fmt"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/types"
	"github.com/zeu5/sumo-rl-test/util"
)

// Compare runs the learner against the baselines, every experiment drives
// its own simulator
func Compare(ctx context.Context) error {
	rec, err := newRecorder(ctx, "episodes")
	if err != nil {
		return err
	}
	defer rec.Close()

	c, err := types.NewComparison(&types.ComparisonConfig{
		Runs:        runs,
		Episodes:    episodes,
		Horizon:     horizon,
		RecordPath:  saveFile,
		Recorder:    rec,
		RecordTimes: true,
		Progress:    true,
	})
	if err != nil {
		return err
	}
	stopProfiling := startProfiling()
	defer stopProfiling()

	c.AddAnalysis("reward", types.RewardAnalyzer(), combine(
		types.Plotter(path.Join(saveFile, "plots"), "reward", "Episode reward"),
		types.Chart(path.Join(saveFile, "charts"), "reward", "Episode reward"),
		types.SummaryPrinter("episode reward"),
	))
	c.AddAnalysis("mean_speed", types.MeanRewardAnalyzer(), combine(
		types.Plotter(path.Join(saveFile, "plots"), "mean_speed", "Mean speed"),
		types.SummaryPrinter("mean speed"),
	))
	c.AddAnalysis("length", types.LengthAnalyzer(), types.Plotter(path.Join(saveFile, "plots"), "length", "Episode steps"))

	experiments := []struct {
		name   string
		phases env.PolicyType
		policy types.Policy
	}{
		{"qlearning", env.Direct, types.NewQLearningPolicy(0.1, 0.95, 0.1, uint64(seed))},
		{"random", env.Direct, types.NewRandomPolicy(uint64(seed))},
		{"north-south", env.Direct, types.NewConstantPolicy(env.Single(env.ActionNorthSouth).Hash())},
		{"rule", env.RuleBased, types.NewConstantPolicy(env.Single(env.ActionNoop).Hash())},
		{"random-phases", env.Random, types.NewConstantPolicy(env.Single(env.ActionNoop).Hash())},
	}
	envs := make([]*env.SumoEnv, 0, len(experiments))
	defer func() {
		for _, e := range envs {
			e.Close()
		}
	}()
	for _, exp := range experiments {
		e, err := env.New(ctx, envConfig(exp.phases))
		if err != nil {
			return fmt.Errorf("creating environment for %s: %w", exp.name, err)
		}
		e.Seed(seed)
		envs = append(envs, e)
		c.AddExperiment(types.NewExperiment(exp.name, exp.policy, env.NewGymEnvironment(e, observeBucket)))
	}

	util.WriteToFile(path.Join(saveFile, "config.txt"),
		fmt.Sprintf("Scenario: %s", scenario),
		fmt.Sprintf("Episodes: %d, Horizon: %d, Runs: %d", episodes, horizon, runs),
		fmt.Sprintf("Seed: %d, Bucket: %d", seed, observeBucket),
	)
	return c.Run(ctx)
}

func combine(comparators ...types.Comparator) types.Comparator {
	return func(run, episodes int, names []string, ds []types.DataSet) {
		for _, c := range comparators {
			c(run, episodes, names, ds)
		}
	}
}

func CompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the learner with fixed and random phase baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptContext()
			defer stop()
			return Compare(ctx)
		},
	}
	cmd.PersistentFlags().IntVar(&observeBucket, "bucket", 5, "Lane counts above this value share a state")
	return cmd
}
