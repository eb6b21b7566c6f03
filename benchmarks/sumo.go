package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-rl-test/env"
	"github.com/zeu5/sumo-rl-test/types"
)

var (
	trainSteps    int
	evalEpisodes  int
	learningRate  float64
	discount      float64
	exploration   float64
	observeBucket int
)

// TrainConfig is the shape of a training session: train for a number of
// steps with capped episodes, save the learned table, then evaluate greedily
type TrainConfig struct {
	Steps           int
	MaxEpisodeSteps int
	EvalEpisodes    int
	Alpha           float64
	Gamma           float64
	Epsilon         float64
	Bucket          int
	Seed            int64
	SavePath        string
}

// Train runs the tabular learner against the environment
func Train(ctx context.Context, e *env.SumoEnv, config TrainConfig) error {
	e.Seed(config.Seed)
	gym := env.NewGymEnvironment(e, config.Bucket)
	if gym.Shared() {
		fmt.Printf("%s has more than %d joint actions, all lights share one choice\n", e.ActionSpace(), env.MaxJointActions)
	}
	policy := types.NewQLearningPolicy(config.Alpha, config.Gamma, config.Epsilon, uint64(config.Seed))

	rec, err := newRecorder(ctx, "episodes")
	if err != nil {
		return err
	}
	defer rec.Close()

	fmt.Println(aurora.Bold("=================== Starting training.. =============================="))
	executed := 0
	for episode := 0; executed < config.Steps; episode++ {
		limit := config.MaxEpisodeSteps
		if remaining := config.Steps - executed; remaining < limit {
			limit = remaining
		}
		agent := types.NewAgent(&types.AgentConfig{Horizon: limit, Policy: policy, Environment: gym})
		start := time.Now()
		trace, err := agent.RunEpisode(ctx, episode)
		duration := time.Since(start)
		executed += trace.Len()
		if rErr := rec.Record(ctx, types.NewEpisodeSummary("train", 0, episode, trace, duration, err)); rErr != nil {
			fmt.Printf("failed to record episode %d: %s\n", episode, rErr)
		}
		if err != nil {
			return fmt.Errorf("training episode %d: %w", episode, err)
		}
		mean, _ := trace.RewardStats()
		fmt.Printf("%d/%d: episode: %d, duration: %.3fs, episode steps: %d, episode reward: %.3f, mean reward: %.3f\n",
			executed, config.Steps, episode+1, duration.Seconds(), trace.Len(), trace.TotalReward(), mean)
		if trace.Len() == 0 {
			return fmt.Errorf("training episode %d took no steps", episode)
		}
	}

	fmt.Println(aurora.Bold("=================== Finished training, saving weights.. =============="))
	if err := saveTable(policy, path.Join(config.SavePath, "qtable_"+env.Name+".json")); err != nil {
		return err
	}

	fmt.Println(aurora.Bold("=================== Finished saving weights, evaluating model ========"))
	policy.SetEpsilon(0)
	fmt.Printf("Testing for %d episodes ...\n", config.EvalEpisodes)
	agent := types.NewAgent(&types.AgentConfig{
		Episodes:    config.EvalEpisodes,
		Horizon:     config.MaxEpisodeSteps,
		Policy:      policy,
		Environment: gym,
		OnEpisode: func(episode int, trace *types.Trace, duration time.Duration, err error) {
			if rErr := rec.Record(ctx, types.NewEpisodeSummary("eval", 0, episode, trace, duration, err)); rErr != nil {
				fmt.Printf("failed to record episode %d: %s\n", episode, rErr)
			}
			if err == nil {
				fmt.Printf("Episode %d: reward: %s, steps: %d\n", episode+1, aurora.Green(fmt.Sprintf("%.3f", trace.TotalReward())), trace.Len())
			}
		},
	})
	if err := agent.Run(ctx); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	return nil
}

func saveTable(policy *types.QLearningPolicy, file string) error {
	bs, err := json.Marshal(policy.QTable)
	if err != nil {
		return err
	}
	return os.WriteFile(file, bs, 0644)
}

func SumoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sumo",
		Short: "Train and evaluate a tabular agent on the scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := env.ParsePolicyType(policyType)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(saveFile, 0777); err != nil {
				return err
			}
			ctx, stop := interruptContext()
			defer stop()
			stopProfiling := startProfiling()
			defer stopProfiling()

			e, err := env.New(ctx, envConfig(policy))
			if err != nil {
				return err
			}
			defer e.Close()

			return Train(ctx, e, TrainConfig{
				Steps:           trainSteps,
				MaxEpisodeSteps: horizon,
				EvalEpisodes:    evalEpisodes,
				Alpha:           learningRate,
				Gamma:           discount,
				Epsilon:         exploration,
				Bucket:          observeBucket,
				Seed:            seed,
				SavePath:        saveFile,
			})
		},
	}
	cmd.PersistentFlags().StringVarP(&policyType, "type", "t", "DQN", "The type of prediction to use: direct (DQN), random or rule (timed)")
	cmd.PersistentFlags().IntVar(&trainSteps, "steps", 10000, "Number of training steps")
	cmd.PersistentFlags().IntVar(&evalEpisodes, "eval-episodes", 3, "Number of evaluation episodes")
	cmd.PersistentFlags().Float64Var(&learningRate, "alpha", 0.1, "Learning rate")
	cmd.PersistentFlags().Float64Var(&discount, "gamma", 0.95, "Discount factor")
	cmd.PersistentFlags().Float64Var(&exploration, "epsilon", 0.1, "Exploration rate while training")
	cmd.PersistentFlags().IntVar(&observeBucket, "bucket", 5, "Lane counts above this value share a state")
	return cmd
}
