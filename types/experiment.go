package types

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/gosuri/uilive"
	"github.com/logrusorgru/aurora"
	"github.com/zeu5/sumo-rl-test/recorder"
	"github.com/zeu5/sumo-rl-test/util"
)

type experimentRunConfig struct {
	// execution configuration
	CurrentRun int
	Episodes   int
	Horizon    int
	Analyzers  []Analyzer
	Context    context.Context

	// thresholds to abort the experiment
	ConsecutiveErrorsAbort int

	Recorder       recorder.Recorder
	RecordTimes    bool
	ReportSavePath string

	Progress io.Writer
	//misc
	LongestExpNameLen int
}

// Experiment encapsulates the different parameters to configure an agent and analyze the traces
type Experiment struct {
	Name        string
	policy      Policy
	environment Environment
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, policy Policy, environment Environment) *Experiment {
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
	}
}

// ExperimentResult counts the outcomes of the episodes of one run
type ExperimentResult struct {
	Episodes  int
	Timesteps int
	Terminal  int
	Horizon   int
	Errors    int
	Aborted   bool
}

// NewEpisodeSummary condenses a trace into what the recorders persist
func NewEpisodeSummary(name string, run, episode int, trace *Trace, duration time.Duration, err error) *recorder.EpisodeSummary {
	mean, std := trace.RewardStats()
	s := &recorder.EpisodeSummary{
		Experiment:  name,
		Run:         run,
		Episode:     episode,
		Steps:       trace.Len(),
		TotalReward: trace.TotalReward(),
		MeanReward:  mean,
		StdReward:   std,
		Terminal:    trace.Terminal(),
		Actions:     trace.ActionHashes(),
		Rewards:     trace.Rewards(),
		DurationMs:  duration.Milliseconds(),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Run the experiment for the specified number of episodes, every trace is
// analyzed and recorded even when the episode ended with an error
func (e *Experiment) Run(rConfig *experimentRunConfig) *ExperimentResult {
	result := &ExperimentResult{}
	select {
	case <-rConfig.Context.Done():
		return result
	default:
	}

	agent := NewAgent(&AgentConfig{
		Episodes:    rConfig.Episodes,
		Horizon:     rConfig.Horizon,
		Policy:      e.policy,
		Environment: e.environment,
	})

	consecutiveErrors := 0
	episodeTimes := make([]time.Duration, 0)
	EPPadding := len(strconv.Itoa(rConfig.Episodes))
	NamePadding := rConfig.LongestExpNameLen

	progress := func() {
		if rConfig.Progress == nil {
			return
		}
		fmt.Fprintf(rConfig.Progress, "Exp:%*s, Eps:%*d/%d, TSteps:%d || Terminal:%*d, Horizon:%*d, Err:%*d\n",
			NamePadding, e.Name, EPPadding, result.Episodes, rConfig.Episodes, result.Timesteps,
			EPPadding, result.Terminal, EPPadding, result.Horizon, EPPadding, result.Errors)
	}
	progress()

	for episode := 0; episode < rConfig.Episodes; episode++ {
		select {
		case <-rConfig.Context.Done():
			return result
		default:
		}

		start := time.Now()
		trace, err := agent.RunEpisode(rConfig.Context, episode)
		duration := time.Since(start)
		episodeTimes = append(episodeTimes, duration)

		startingTimesteps := result.Timesteps
		result.Episodes += 1
		result.Timesteps += trace.Len()

		if err != nil {
			result.Errors += 1
			consecutiveErrors += 1
		} else {
			consecutiveErrors = 0
			if trace.Terminal() {
				result.Terminal += 1
			} else {
				result.Horizon += 1
			}
		}

		if rConfig.Recorder != nil {
			summary := NewEpisodeSummary(e.Name, rConfig.CurrentRun, episode, trace, duration, err)
			if rErr := rConfig.Recorder.Record(rConfig.Context, summary); rErr != nil {
				fmt.Printf("\nfailed to record episode %d of %s: %s\n", episode, e.Name, rErr)
			}
		}

		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, episode, startingTimesteps, e.Name, trace)
		}

		if len(episodeTimes) == 10 {
			if rConfig.RecordTimes {
				e.printEpTimesMs(episodeTimes, rConfig.ReportSavePath)
			}
			episodeTimes = make([]time.Duration, 0)
		}

		if consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
			fmt.Printf("\n Aborting experiment %s : %d consecutive errors, last: %s\n", e.Name, consecutiveErrors, err)
			result.Aborted = true
			break
		}
		progress()
	}
	return result
}

func (e *Experiment) printEpTimesMs(epTimes []time.Duration, basePath string) {
	tMilliseconds := ""
	for _, tm := range epTimes {
		tMilliseconds = fmt.Sprintf("%s%7d, ", tMilliseconds, tm.Milliseconds())
	}
	filePath := path.Join(basePath, "epTimes", e.Name+"_ms.txt")
	util.AppendToFile(filePath, tMilliseconds)
}

// Reset clears the learned state of the policy between runs
func (e *Experiment) Reset() {
	e.policy.Reset()
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// Run, episode, total timesteps, experiment, trace
	Analyze(int, int, int, string, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, total episodes, experiment names, datasets
type Comparator func(int, int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(i, _ int, s []string, ds []DataSet) {}
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes
	Horizon  int // number of steps

	RecordPath string // path to store the results
	// receives a summary of every episode, may be nil
	Recorder recorder.Recorder

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	RecordTimes bool
	// print live progress lines to the terminal
	Progress bool
}

func (c *ComparisonConfig) SetDefaults() {
	if c.Runs <= 0 {
		c.Runs = 1
	}
	if c.Horizon <= 0 {
		c.Horizon = DefaultHorizon
	}
	if c.ConsecutiveErrorsAbort <= 0 {
		c.ConsecutiveErrorsAbort = 10
	}
	if c.RecordPath == "" {
		c.RecordPath = "results"
	}
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["horizon"] = cfg.Horizon
	out["record_times"] = cfg.RecordTimes
	out["consecutive_errors_abort"] = cfg.ConsecutiveErrorsAbort

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for _, name := range c.analysisOrder {
		analyzers = append(analyzers, name)
	}
	out["analyzers"] = analyzers

	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(cfg.RecordPath, "comparison_config.json"), bs, 0644)
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments   []*Experiment
	analyzers     map[string]Analyzer
	comparators   map[string]Comparator
	analysisOrder []string
	cConfig       *ComparisonConfig

	// results of the last run, per experiment
	Results map[string]*ExperimentResult
}

// NewComparison creates a comparison instance and its output folders
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	config.SetDefaults()
	foldersToCreate := []string{""}
	if config.RecordTimes {
		foldersToCreate = append(foldersToCreate, "epTimes")
	}
	for _, s := range foldersToCreate {
		if err := os.MkdirAll(path.Join(config.RecordPath, s), 0777); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		Experiments:   make([]*Experiment, 0),
		analyzers:     make(map[string]Analyzer),
		comparators:   make(map[string]Comparator),
		analysisOrder: make([]string, 0),
		cConfig:       config,
		Results:       make(map[string]*ExperimentResult),
	}, nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	if _, ok := c.analyzers[name]; !ok {
		c.analysisOrder = append(c.analysisOrder, name)
	}
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// Run the comparison
func (c *Comparison) Run(ctx context.Context) error {
	if err := c.recordConfig(); err != nil {
		return err
	}

	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	for run := 0; run < c.cConfig.Runs; run++ { // number of runs
		fmt.Println(aurora.Bold(fmt.Sprintf("Run %d", run+1)))
		datasets := make(map[string][]DataSet)
		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rCfg := c.prepareRunConfig(ctx, run, longestNameLen)
			var writer *uilive.Writer
			if c.cConfig.Progress {
				writer = uilive.New()
				writer.Start()
				rCfg.Progress = writer
			}
			result := e.Run(rCfg)
			if writer != nil {
				writer.Stop()
			}
			c.Results[e.Name] = result
			printResult(e.Name, result)

			for name, a := range c.analyzers {
				datasets[name][i] = a.DataSet()
				a.Reset()
			}
			names[i] = e.Name
			e.Reset()
		}
		for _, name := range c.analysisOrder {
			c.comparators[name](run, c.cConfig.Episodes, names, datasets[name])
		}
	}
	return nil
}

func printResult(name string, r *ExperimentResult) {
	status := aurora.Green("done")
	if r.Aborted {
		status = aurora.Red("aborted")
	} else if r.Errors > 0 {
		status = aurora.Yellow("done with errors")
	}
	fmt.Printf("%s %s: %d episodes, %d timesteps, %d terminal, %d horizon, %d errors\n",
		name, status, r.Episodes, r.Timesteps, r.Terminal, r.Horizon, r.Errors)
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(ctx context.Context, run, longestExpNameLen int) *experimentRunConfig {
	rCfg := &experimentRunConfig{
		CurrentRun:             run,
		Episodes:               c.cConfig.Episodes,
		Horizon:                c.cConfig.Horizon,
		Analyzers:              make([]Analyzer, 0),
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		Recorder:               c.cConfig.Recorder,
		RecordTimes:            c.cConfig.RecordTimes,
		ReportSavePath:         c.cConfig.RecordPath,
		Context:                ctx,

		LongestExpNameLen: longestExpNameLen,
	}
	for _, name := range c.analysisOrder {
		rCfg.Analyzers = append(rCfg.Analyzers, c.analyzers[name])
	}
	return rCfg
}
