package types

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/logrusorgru/aurora"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EpisodeAnalyzer records one value per episode
type EpisodeAnalyzer struct {
	measure func(*Trace) float64
	values  []float64
}

var _ Analyzer = &EpisodeAnalyzer{}

func (e *EpisodeAnalyzer) Analyze(_, _, _ int, _ string, t *Trace) {
	e.values = append(e.values, e.measure(t))
}

// DataSet is the []float64 of the recorded values
func (e *EpisodeAnalyzer) DataSet() DataSet {
	out := make([]float64, len(e.values))
	copy(out, e.values)
	return out
}

func (e *EpisodeAnalyzer) Reset() {
	e.values = make([]float64, 0)
}

// RewardAnalyzer collects the total reward of every episode
func RewardAnalyzer() *EpisodeAnalyzer {
	return &EpisodeAnalyzer{
		measure: func(t *Trace) float64 { return t.TotalReward() },
		values:  make([]float64, 0),
	}
}

// MeanRewardAnalyzer collects the mean step reward of every episode
func MeanRewardAnalyzer() *EpisodeAnalyzer {
	return &EpisodeAnalyzer{
		measure: func(t *Trace) float64 {
			mean, _ := t.RewardStats()
			return mean
		},
		values: make([]float64, 0),
	}
}

// LengthAnalyzer collects the number of steps of every episode
func LengthAnalyzer() *EpisodeAnalyzer {
	return &EpisodeAnalyzer{
		measure: func(t *Trace) float64 { return float64(t.Len()) },
		values:  make([]float64, 0),
	}
}

// Plotter draws one line per experiment into <plotPath>/<run>_<name>.png
func Plotter(plotPath, name, yLabel string) Comparator {
	if _, err := os.Stat(plotPath); err != nil {
		os.MkdirAll(plotPath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = yLabel
		for i := 0; i < len(s); i++ {
			values := ds[i].([]float64)
			points := make(plotter.XYs, len(values))
			for j, v := range values {
				points[j] = plotter.XY{
					X: float64(j),
					Y: v,
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(s[i], line)
		}
		if err := p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_"+name+".png")); err != nil {
			fmt.Printf("failed to save plot %s: %s\n", name, err)
		}
	}
}

// Chart renders the same comparison as an interactive HTML line chart
func Chart(chartPath, name, yLabel string) Comparator {
	if _, err := os.Stat(chartPath); err != nil {
		os.MkdirAll(chartPath, os.ModePerm)
	}
	return func(run int, episodes int, s []string, ds []DataSet) {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: name}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Episode"}),
			charts.WithYAxisOpts(opts.YAxis{Name: yLabel}),
			charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		)
		longest := 0
		for i := range s {
			if n := len(ds[i].([]float64)); n > longest {
				longest = n
			}
		}
		xs := make([]string, longest)
		for i := range xs {
			xs[i] = strconv.Itoa(i)
		}
		line.SetXAxis(xs)
		for i := range s {
			values := ds[i].([]float64)
			items := make([]opts.LineData, len(values))
			for j, v := range values {
				items[j] = opts.LineData{Value: v}
			}
			line.AddSeries(s[i], items)
		}

		page := components.NewPage()
		page.AddCharts(line)
		f, err := os.Create(path.Join(chartPath, strconv.Itoa(run)+"_"+name+".html"))
		if err != nil {
			fmt.Printf("failed to create chart %s: %s\n", name, err)
			return
		}
		defer f.Close()
		if err := page.Render(f); err != nil {
			fmt.Printf("failed to render chart %s: %s\n", name, err)
		}
	}
}

// SummaryStats are the mean and standard deviation of a dataset
type SummaryStats struct {
	Mean float64
	Std  float64
	Max  float64
}

func Summarize(values []float64) SummaryStats {
	switch len(values) {
	case 0:
		return SummaryStats{}
	case 1:
		return SummaryStats{Mean: values[0], Max: values[0]}
	}
	mean, std := stat.MeanStdDev(values, nil)
	max := values[0]
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return SummaryStats{Mean: mean, Std: std, Max: max}
}

// SummaryPrinter prints the mean, standard deviation and maximum per experiment
func SummaryPrinter(name string) Comparator {
	return func(run int, _ int, s []string, ds []DataSet) {
		for i := range s {
			st := Summarize(ds[i].([]float64))
			fmt.Printf("%s %s run %d: mean %s std %.3f max %.3f\n",
				aurora.Cyan(s[i]), name, run, aurora.Bold(fmt.Sprintf("%.3f", st.Mean)), st.Std, st.Max)
		}
	}
}
