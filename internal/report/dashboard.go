package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

func chartSize() opts.Initialization {
	return opts.Initialization{Width: "900px", Height: "420px"}
}

// selectionChart shows ΔAICc and Akaike weight of every model of a family.
func selectionChart(fam *analysis.Family) *charts.Bar {
	x := make([]string, len(fam.Table.Rows))
	delta := make([]opts.BarData, len(fam.Table.Rows))
	weight := make([]opts.BarData, len(fam.Table.Rows))
	for i, r := range fam.Table.Rows {
		x[i] = r.Label
		delta[i] = opts.BarData{Value: round(r.Delta, 3)}
		weight[i] = opts.BarData{Value: round(r.Weight, 3)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(chartSize()),
		charts.WithTitleOpts(opts.Title{Title: fam.Name, Subtitle: "AICc difference to the lowest and Akaike weight"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
	)
	bar.SetXAxis(x).
		AddSeries("delta AICc", delta, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("weight", weight, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func correlogramChart(domain string, c *spatial.Correlogram) *charts.Line {
	x := make([]string, len(c.Bins))
	moran := make([]opts.LineData, len(c.Bins))
	expected := make([]opts.LineData, len(c.Bins))
	for i, b := range c.Bins {
		x[i] = strconv.FormatFloat(b.MeanDistance, 'f', 0, 64)
		symbol := "emptyCircle"
		if b.Significant(0.05) {
			symbol = "circle"
		}
		moran[i] = opts.LineData{Value: round(b.MoranI, 4), Symbol: symbol, SymbolSize: 8}
		expected[i] = opts.LineData{Value: round(b.Expected, 4)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(chartSize()),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s residuals (%s)", domain, c.Label), Subtitle: "Moran's I per distance class; filled points p < 0.05"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "m", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(x).
		AddSeries("Moran's I", moran).
		AddSeries("expected", expected)
	return line
}

// bandChart draws the medians and interval bounds of bands sharing a grid.
func bandChart(title, xName string, bands ...simulate.Band) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(chartSize()),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, NameLocation: "middle", NameGap: 25}),
	)
	if len(bands) == 0 {
		return line
	}
	x := make([]string, len(bands[0].X))
	for i, v := range bands[0].X {
		x[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	line.SetXAxis(x)
	for _, b := range bands {
		line.AddSeries(b.Name, lineData(b.Median))
		line.AddSeries(b.Name+" lower", lineData(b.Lower),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
		line.AddSeries(b.Name+" upper", lineData(b.Upper),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}
	return line
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

func lineData(v []float64) []opts.LineData {
	out := make([]opts.LineData, len(v))
	for i, y := range v {
		out[i] = opts.LineData{Value: round(y, 4)}
	}
	return out
}

// WriteDashboard renders the HTML dashboard of a result.
func WriteDashboard(w io.Writer, res *analysis.Result) error {
	page := components.NewPage()
	page.PageTitle = "Urban snail dispersal re-analysis " + res.RunID

	if e := res.Exploration; e != nil {
		page.AddCharts(
			selectionChart(e.Family),
			bandChart("exploration probability", e.UrbanVar, e.Probability[dataset.Adult], e.Probability[dataset.Subadult]),
		)
		if e.Correlogram != nil {
			page.AddCharts(correlogramChart(analysis.StageExploration, e.Correlogram))
		}
	}
	if p := res.Perception; p != nil {
		page.AddCharts(
			selectionChart(p.Historical),
			selectionChart(p.Corrected),
			bandChart("detectability", p.UrbanVar, p.DetectabilityByUrban[dataset.Adult], p.DetectabilityByUrban[dataset.Subadult]),
			bandChart("response bias", p.UrbanVar, p.BiasByUrban[dataset.Adult], p.BiasByUrban[dataset.Subadult]),
		)
		if p.Correlogram != nil {
			page.AddCharts(correlogramChart(analysis.StagePerception, p.Correlogram))
		}
	}
	if d := res.Dissection; d != nil {
		page.AddCharts(
			selectionChart(d.Family),
			bandChart("allometric exponent", d.UrbanVar, d.Exponent),
		)
		if d.Correlogram != nil {
			page.AddCharts(correlogramChart(analysis.StageDissection, d.Correlogram))
		}
	}
	return page.Render(w)
}
