// Package report renders an analysis result as text tables, PNG plots and an
// HTML dashboard.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/urban"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/version"
)

// textWriter keeps the first write error; later writes are dropped.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

// table writes tab-separated rows aligned in columns.
func (t *textWriter) table(header string, rows []string) {
	if t.err != nil {
		return
	}
	tw := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, r)
	}
	t.err = tw.Flush()
}

// WriteText writes the full text report.
func WriteText(w io.Writer, res *analysis.Result) error {
	t := &textWriter{w: w}
	t.printf("Urban snail dispersal re-analysis\n")
	t.printf("run %s, %s\n", res.RunID, version.String())
	t.printf("seed %d, %d draws, %.0f%% intervals\n", res.Options.Seed, res.Options.Draws, 100*res.Options.IntervalWidth)

	p := res.Prepared
	t.section("Urbanisation indices")
	writeIndex(t, p.Index10)
	writeIndex(t, p.Index50)

	t.section("Site joins")
	var joins []string
	for _, j := range p.Joins {
		unmatched := "-"
		if !j.OK() {
			unmatched = strings.Join(j.Unmatched, ",")
		}
		joins = append(joins, fmt.Sprintf("%s\t%d\t%d\t%d\t%s", j.Table, j.Rows, j.Matched, j.DroppedRows, unmatched))
	}
	t.table("table\trows\tmatched\tdropped\tunmatched sites", joins)

	if e := res.Exploration; e != nil {
		t.section("Exploration")
		writeFamily(t, e.Family, e.Selected)
		writeCorrelogram(t, e.Correlogram)
		writeBands(t, e.UrbanVar,
			e.Probability[dataset.Adult], e.Probability[dataset.Subadult], e.StageDifference)
	}
	if pr := res.Perception; pr != nil {
		t.section("Perception (historical models)")
		writeFamily(t, pr.Historical, pr.Historical.Fit(pr.Historical.Table.Lowest()))
		t.section("Perception")
		writeFamily(t, pr.Corrected, pr.Selected)
		writeCorrelogram(t, pr.Correlogram)
		t.printf("\nat %g cm from the stimulus:\n", pr.ReferenceDistance)
		writeBands(t, pr.UrbanVar,
			pr.DetectabilityByUrban[dataset.Adult], pr.DetectabilityByUrban[dataset.Subadult],
			pr.BiasByUrban[dataset.Adult], pr.BiasByUrban[dataset.Subadult])
		t.printf("\nat %s = 0:\n", pr.UrbanVar)
		writeBands(t, analysis.VarDistance,
			pr.DetectabilityByDistance[dataset.Adult], pr.DetectabilityByDistance[dataset.Subadult])
		writeCovariance(t, pr.Covariance)
	}
	if d := res.Dissection; d != nil {
		t.section("Dissection")
		t.printf("diameter scaled by %.4g mm, foot mass scaled by %.4g g\n\n", d.Scaling.Diameter, d.Scaling.FootMass)
		writeFamily(t, d.Family, d.Selected)
		t.printf("variance power %.4f (SE %.4f), sigma^2 %.4g\n", d.Selected.VarPower, d.Selected.VarPowerSE, d.Selected.Scale)
		writeCorrelogram(t, d.Correlogram)
		t.printf("\nat scaled size %g:\n", d.ReferenceSize)
		writeBands(t, d.UrbanVar, d.Prefactor, d.Exponent, d.MassAtRef)
		writeCovariance(t, d.Covariance)
	}
	return t.err
}

func writeIndex(t *textWriter, ix *urban.Index) {
	t.printf("\n%s buffer\n", ix.Buffer)
	rows := make([]string, len(ix.Variables))
	for i, v := range ix.Variables {
		rows[i] = fmt.Sprintf("%s\t%.4f\t%.4f\t%.4f", v, ix.Means[i], ix.StdDevs[i], ix.Loadings[i])
	}
	t.table("variable\tmean\tsd\tPC1 loading", rows)
	parts := make([]string, len(ix.Explained))
	for i, e := range ix.Explained {
		parts[i] = fmt.Sprintf("PC%d %.1f%%", i+1, 100*e)
	}
	t.printf("variance explained: %s\n", strings.Join(parts, ", "))
}

func writeFamily(t *textWriter, fam *analysis.Family, selected *model.Fit) {
	var rows []string
	for _, r := range fam.Table.Rows {
		rows = append(rows, fmt.Sprintf("%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f",
			r.Label, fam.Fit(r.Label).Formula, r.K, r.LogLik, r.AICc, r.Delta, r.Weight))
	}
	t.table("model\tformula\tk\tlogLik\tAICc\tdelta\tweight", rows)
	if selected == nil {
		return
	}

	t.printf("\n%s coefficients (n = %d)\n", selected.Label, selected.N)
	se := selected.SE()
	rows = rows[:0]
	for i, name := range selected.Names {
		rows = append(rows, fmt.Sprintf("%s\t%.5f\t%.5f\t%.3f", name, selected.Coef[i], se[i], selected.Coef[i]/se[i]))
	}
	t.table("term\testimate\tstd.error\tz", rows)

	tests := fam.Tests[selected.Label]
	if len(tests) == 0 {
		return
	}
	t.printf("\n%s tests (%s)\n", selected.Label, tests[0].Test)
	rows = rows[:0]
	for _, tt := range tests {
		rows = append(rows, fmt.Sprintf("%s\t%d\t%.3f\t%s", tt.Term, tt.Df, tt.Statistic, formatP(tt.PValue)))
	}
	t.table("term\tdf\tstatistic\tp", rows)
}

func writeCorrelogram(t *textWriter, c *spatial.Correlogram) {
	if c == nil {
		return
	}
	t.printf("\nresidual correlogram of %s (%d sites)\n", c.Label, c.N)
	rows := make([]string, len(c.Bins))
	for i, b := range c.Bins {
		rows[i] = fmt.Sprintf("%.0f-%.0f\t%.0f\t%d\t%.4f\t%.4f\t%s",
			b.Lower, b.Upper, b.MeanDistance, b.Pairs, b.MoranI, b.Expected, formatP(b.PValue))
	}
	t.table("class (m)\tmean dist\tpairs\tI\texpected\tp", rows)
}

func writeCovariance(t *textWriter, c analysis.CovarianceCheck) {
	if c.Quantity == "" {
		return
	}
	t.printf("\n%s, joint and independent coefficient draws:\n", c.Quantity)
	t.table("draws\tmedian\tinterval\twidth", []string{
		fmt.Sprintf("joint\t%.4f\t[%.4f, %.4f]\t%.4f", c.Joint.Median, c.Joint.Lower, c.Joint.Upper, c.Joint.Width()),
		fmt.Sprintf("independent\t%.4f\t[%.4f, %.4f]\t%.4f", c.Independent.Median, c.Independent.Lower, c.Independent.Upper, c.Independent.Width()),
	})
	t.printf("width ratio (independent / joint) %.2f\n", c.WidthRatio())
}

// writeBands prints each band at its first, middle and last grid points.
func writeBands(t *textWriter, xName string, bands ...simulate.Band) {
	var rows []string
	for _, b := range bands {
		if len(b.X) == 0 {
			continue
		}
		for _, i := range []int{0, len(b.X) / 2, len(b.X) - 1} {
			s := b.At(i)
			rows = append(rows, fmt.Sprintf("%s\t%.3f\t%.4f\t[%.4f, %.4f]", b.Name, b.X[i], s.Median, s.Lower, s.Upper))
		}
	}
	t.table("quantity\t"+xName+"\tmedian\tinterval", rows)
}

func formatP(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NA"
	case p < 1e-4:
		return "<1e-4"
	default:
		return fmt.Sprintf("%.4f", p)
	}
}
